package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ruangujian/asesmen-backend/internal/config"
	"github.com/ruangujian/asesmen-backend/internal/database"
	"github.com/ruangujian/asesmen-backend/internal/logger"
	"github.com/ruangujian/asesmen-backend/internal/model"
	"github.com/ruangujian/asesmen-backend/internal/repository"
	"github.com/ruangujian/asesmen-backend/internal/service"
	"golang.org/x/crypto/bcrypt"
)

const seedPassword = "asesmen123"

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	studentRepo := repository.NewStudentRepository(pool)
	teacherRepo := repository.NewTeacherRepository(pool)
	accountService := service.NewAccountService(studentRepo, teacherRepo)

	fmt.Println("=== Seeding 50 Students ===")

	// One hash for every seed account; bcrypt per student is pointlessly slow.
	hashed, err := bcrypt.GenerateFromPassword([]byte(seedPassword), cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash seed password")
	}

	names := []string{
		"Budi Santoso", "Siti Aminah", "Andi Pratama", "Rina Wati", "Joko Susilo",
		"Ayu Lestari", "Dodi Kusuma", "Eka Putri", "Fahri Hamzah", "Gita Savitri",
		"Hendra Gunawan", "Ika Sari", "Jamal Mirdad", "Kiki Fatmala", "Lukman Hakim",
		"Maya Septiana", "Nanda Pratama", "Oki Setiana", "Putri Dian", "Qori Maharani",
		"Rafi Ahmad", "Siska Saraswati", "Toni Setiawan", "Umi Kalsum", "Vina Panduwinata",
		"Wahyu Hidayat", "Xena Maharani", "Yudi Pratama", "Zaki Anwar", "Alifia Zahra",
		"Bagas Saputra", "Citra Kirana", "Dimas Anggara", "Elisa Novita", "Fikri Maulana",
		"Gali Rakasiwi", "Hani Hanifah", "Iqbal Ramadhan", "Jasmine Azzahra", "Kevin Sanjaya",
		"Larasati Dewi", "Miko Pambudi", "Nia Ramadhani", "Oscar Lawalata", "Puput Melati",
		"Reza Rahadian", "Sari Nila", "Tigor Siahaan", "Utari Maharani", "Vicky Prasetyo",
	}

	successCount := 0
	for i, name := range names {
		student := &model.Student{
			NIS:          fmt.Sprintf("%05d", i+1),
			Name:         name,
			PasswordHash: string(hashed),
		}

		if err := accountService.CreateStudent(ctx, student); err != nil {
			fmt.Printf("Error creating student %s (NIS: %s): %v\n", student.Name, student.NIS, err)
		} else {
			successCount++
			if (i+1)%10 == 0 {
				fmt.Printf("Created %d students...\n", i+1)
			}
		}
	}

	fmt.Printf("\nSeed completed! Successfully added %d/%d students.\n", successCount, len(names))
}
