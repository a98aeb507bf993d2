package service

import (
	"context"

	"github.com/ruangujian/asesmen-backend/internal/model"
	"github.com/ruangujian/asesmen-backend/internal/repository"
)

// AccountService wraps student and teacher account lookups for the auth
// endpoints and the seeding CLIs.
type AccountService struct {
	studentRepo *repository.StudentRepository
	teacherRepo *repository.TeacherRepository
}

// NewAccountService creates a new AccountService.
func NewAccountService(studentRepo *repository.StudentRepository, teacherRepo *repository.TeacherRepository) *AccountService {
	return &AccountService{studentRepo: studentRepo, teacherRepo: teacherRepo}
}

// GetStudentByID retrieves a student by ID.
func (s *AccountService) GetStudentByID(ctx context.Context, id int) (*model.Student, error) {
	return s.studentRepo.GetByID(ctx, id)
}

// GetStudentByNIS retrieves a student by NIS.
func (s *AccountService) GetStudentByNIS(ctx context.Context, nis string) (*model.Student, error) {
	return s.studentRepo.GetByNIS(ctx, nis)
}

// CreateStudent inserts a new student account.
func (s *AccountService) CreateStudent(ctx context.Context, student *model.Student) error {
	return s.studentRepo.Create(ctx, student)
}

// GetTeacherByID retrieves a teacher by ID.
func (s *AccountService) GetTeacherByID(ctx context.Context, id int) (*model.Teacher, error) {
	return s.teacherRepo.GetByID(ctx, id)
}

// GetTeacherByEmail retrieves a teacher by email.
func (s *AccountService) GetTeacherByEmail(ctx context.Context, email string) (*model.Teacher, error) {
	return s.teacherRepo.GetByEmail(ctx, email)
}

// CreateTeacher inserts a new teacher account.
func (s *AccountService) CreateTeacher(ctx context.Context, teacher *model.Teacher) error {
	return s.teacherRepo.Create(ctx, teacher)
}
