package model

import "time"

// Student is a learner account that can take assessments.
type Student struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	NIS          string    `json:"nis"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Teacher is a staff account that authors assignments and grades answers.
type Teacher struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// StudentLoginRequest is the payload for a student login.
type StudentLoginRequest struct {
	NIS      string `json:"nis" binding:"required,min=3,max=30"`
	Password string `json:"password" binding:"required,min=6"`
}

// TeacherLoginRequest is the payload for a teacher login.
type TeacherLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}
