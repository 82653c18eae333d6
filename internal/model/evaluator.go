package model

import "time"

// Evaluator is an account allowed to upload answer keys, grade and publish.
type Evaluator struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// EvaluatorLoginRequest is the payload for evaluator authentication.
type EvaluatorLoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// EvaluatorLoginResponse is returned after a successful evaluator login.
type EvaluatorLoginResponse struct {
	Token     string    `json:"token"`
	Evaluator Evaluator `json:"evaluator"`
}
