package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/mail"
	"os"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5"
	"golang.org/x/term"

	"github.com/fairtest/fairtest-backend/internal/config"
	"github.com/fairtest/fairtest-backend/internal/database"
	"github.com/fairtest/fairtest-backend/internal/logger"
	"github.com/fairtest/fairtest-backend/internal/model"
	"github.com/fairtest/fairtest-backend/internal/repository"
	"github.com/fairtest/fairtest-backend/internal/service"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.SetupWriter(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Initialize Services ───────────────────────────────────────────
	evaluatorService := service.NewEvaluatorService(repository.NewEvaluatorRepository(pool))
	authService := service.NewAuthService(cfg, nil)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Create New Evaluator ===")

	fmt.Print("Enter Name: ")
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)
	if name == "" {
		fmt.Println("Error: Name is required")
		os.Exit(1)
	}

	fmt.Print("Enter Email: ")
	email, _ := reader.ReadString('\n')
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		fmt.Println("Error: A valid email is required")
		os.Exit(1)
	}

	if _, err := evaluatorService.GetByEmail(ctx, email); err == nil {
		fmt.Printf("Error: An evaluator with email %s already exists\n", email)
		os.Exit(1)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		log.Fatal().Err(err).Msg("Failed to check existing evaluator")
	}

	password, err := readPassword("Enter Password: ")
	if err != nil {
		fmt.Println("\nError reading password")
		os.Exit(1)
	}
	if len(password) < 6 {
		fmt.Println("Error: Password must be at least 6 characters")
		os.Exit(1)
	}
	confirm, err := readPassword("Confirm Password: ")
	if err != nil || confirm != password {
		fmt.Println("Error: Passwords do not match")
		os.Exit(1)
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	hash, err := authService.HashPassword(password)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	evaluator := &model.Evaluator{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
	}
	if err := evaluatorService.Create(ctx, evaluator); err != nil {
		log.Fatal().Err(err).Msg("Failed to create evaluator")
	}

	fmt.Printf("\nSuccess! Evaluator '%s' (%s) created with ID: %d\n", evaluator.Name, evaluator.Email, evaluator.ID)
}

func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	return string(b), err
}
