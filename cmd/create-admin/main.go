package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/stemsi/mathcourse-portal/internal/auth"
	"github.com/stemsi/mathcourse-portal/internal/config"
	"github.com/stemsi/mathcourse-portal/internal/database"
	"github.com/stemsi/mathcourse-portal/internal/logger"
	"github.com/stemsi/mathcourse-portal/internal/model"
	"github.com/stemsi/mathcourse-portal/internal/repository"
	"github.com/stemsi/mathcourse-portal/internal/validator"
	"golang.org/x/term"
)

func main() {
	var reset bool
	flag.BoolVar(&reset, "reset", false, "Replace the password of an existing admin instead of creating one")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	validator.Setup()

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	adminRepo := repository.NewAdminRepository(pool)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	input := model.CreateAdminInput{}
	if reset {
		fmt.Println("=== Reset Admin Password ===")
		input.FullName = "-"
	} else {
		fmt.Println("=== Create New Admin User ===")

		fmt.Print("Enter Full Name: ")
		name, _ := reader.ReadString('\n')
		input.FullName = strings.TrimSpace(name)
	}

	fmt.Print("Enter Email: ")
	email, _ := reader.ReadString('\n')
	input.Email = strings.TrimSpace(email)

	password, err := readPassword("Enter Password: ")
	if err != nil {
		fmt.Println("Error reading password")
		return
	}
	confirm, err := readPassword("Confirm Password: ")
	if err != nil {
		fmt.Println("Error reading password")
		return
	}
	if password != confirm {
		fmt.Println("Error: Passwords do not match")
		return
	}
	input.Password = password

	if errs := validator.Struct(input); errs != nil {
		for field, msg := range errs {
			fmt.Printf("Error: %s %s\n", field, msg)
		}
		return
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	hash, err := auth.HashPassword(input.Password, cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	if reset {
		if err := adminRepo.UpdatePassword(ctx, input.Email, hash); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				fmt.Printf("Error: no admin with email %s\n", input.Email)
				return
			}
			log.Fatal().Err(err).Msg("Failed to update password")
		}
		fmt.Printf("\nSuccess! Password for %s replaced. Existing sessions stay valid until they expire or log out.\n", input.Email)
		return
	}

	newAdmin := &model.Admin{
		Email:        input.Email,
		FullName:     input.FullName,
		PasswordHash: hash,
	}
	if err := adminRepo.Create(ctx, newAdmin); err != nil {
		log.Fatal().Err(err).Msg("Failed to create admin")
	}

	fmt.Printf("\nSuccess! Admin '%s' (%s) created with ID: %s\n", newAdmin.FullName, newAdmin.Email, newAdmin.ID)
}

func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println() // Newline after password input
	if err != nil {
		return "", err
	}
	return string(b), nil
}
