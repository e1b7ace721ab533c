// Command seed provisions a fresh database with the accounts and rooms a
// new centre needs before the first login: one admin user and the default
// classrooms. Existing records are left alone, so reruns are safe.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/oakmont-tuition/omt-api/internal/models"
	"github.com/oakmont-tuition/omt-api/internal/repository"
	"github.com/oakmont-tuition/omt-api/pkg/config"
	"github.com/oakmont-tuition/omt-api/pkg/database"
)

func main() {
	adminEmail := flag.String("admin-email", "admin@oakmont.local", "email for the seeded admin account")
	adminName := flag.String("admin-name", "Centre Admin", "full name for the seeded admin account")
	flag.Parse()

	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		log.Fatal("SEED_ADMIN_PASSWORD must be set")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	users := repository.NewUserRepository(db)
	classrooms := repository.NewClassroomRepository(db)

	if _, err := users.FindByEmail(ctx, *adminEmail); err == nil {
		fmt.Printf("admin %s already exists, skipping\n", *adminEmail)
	} else if err != sql.ErrNoRows {
		log.Fatalf("failed to look up admin: %v", err)
	} else {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("failed to hash password: %v", err)
		}
		admin := &models.User{
			Email:        *adminEmail,
			PasswordHash: string(hash),
			FullName:     *adminName,
			Role:         models.RoleAdmin,
			Active:       true,
		}
		if err := users.Create(ctx, admin); err != nil {
			log.Fatalf("failed to create admin: %v", err)
		}
		fmt.Printf("created admin %s (%s)\n", *adminEmail, admin.ID)
	}

	defaults := []models.Classroom{
		{Name: "Room 1", Capacity: 12, IsActive: true},
		{Name: "Room 2", Capacity: 12, IsActive: true},
		{Name: "Detention Room", Capacity: 8, IsActive: true},
	}
	existing, _, err := classrooms.List(ctx, models.ClassroomFilter{PageSize: 100})
	if err != nil {
		log.Fatalf("failed to list classrooms: %v", err)
	}
	have := make(map[string]bool, len(existing))
	for _, room := range existing {
		have[room.Name] = true
	}
	for i := range defaults {
		if have[defaults[i].Name] {
			continue
		}
		if err := classrooms.Create(ctx, &defaults[i]); err != nil {
			log.Fatalf("failed to create classroom %s: %v", defaults[i].Name, err)
		}
		fmt.Printf("created classroom %s\n", defaults[i].Name)
	}
}
