// Package main provides admin management utilities for CampusHub.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"campushub/internal/cache"
	"campushub/internal/config"
	"campushub/internal/database"
	"campushub/internal/models"
	"campushub/internal/repository"

	"gorm.io/gorm"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin promote <id|username>          - Promote profile to admin")
	fmt.Println("  go run ./cmd/admin demote <id|username>           - Demote profile to user")
	fmt.Println("  go run ./cmd/admin verify <id|username> [days]    - Grant the verified badge")
	fmt.Println("  go run ./cmd/admin unverify <id|username>         - Remove the verified badge")
	fmt.Println("  go run ./cmd/admin list-admins                    - List all admins")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	// Role and badge changes must drop cached profiles the API may be serving.
	cache.InitRedis(cfg.RedisURL)

	ctx := context.Background()
	profiles := repository.NewProfileRepository(db)
	command := os.Args[1]

	if command == "list-admins" {
		listAdmins(db)
		return
	}
	if len(os.Args) < 3 {
		usage()
		os.Exit(1)
	}
	target, err := lookup(ctx, profiles, os.Args[2])
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	switch command {
	case "promote":
		setRole(ctx, profiles, target, models.RoleAdmin)
	case "demote":
		setRole(ctx, profiles, target, models.RoleUser)
	case "verify":
		var until *time.Time
		if len(os.Args) > 3 {
			days, err := strconv.Atoi(os.Args[3])
			if err != nil || days <= 0 {
				log.Fatalf("days must be a positive number, got %q", os.Args[3])
			}
			t := time.Now().Add(time.Duration(days) * 24 * time.Hour)
			until = &t
		}
		p, err := profiles.SetVerification(ctx, target.ID, true, until)
		if err != nil {
			log.Fatalf("Failed to verify profile: %v", err)
		}
		fmt.Printf("✅ %s (ID: %d) is verified%s\n", p.Handle(), p.ID, untilSuffix(p.VerifiedUntil))
	case "unverify":
		p, err := profiles.SetVerification(ctx, target.ID, false, nil)
		if err != nil {
			log.Fatalf("Failed to unverify profile: %v", err)
		}
		fmt.Printf("✅ Removed the verified badge from %s (ID: %d)\n", p.Handle(), p.ID)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

// lookup resolves a numeric id or a username.
func lookup(ctx context.Context, profiles repository.ProfileRepository, ref string) (*models.Profile, error) {
	var (
		p   *models.Profile
		err error
	)
	if id, convErr := strconv.ParseUint(ref, 10, 64); convErr == nil {
		p, err = profiles.GetByID(ctx, uint(id))
	} else {
		p, err = profiles.GetByUsername(ctx, strings.ToLower(ref))
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) && appErr.Code == models.CodeNotFound {
		return nil, fmt.Errorf("profile %s not found", ref)
	}
	if err != nil {
		log.Fatalf("Database error: %v", err)
	}
	return p, nil
}

func setRole(ctx context.Context, profiles repository.ProfileRepository, p *models.Profile, role models.Role) {
	if p.Role == role {
		fmt.Printf("%s (ID: %d) is already %s\n", p.Handle(), p.ID, role)
		return
	}
	if _, err := profiles.SetRole(ctx, p.ID, role); err != nil {
		log.Fatalf("Failed to change role: %v", err)
	}
	fmt.Printf("✅ %s (ID: %d) is now %s\n", p.Handle(), p.ID, role)
}

func untilSuffix(until *time.Time) string {
	if until == nil {
		return ""
	}
	return " until " + until.Format(time.RFC1123)
}

func listAdmins(db *gorm.DB) {
	var admins []models.Profile
	if err := db.Where("role = ?", models.RoleAdmin).Order("id").Find(&admins).Error; err != nil {
		log.Fatalf("Failed to fetch admins: %v", err)
	}

	if len(admins) == 0 {
		fmt.Println("No admins found in the system")
		return
	}

	fmt.Println("\n📋 Current Admins:")
	fmt.Println("─────────────────────────────────────")
	for _, admin := range admins {
		fmt.Printf("ID: %d | Username: %s | Email: %s\n", admin.ID, admin.Handle(), admin.Email)
	}
	fmt.Println("─────────────────────────────────────")
}
