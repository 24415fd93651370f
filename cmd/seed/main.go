// Command main runs the database seeder for CampusHub.
package main

import (
	"context"
	"flag"
	"log"

	"campushub/internal/bootstrap"
	"campushub/internal/config"
	"campushub/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 50, "Number of users to create")
	numPosts := flag.Int("posts", 200, "Number of posts to create")
	numCircles := flag.Int("circles", 6, "Number of user circles to create")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	fast := flag.Bool("fast", false, "Hash the shared password with the minimum bcrypt cost")
	randSeed := flag.Int64("seed", 0, "Random seed for reproducible data (0 = time based)")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d users, %d posts, %d circles, clean=%v\n", *numUsers, *numPosts, *numCircles, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("❌ Refusing to seed a production database")
	}

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{SeedBuiltIns: true})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	s := seed.NewSeeder(rt.DB, seed.Options{SkipBcrypt: *fast, RandSeed: *randSeed})
	if *shouldClean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("❌ Cleanup failed: %v", err)
		}
		if _, err := bootstrap.EnsureBuiltIns(ctx, cfg, rt.DB); err != nil {
			log.Fatalf("❌ Built-in seeding failed: %v", err)
		}
	}

	sum, err := s.Run(ctx, seed.Counts{Users: *numUsers, Posts: *numPosts, Circles: *numCircles})
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}
	log.Printf("✓ %d built-in circles added, %d chats opened", sum.BuiltInAdded, sum.Chats)

	log.Println("✨ All done! Your database is now populated with test data.")
	log.Printf("📧 All test users have the password: %s", seed.DefaultPassword)
}
