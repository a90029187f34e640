// Command main seeds demo accounts and feed state into the blob store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"agora/internal/config"
	"agora/internal/identity"
	"agora/internal/seed"
	"agora/internal/storage"
)

func main() {
	numUsers := flag.Int("users", 12, "Number of users to create")
	postsPerUser := flag.Int("posts", 4, "Posts per user")
	maxFollows := flag.Int("follows", 5, "Maximum follows per user")
	password := flag.String("password", "password123", "Password for all seeded accounts")
	onboarding := flag.Bool("onboarding", false, "Leave the first-login onboarding flag set")
	rngSeed := flag.Int64("seed", 0, "RNG seed (0 = random)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	var blobs storage.Store
	switch cfg.StorageBackend {
	case "memory":
		log.Fatal("Seeding the memory backend is pointless: it is empty on every start")
	case "redis":
		st, err := storage.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		blobs = st
	default:
		st, err := storage.NewSQLiteStore(cfg.DataPath)
		if err != nil {
			log.Fatalf("Failed to open blob store: %v", err)
		}
		blobs = st
	}

	idp, err := identity.NewService(ctx, blobs, cfg.JWTSecret)
	if err != nil {
		log.Fatalf("Failed to create identity service: %v", err)
	}

	opts := seed.Options{
		Users:          *numUsers,
		PostsPerUser:   *postsPerUser,
		MaxFollows:     *maxFollows,
		MaxDaysBack:    30,
		Password:       *password,
		WithOnboarding: *onboarding,
	}

	log.Printf("Seeding %d users with %d posts each...", opts.Users, opts.PostsPerUser)
	users, err := seed.NewSeeder(blobs, idp, *rngSeed).Run(ctx, opts)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %d accounts (password %q):", len(users), opts.Password)
	for _, u := range users {
		fmt.Printf("  %-28s %s\n", u.UserID, u.Email)
	}
}
