// Command seed fills the database with demo users, communities, posts and
// votes.
package main

import (
	"context"
	"flag"
	"log"

	"pettit/internal/bootstrap"
	"pettit/internal/config"
	"pettit/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 50, "Number of users to create")
	numPosts := flag.Int("posts", 200, "Number of posts to create")
	maxVoters := flag.Int("voters", 15, "Maximum votes per post")
	maxDays := flag.Int("days", 30, "Spread post creation over this many days")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	fast := flag.Bool("fast", false, "Skip bcrypt hashing of seeded passwords")
	randSeed := flag.Int64("seed", 0, "Random seed (0 uses the clock)")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Printf("Target: %d users, %d posts, clean=%v\n", *numUsers, *numPosts, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	db, _, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	s := seed.NewSeeder(db, seed.Options{
		NumUsers:    *numUsers,
		NumPosts:    *numPosts,
		MaxVoters:   *maxVoters,
		MaxDays:     *maxDays,
		ShouldClean: *shouldClean,
		SkipBcrypt:  *fast,
		RandSeed:    *randSeed,
	})
	summary, err := s.Run(ctx)
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ Created %d users, %d communities, %d memberships, %d posts and %d votes",
		summary.Users, summary.Communities, summary.Memberships, summary.Posts, summary.Votes)
	log.Printf("📧 All seeded users have the password: %s", seed.DefaultPassword)
}
