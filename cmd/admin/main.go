// Command admin provides maintenance utilities for pettit.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"pettit/internal/config"
	"pettit/internal/database"
	"pettit/internal/repository"
	"pettit/internal/service"

	"gorm.io/gorm"
)

func usage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  admin migrate                      - Create or update every table")
	_, _ = fmt.Fprintln(w, "  admin reconcile [-community name]  - Recompute member, post and vote counters")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := run(context.Background(), db, os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("%s failed: %v", os.Args[1], err)
	}
}

var errUsage = errors.New("unknown command")

func run(ctx context.Context, db *gorm.DB, args []string, out io.Writer) error {
	switch args[0] {
	case "migrate":
		if err := database.Migrate(db); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out, "Migration completed")
		return nil

	case "reconcile":
		fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
		fs.SetOutput(out)
		name := fs.String("community", "", "Only reconcile this community")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		return reconcile(ctx, db, *name, out)

	default:
		usage(out)
		return fmt.Errorf("%w: %s", errUsage, args[0])
	}
}

func reconcile(ctx context.Context, db *gorm.DB, name string, out io.Writer) error {
	posts := repository.NewPostRepository(db)
	communities := repository.NewCommunityRepository(db)
	memberships := repository.NewMembershipRepository(db)

	var communityID uint
	scope := "all communities"
	if name != "" {
		community, err := service.NewCommunityService(communities, memberships).Resolve(ctx, name)
		if err != nil {
			return err
		}
		communityID = community.ID
		scope = community.Name
	}

	if err := service.NewMembershipService(communities, memberships, nil, nil).Reconcile(ctx, communityID); err != nil {
		return err
	}
	n, err := service.NewVoteService(posts, nil, nil).RecomputeScores(ctx, communityID)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "Reconciled %s: member and post counts refreshed, %d post scores recomputed\n", scope, n)
	return nil
}
