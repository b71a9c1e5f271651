// Package seed populates a database with demo data for development. Every
// write goes through the domain services so counters and creator
// memberships stay consistent.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pettit/internal/database"
	"pettit/internal/middleware"
	"pettit/internal/models"
	"pettit/internal/repository"
	"pettit/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password every seeded user signs in with.
const DefaultPassword = "password123"

// Options configure a seeding run.
type Options struct {
	NumUsers    int
	NumPosts    int
	MaxVoters   int
	MaxDays     int
	ShouldClean bool
	// SkipBcrypt stores the plain password; tests use it to stay fast.
	SkipBcrypt bool
	// RandSeed makes the run reproducible; 0 seeds from the clock.
	RandSeed int64
}

// Summary counts what a run created.
type Summary struct {
	Users       int
	Communities int
	Memberships int
	Posts       int
	Votes       int
}

// Seeder creates users, communities, memberships, posts and votes.
type Seeder struct {
	db    *gorm.DB
	opts  Options
	faker *gofakeit.Faker

	users       repository.UserRepository
	communities *service.CommunityService
	memberships *service.MembershipService
	posts       *service.PostService
	votes       *service.VoteService
}

// NewSeeder wires a Seeder against db. Events are not published while
// seeding.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	if opts.NumUsers <= 0 {
		opts.NumUsers = 50
	}
	if opts.MaxVoters <= 0 {
		opts.MaxVoters = 15
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = 30
	}
	randSeed := opts.RandSeed
	if randSeed == 0 {
		randSeed = time.Now().UnixNano()
	}

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	communityRepo := repository.NewCommunityRepository(db)
	membershipRepo := repository.NewMembershipRepository(db)

	return &Seeder{
		db:          db,
		opts:        opts,
		faker:       gofakeit.New(randSeed),
		users:       userRepo,
		communities: service.NewCommunityService(communityRepo, membershipRepo),
		memberships: service.NewMembershipService(communityRepo, membershipRepo, nil, nil),
		posts:       service.NewPostService(postRepo, communityRepo, membershipRepo, nil, 0, nil, nil),
		votes:       service.NewVoteService(postRepo, nil, nil),
	}
}

// ClearAll deletes every row of every persistent table.
func (s *Seeder) ClearAll(ctx context.Context) error {
	middleware.Logger.Info("Clearing existing data")
	tables := database.PersistentModels()
	for i := len(tables) - 1; i >= 0; i-- {
		err := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(tables[i]).Error
		if err != nil {
			return fmt.Errorf("clear %T: %w", tables[i], err)
		}
	}
	return nil
}

// Run seeds users, the built-in communities, memberships, posts and votes.
func (s *Seeder) Run(ctx context.Context) (*Summary, error) {
	if s.opts.ShouldClean {
		if err := s.ClearAll(ctx); err != nil {
			return nil, err
		}
	}

	summary := &Summary{}

	users, err := s.createUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create users: %w", err)
	}
	summary.Users = len(users)
	middleware.Logger.Info("Seeded users", slog.Int("count", summary.Users))

	catalogue, err := BuiltInCommunities()
	if err != nil {
		return nil, err
	}
	communities, err := s.createCommunities(ctx, catalogue, users)
	if err != nil {
		return nil, fmt.Errorf("failed to create communities: %w", err)
	}
	summary.Communities = len(communities)

	members, joined, err := s.joinMembers(ctx, communities, users)
	if err != nil {
		return nil, fmt.Errorf("failed to join members: %w", err)
	}
	summary.Memberships = joined

	posts, err := s.createPosts(ctx, communities, members)
	if err != nil {
		return nil, fmt.Errorf("failed to create posts: %w", err)
	}
	summary.Posts = len(posts)

	votes, err := s.castVotes(ctx, posts, users)
	if err != nil {
		return nil, fmt.Errorf("failed to cast votes: %w", err)
	}
	summary.Votes = votes

	middleware.Logger.Info("Seeding completed",
		slog.Int("users", summary.Users),
		slog.Int("communities", summary.Communities),
		slog.Int("memberships", summary.Memberships),
		slog.Int("posts", summary.Posts),
		slog.Int("votes", summary.Votes))
	return summary, nil
}

func (s *Seeder) passwordHash() (string, error) {
	if s.opts.SkipBcrypt {
		return DefaultPassword, nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

func (s *Seeder) createUsers(ctx context.Context) ([]*models.User, error) {
	hash, err := s.passwordHash()
	if err != nil {
		return nil, err
	}

	users := make([]*models.User, 0, s.opts.NumUsers)
	for i := 0; i < s.opts.NumUsers; i++ {
		username := fmt.Sprintf("%s_%s%d", handle(s.faker.PetName()), handle(s.faker.Username()), i)
		if len(username) > 50 {
			username = username[len(username)-50:]
		}
		user := &models.User{
			Username:     username,
			Email:        fmt.Sprintf("%s@pettit.dev", username),
			PasswordHash: hash,
			Bio:          fmt.Sprintf("Proud %s parent. %s", strings.ToLower(s.faker.Animal()), s.faker.Sentence(8)),
			Avatar:       fmt.Sprintf("https://i.pravatar.cc/150?u=%s", s.faker.UUID()),
			Verified:     s.faker.Number(0, 9) == 0,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// handle lowercases raw and drops everything but letters, digits and
// underscores.
func handle(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (s *Seeder) createCommunities(ctx context.Context, catalogue []CommunitySeed, users []*models.User) ([]*seededCommunity, error) {
	out := make([]*seededCommunity, 0, len(catalogue))
	for i, item := range catalogue {
		creator := users[i%len(users)]
		community, err := s.communities.Create(ctx, service.CreateCommunityInput{
			CreatorID:   creator.ID,
			Name:        item.Name,
			DisplayName: item.DisplayName,
			Description: item.Description,
			Category:    item.Category,
		})
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == models.CodeConflict {
			community, err = s.communities.Resolve(ctx, item.Name)
		}
		if err != nil {
			return nil, fmt.Errorf("community %s: %w", item.Name, err)
		}
		out = append(out, &seededCommunity{community: community, tags: item.Tags})
	}
	return out, nil
}

type seededCommunity struct {
	community *models.Community
	tags      []string
}

// joinMembers joins a random share of users to each community and returns
// the member ids per community, creators included.
func (s *Seeder) joinMembers(ctx context.Context, communities []*seededCommunity, users []*models.User) (map[uint][]uint, int, error) {
	members := make(map[uint][]uint, len(communities))
	joined := 0
	for _, sc := range communities {
		id := sc.community.ID
		members[id] = append(members[id], sc.community.CreatorID)
		for _, u := range users {
			if u.ID == sc.community.CreatorID || s.faker.Number(0, 99) >= 40 {
				continue
			}
			_, err := s.memberships.Join(ctx, u.ID, id, models.MembershipRoleMember)
			if errors.Is(err, models.ErrDuplicateMembership) {
				continue
			}
			if err != nil {
				return nil, 0, err
			}
			members[id] = append(members[id], u.ID)
			joined++
		}
	}
	return members, joined, nil
}

func (s *Seeder) createPosts(ctx context.Context, communities []*seededCommunity, members map[uint][]uint) ([]*models.Post, error) {
	if len(communities) == 0 {
		return nil, nil
	}

	posts := make([]*models.Post, 0, s.opts.NumPosts)
	for i := 0; i < s.opts.NumPosts; i++ {
		sc := communities[s.faker.Number(0, len(communities)-1)]
		authors := members[sc.community.ID]
		author := authors[s.faker.Number(0, len(authors)-1)]

		var tags []string
		for _, tag := range sc.tags {
			if s.faker.Bool() {
				tags = append(tags, tag)
			}
		}

		post, err := s.posts.CreatePost(ctx, service.CreatePostInput{
			AuthorID:    author,
			CommunityID: sc.community.ID,
			Title:       fmt.Sprintf("My %s %s", strings.ToLower(s.faker.PetName()), s.faker.Sentence(4)),
			Content:     s.faker.Paragraph(1, 3, 8, "\n\n"),
			Tags:        tags,
		})
		if err != nil {
			return nil, err
		}

		// Spread creation times so the time-windowed views have something to rank.
		backdate := time.Duration(s.faker.Number(0, s.opts.MaxDays*24*60)) * time.Minute
		createdAt := time.Now().UTC().Add(-backdate)
		if err := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", post.ID).
			UpdateColumn("created_at", createdAt).Error; err != nil {
			return nil, err
		}
		post.CreatedAt = createdAt
		posts = append(posts, post)
	}
	return posts, nil
}

func (s *Seeder) castVotes(ctx context.Context, posts []*models.Post, users []*models.User) (int, error) {
	votes := 0
	for _, post := range posts {
		voters := s.faker.Number(0, min(s.opts.MaxVoters, len(users)))
		start := s.faker.Number(0, len(users)-1)
		for j := 0; j < voters; j++ {
			voter := users[(start+j)%len(users)]
			action := models.VoteActionUpvote
			if s.faker.Number(0, 99) < 25 {
				action = models.VoteActionDownvote
			}
			if _, err := s.votes.ApplyVote(ctx, post.ID, voter.ID, action); err != nil {
				return votes, err
			}
			votes++
		}
	}
	return votes, nil
}
