package repository

import (
	"context"

	"pettit/internal/models"

	"gorm.io/gorm"
)

// CommunitySort selects the ORDER BY of a community listing.
type CommunitySort string

const (
	CommunitySortMembers CommunitySort = "memberCount"
	CommunitySortNewest  CommunitySort = "newest"
	CommunitySortOldest  CommunitySort = "oldest"
	CommunitySortPosts   CommunitySort = "posts"
	CommunitySortName    CommunitySort = "name"
)

// CommunityQuery filters a community listing. Only active communities are listed.
type CommunityQuery struct {
	Category models.CommunityCategory
	Search   string
	Sort     CommunitySort
	Limit    int
	Offset   int
}

// CommunityRepository defines the interface for community data operations
type CommunityRepository interface {
	Create(ctx context.Context, community *models.Community) error
	GetByID(ctx context.Context, id uint) (*models.Community, error)
	GetByName(ctx context.Context, name string) (*models.Community, error)
	Update(ctx context.Context, id uint, updates map[string]any) error
	SoftDelete(ctx context.Context, id uint) error
	List(ctx context.Context, q CommunityQuery) ([]models.Community, int64, error)
	Search(ctx context.Context, term string, limit int) ([]models.Community, error)
}

type communityRepository struct {
	db *gorm.DB
}

// NewCommunityRepository creates a new community repository
func NewCommunityRepository(db *gorm.DB) CommunityRepository {
	return &communityRepository{db: db}
}

// Create inserts the community and its creator's admin membership together.
func (r *communityRepository) Create(ctx context.Context, community *models.Community) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		community.IsActive = true
		community.MemberCount = 0
		community.PostCount = 0
		if err := tx.Omit("Creator").Create(community).Error; err != nil {
			return err
		}

		creator := &models.Membership{
			UserID:      community.CreatorID,
			CommunityID: community.ID,
			Role:        models.MembershipRoleAdmin,
			Permissions: models.DefaultPermissions(models.MembershipRoleAdmin),
		}
		if err := insertMembership(tx, creator); err != nil {
			return err
		}
		community.MemberCount = 1
		return nil
	})
}

func (r *communityRepository) GetByID(ctx context.Context, id uint) (*models.Community, error) {
	var c models.Community
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *communityRepository) GetByName(ctx context.Context, name string) (*models.Community, error) {
	var c models.Community
	err := r.db.WithContext(ctx).
		Preload("Creator").
		Where("name = ?", name).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *communityRepository) Update(ctx context.Context, id uint, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Community{}).Where("id = ?", id).Updates(updates).Error
}

// SoftDelete deactivates the community and every membership in it.
func (r *communityRepository) SoftDelete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Community{}).Where("id = ? AND is_active = ?", id, true).Update("is_active", false)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return deactivateMemberships(tx, id)
	})
}

func (r *communityRepository) List(ctx context.Context, q CommunityQuery) ([]models.Community, int64, error) {
	db := readDB(r.db).WithContext(ctx).Model(&models.Community{}).
		Where("communities.is_active = ?", true)
	if q.Category != "" {
		db = db.Where("communities.category = ?", q.Category)
	}
	if q.Search != "" {
		pattern := containsPattern(q.Search)
		db = db.Where(`(LOWER(communities.name) LIKE ? ESCAPE '\' OR LOWER(communities.display_name) LIKE ? ESCAPE '\' OR LOWER(communities.description) LIKE ? ESCAPE '\')`, pattern, pattern, pattern)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.Community
	err := db.Order(communityOrder(q.Sort)).
		Limit(q.Limit).
		Offset(q.Offset).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func communityOrder(sort CommunitySort) string {
	switch sort {
	case CommunitySortNewest:
		return "communities.created_at DESC, communities.id DESC"
	case CommunitySortOldest:
		return "communities.created_at ASC, communities.id ASC"
	case CommunitySortPosts:
		return "communities.post_count DESC, communities.member_count DESC"
	case CommunitySortName:
		return "communities.name ASC"
	default:
		return "communities.member_count DESC, communities.post_count DESC"
	}
}

// Search matches term against name or description of active communities.
func (r *communityRepository) Search(ctx context.Context, term string, limit int) ([]models.Community, error) {
	pattern := containsPattern(term)
	var items []models.Community
	err := readDB(r.db).WithContext(ctx).
		Where("is_active = ?", true).
		Where(`(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`, pattern, pattern).
		Order("member_count DESC, id ASC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
