package repository

import (
	"context"
	"time"

	"pettit/internal/models"

	"gorm.io/gorm"
)

// MembershipRepository defines the interface for community membership data.
// Every method that creates or destroys a membership adjusts the community's
// member_count in the same transaction.
type MembershipRepository interface {
	Get(ctx context.Context, userID, communityID uint) (*models.Membership, error)
	Join(ctx context.Context, m *models.Membership) error
	Leave(ctx context.Context, m *models.Membership) error
	Update(ctx context.Context, m *models.Membership) error
	ListMembers(ctx context.Context, communityID uint, role models.MembershipRole, limit, offset int) ([]models.Membership, int64, error)
	ListForUser(ctx context.Context, userID uint, communityIDs []uint) (map[uint]models.Membership, error)
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.Membership, int64, error)
	Reconcile(ctx context.Context, communityID uint) error
}

type membershipRepository struct {
	db *gorm.DB
}

// NewMembershipRepository creates a new membership repository
func NewMembershipRepository(db *gorm.DB) MembershipRepository {
	return &membershipRepository{db: db}
}

// insertMembership creates m and increments the community's member_count.
func insertMembership(tx *gorm.DB, m *models.Membership) error {
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	m.IsActive = true
	if err := tx.Omit("User", "Community").Create(m).Error; err != nil {
		return err
	}
	return tx.Model(&models.Community{}).
		Where("id = ?", m.CommunityID).
		UpdateColumn("member_count", gorm.Expr("member_count + ?", 1)).Error
}

// deleteMembership removes m and decrements member_count, floored at zero.
func deleteMembership(tx *gorm.DB, m *models.Membership) error {
	res := tx.Delete(&models.Membership{}, m.ID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return tx.Model(&models.Community{}).
		Where("id = ?", m.CommunityID).
		UpdateColumn("member_count", gorm.Expr("CASE WHEN member_count > 0 THEN member_count - 1 ELSE 0 END")).Error
}

// deactivateMemberships marks every membership of a community inactive and
// zeroes member_count so the count still matches the active rows.
func deactivateMemberships(tx *gorm.DB, communityID uint) error {
	if err := tx.Model(&models.Membership{}).
		Where("community_id = ?", communityID).
		Update("is_active", false).Error; err != nil {
		return err
	}
	return tx.Model(&models.Community{}).
		Where("id = ?", communityID).
		UpdateColumn("member_count", 0).Error
}

func (r *membershipRepository) Get(ctx context.Context, userID, communityID uint) (*models.Membership, error) {
	var m models.Membership
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND community_id = ?", userID, communityID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Join inserts m. A concurrent duplicate surfaces as a unique violation.
func (r *membershipRepository) Join(ctx context.Context, m *models.Membership) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return insertMembership(tx, m)
	})
}

func (r *membershipRepository) Leave(ctx context.Context, m *models.Membership) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteMembership(tx, m)
	})
}

// Update writes the role and permission bundle of m.
func (r *membershipRepository) Update(ctx context.Context, m *models.Membership) error {
	return r.db.WithContext(ctx).Model(&models.Membership{}).
		Where("id = ?", m.ID).
		Updates(map[string]any{
			"role":                     m.Role,
			"perm_can_manage_posts":    m.Permissions.CanManagePosts,
			"perm_can_manage_comments": m.Permissions.CanManageComments,
			"perm_can_manage_users":    m.Permissions.CanManageUsers,
			"perm_can_manage_settings": m.Permissions.CanManageSettings,
		}).Error
}

func (r *membershipRepository) ListMembers(ctx context.Context, communityID uint, role models.MembershipRole, limit, offset int) ([]models.Membership, int64, error) {
	db := readDB(r.db).WithContext(ctx).Model(&models.Membership{}).
		Where("community_id = ? AND is_active = ?", communityID, true)
	if role != "" {
		db = db.Where("role = ?", role)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var members []models.Membership
	err := db.Preload("User").
		Order("joined_at ASC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&members).Error
	if err != nil {
		return nil, 0, err
	}
	return members, total, nil
}

// ListForUser returns the user's active memberships among communityIDs keyed
// by community ID.
func (r *membershipRepository) ListForUser(ctx context.Context, userID uint, communityIDs []uint) (map[uint]models.Membership, error) {
	out := make(map[uint]models.Membership, len(communityIDs))
	if userID == 0 || len(communityIDs) == 0 {
		return out, nil
	}

	var rows []models.Membership
	err := readDB(r.db).WithContext(ctx).
		Where("user_id = ? AND is_active = ? AND community_id IN ?", userID, true, communityIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, m := range rows {
		out[m.CommunityID] = m
	}
	return out, nil
}

// ListByUser returns the user's active memberships in active communities,
// newest first, with the community preloaded.
func (r *membershipRepository) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.Membership, int64, error) {
	db := readDB(r.db).WithContext(ctx).Model(&models.Membership{}).
		Joins("JOIN communities ON communities.id = community_memberships.community_id").
		Where("community_memberships.user_id = ? AND community_memberships.is_active = ? AND communities.is_active = ?", userID, true, true)

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Membership
	err := db.Select("community_memberships.*").
		Preload("Community").
		Order("community_memberships.joined_at DESC, community_memberships.id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// Reconcile recomputes member_count and post_count from the underlying rows
// for one community, or for all when communityID is 0.
func (r *membershipRepository) Reconcile(ctx context.Context, communityID uint) error {
	db := r.db.WithContext(ctx).Model(&models.Community{})
	if communityID != 0 {
		db = db.Where("id = ?", communityID)
	} else {
		db = db.Where("1 = 1")
	}
	return db.UpdateColumns(map[string]any{
		"member_count": gorm.Expr("(SELECT COUNT(*) FROM community_memberships WHERE community_memberships.community_id = communities.id AND community_memberships.is_active = ?)", true),
		"post_count":   gorm.Expr("(SELECT COUNT(*) FROM posts WHERE posts.community_id = communities.id)"),
	}).Error
}
