package models

import "time"

// MembershipRole defines a member's role in a community.
type MembershipRole string

const (
	// MembershipRoleMember is the default member role.
	MembershipRoleMember MembershipRole = "member"
	// MembershipRoleModerator can manage posts and comments.
	MembershipRoleModerator MembershipRole = "moderator"
	// MembershipRoleAdmin holds every permission.
	MembershipRoleAdmin MembershipRole = "admin"
)

// Valid reports whether r is a known role.
func (r MembershipRole) Valid() bool {
	switch r {
	case MembershipRoleMember, MembershipRoleModerator, MembershipRoleAdmin:
		return true
	}
	return false
}

// Permissions is the capability bundle attached to a membership.
type Permissions struct {
	CanManagePosts    bool `gorm:"not null" json:"canManagePosts"`
	CanManageComments bool `gorm:"not null" json:"canManageComments"`
	CanManageUsers    bool `gorm:"not null" json:"canManageUsers"`
	CanManageSettings bool `gorm:"not null" json:"canManageSettings"`
}

// PermissionOverrides carries a partial permission edit; nil fields are kept.
type PermissionOverrides struct {
	CanManagePosts    *bool `json:"canManagePosts,omitempty"`
	CanManageComments *bool `json:"canManageComments,omitempty"`
	CanManageUsers    *bool `json:"canManageUsers,omitempty"`
	CanManageSettings *bool `json:"canManageSettings,omitempty"`
}

// DefaultPermissions returns the bundle a fresh membership with role gets.
func DefaultPermissions(role MembershipRole) Permissions {
	switch role {
	case MembershipRoleAdmin:
		return Permissions{CanManagePosts: true, CanManageComments: true, CanManageUsers: true, CanManageSettings: true}
	case MembershipRoleModerator:
		return Permissions{CanManagePosts: true, CanManageComments: true}
	default:
		return Permissions{}
	}
}

// Merge applies the non-nil overrides on top of p.
func (p Permissions) Merge(o *PermissionOverrides) Permissions {
	if o == nil {
		return p
	}
	if o.CanManagePosts != nil {
		p.CanManagePosts = *o.CanManagePosts
	}
	if o.CanManageComments != nil {
		p.CanManageComments = *o.CanManageComments
	}
	if o.CanManageUsers != nil {
		p.CanManageUsers = *o.CanManageUsers
	}
	if o.CanManageSettings != nil {
		p.CanManageSettings = *o.CanManageSettings
	}
	return p
}

// Membership maps a user to a community with a role. There is at most one
// row per (user, community) pair.
type Membership struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UserID      uint           `gorm:"not null;uniqueIndex:idx_membership_pair" json:"user_id"`
	User        *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CommunityID uint           `gorm:"not null;uniqueIndex:idx_membership_pair;index" json:"community_id"`
	Community   *Community     `gorm:"foreignKey:CommunityID" json:"community,omitempty"`
	Role        MembershipRole `gorm:"type:varchar(20);not null;default:'member'" json:"role"`
	Permissions Permissions    `gorm:"embedded;embeddedPrefix:perm_" json:"permissions"`
	JoinedAt    time.Time      `gorm:"not null;index" json:"joined_at"`
	IsActive    bool           `gorm:"not null" json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Membership) TableName() string {
	return "community_memberships"
}
