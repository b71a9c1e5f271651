package models

import (
	"strings"
	"time"
)

// Post limits.
const (
	MaxTitleLength   = 300
	MaxContentLength = 10000
	MaxTagLength     = 50
	MaxTagsPerPost   = 10
)

// Post is a community submission. VoteScore is derived from PostVote rows and
// is recomputed inside every vote transaction, never incremented.
type Post struct {
	ID              uint         `gorm:"primaryKey" json:"id"`
	Title           string       `gorm:"size:300;not null" json:"title"`
	Content         string       `gorm:"type:text;not null" json:"content"`
	UserID          uint         `gorm:"not null;index" json:"user_id"`
	Author          *User        `gorm:"foreignKey:UserID" json:"author,omitempty"`
	CommunityID     uint         `gorm:"not null;index" json:"community_id"`
	Community       *Community   `gorm:"foreignKey:CommunityID" json:"community,omitempty"`
	Media           []PostMedia  `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"media"`
	Tags            []PostTag    `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"tags"`
	VoteScore       int          `gorm:"not null;default:0;index" json:"vote_score"`
	CommentCount    int          `gorm:"not null;default:0" json:"comment_count"`
	Views           int          `gorm:"not null;default:0" json:"views"`
	IsActive        bool         `gorm:"not null" json:"is_active"`
	IsPinned        bool         `gorm:"not null" json:"is_pinned"`
	IsLocked        bool         `gorm:"not null" json:"is_locked"`
	IsSponsored     bool         `gorm:"not null" json:"is_sponsored"`
	IsRemoved       bool         `gorm:"not null" json:"is_removed"`
	RemovedByUserID *uint        `json:"removed_by_user_id,omitempty"`
	RemovedReason   string       `gorm:"size:500" json:"removed_reason,omitempty"`
	Reports         []PostReport `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	// UserVote is computed relative to the viewer: "upvote", "downvote" or "".
	UserVote string `gorm:"->;-:migration" json:"user_vote"`
	// IsSaved is computed relative to the viewer.
	IsSaved   bool      `gorm:"->;-:migration" json:"is_saved"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Post) TableName() string {
	return "posts"
}

// TagNames returns the post's tags as plain strings.
func (p *Post) TagNames() []string {
	names := make([]string, 0, len(p.Tags))
	for _, t := range p.Tags {
		names = append(names, t.Tag)
	}
	return names
}

// PostTag is one lowercased tag of a post.
type PostTag struct {
	PostID uint   `gorm:"primaryKey;autoIncrement:false" json:"post_id"`
	Tag    string `gorm:"primaryKey;size:50;index" json:"tag"`
}

// TableName specifies the table name for GORM.
func (PostTag) TableName() string {
	return "post_tags"
}

// NormalizeTags lowercases, trims and de-duplicates tags, dropping empties.
func NormalizeTags(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// PostVote is one user's vote on a post. The composite key keeps a user in
// at most one of the upvoter and downvoter sets.
type PostVote struct {
	PostID    uint      `gorm:"primaryKey;autoIncrement:false" json:"post_id"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	Value     int       `gorm:"not null" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (PostVote) TableName() string {
	return "post_votes"
}

// PostSave records that a user saved a post.
type PostSave struct {
	PostID    uint      `gorm:"primaryKey;autoIncrement:false" json:"post_id"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (PostSave) TableName() string {
	return "post_saves"
}

// PostReport is a user's report against a post; one per reporter.
type PostReport struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	PostID     uint      `gorm:"not null;uniqueIndex:idx_report_post_reporter" json:"post_id"`
	ReporterID uint      `gorm:"not null;uniqueIndex:idx_report_post_reporter" json:"reporter_id"`
	Reason     string    `gorm:"size:500;not null" json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (PostReport) TableName() string {
	return "post_reports"
}
