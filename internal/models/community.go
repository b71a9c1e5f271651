package models

import "time"

// CommunityCategory groups communities for browsing.
type CommunityCategory string

const (
	CategoryGeneral    CommunityCategory = "general"
	CategoryPets       CommunityCategory = "pets"
	CategoryDogs       CommunityCategory = "dogs"
	CategoryCats       CommunityCategory = "cats"
	CategoryBirds      CommunityCategory = "birds"
	CategoryFish       CommunityCategory = "fish"
	CategoryReptiles   CommunityCategory = "reptiles"
	CategorySmallPets  CommunityCategory = "small-pets"
	CategoryExoticPets CommunityCategory = "exotic-pets"
	CategoryPetCare    CommunityCategory = "pet-care"
	CategoryTraining   CommunityCategory = "training"
	CategoryHealth     CommunityCategory = "health"
	CategoryAdoption   CommunityCategory = "adoption"
	CategoryOther      CommunityCategory = "other"
)

// CommunityCategories lists every accepted category in display order.
var CommunityCategories = []CommunityCategory{
	CategoryGeneral, CategoryPets, CategoryDogs, CategoryCats, CategoryBirds,
	CategoryFish, CategoryReptiles, CategorySmallPets, CategoryExoticPets,
	CategoryPetCare, CategoryTraining, CategoryHealth, CategoryAdoption, CategoryOther,
}

// Valid reports whether c is one of the known categories.
func (c CommunityCategory) Valid() bool {
	for _, known := range CommunityCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Community is a named, moderated grouping that posts belong to.
// MemberCount and PostCount are derived counters: only the membership
// registry and the post lifecycle write them, always in the same
// transaction as the rows they count.
type Community struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	Name        string            `gorm:"size:21;not null;uniqueIndex" json:"name"`
	DisplayName string            `gorm:"size:21;not null" json:"display_name"`
	Description string            `gorm:"size:500;not null" json:"description"`
	ImagePath   string            `json:"image_path"`
	CreatorID   uint              `gorm:"not null;index" json:"creator_id"`
	Creator     *User             `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	MemberCount int               `gorm:"not null;default:0" json:"member_count"`
	PostCount   int               `gorm:"not null;default:0" json:"post_count"`
	Category    CommunityCategory `gorm:"type:varchar(20);not null;default:'general';index" json:"category"`
	IsPrivate   bool              `gorm:"not null" json:"is_private"`
	IsActive    bool              `gorm:"not null;index" json:"is_active"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Community) TableName() string {
	return "communities"
}
