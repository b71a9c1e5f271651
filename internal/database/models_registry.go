package database

import "pettit/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Community{},
		&models.Membership{},
		&models.Post{},
		&models.PostMedia{},
		&models.PostTag{},
		&models.PostVote{},
		&models.PostSave{},
		&models.PostReport{},
	}
}
