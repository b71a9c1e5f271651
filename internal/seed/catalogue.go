package seed

import (
	"context"
	_ "embed"
	"fmt"

	"pettit/internal/models"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed communities.yml
var communitiesYAML []byte

// CommunitySeed is one entry of the built-in community catalogue.
type CommunitySeed struct {
	Name        string                   `yaml:"name"`
	DisplayName string                   `yaml:"displayName"`
	Description string                   `yaml:"description"`
	Category    models.CommunityCategory `yaml:"category"`
	Tags        []string                 `yaml:"tags"`
}

type catalogueFile struct {
	Communities []CommunitySeed `yaml:"communities"`
}

// BuiltInCommunities returns the embedded catalogue.
func BuiltInCommunities() ([]CommunitySeed, error) {
	return ParseCatalogue(communitiesYAML)
}

// ParseCatalogue decodes a catalogue document and rejects unknown categories.
func ParseCatalogue(raw []byte) ([]CommunitySeed, error) {
	var file catalogueFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode community catalogue: %w", err)
	}
	for _, c := range file.Communities {
		if c.Category != "" && !c.Category.Valid() {
			return nil, fmt.Errorf("community %q: unknown category %q", c.Name, c.Category)
		}
	}
	return file.Communities, nil
}

// SystemUsername owns the built-in communities.
const SystemUsername = "pettit_team"

// BuiltIns ensures the system user and every catalogue community exist.
// Communities that already exist are left untouched.
func BuiltIns(ctx context.Context, db *gorm.DB) error {
	owner := models.User{Username: SystemUsername}
	err := db.WithContext(ctx).
		Where(models.User{Username: SystemUsername}).
		Attrs(models.User{Email: SystemUsername + "@pettit.dev", Verified: true}).
		FirstOrCreate(&owner).Error
	if err != nil {
		return fmt.Errorf("ensure system user: %w", err)
	}

	catalogue, err := BuiltInCommunities()
	if err != nil {
		return err
	}
	if _, err := NewSeeder(db, Options{}).createCommunities(ctx, catalogue, []*models.User{&owner}); err != nil {
		return fmt.Errorf("seed built-in communities: %w", err)
	}
	return nil
}
