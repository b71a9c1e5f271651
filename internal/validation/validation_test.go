package validation

import (
	"strings"
	"testing"

	"pettit/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertValidationError(t *testing.T, err error, field string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeValidation, appErr.Code)
	if field != "" {
		require.NotEmpty(t, appErr.Fields)
		assert.Equal(t, field, appErr.Fields[0].Field)
	}
}

func TestValidateCommunityName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{name: "valid lowercase", input: "dogs", ok: true},
		{name: "valid underscore", input: "small_pets", ok: true},
		{name: "valid mixed case", input: "GoldenRetrievers", ok: true},
		{name: "minimum length", input: "abc", ok: true},
		{name: "maximum length", input: strings.Repeat("a", 21), ok: true},
		{name: "too short", input: "ab", ok: false},
		{name: "too long", input: strings.Repeat("a", 22), ok: false},
		{name: "hyphen", input: "small-pets", ok: false},
		{name: "space", input: "pet care", ok: false},
		{name: "reserved popular", input: "popular", ok: false},
		{name: "reserved case insensitive", input: "Posts", ok: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateCommunityName(tc.input)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

type communityInput struct {
	Name        string `json:"name" validate:"required,community_name"`
	DisplayName string `json:"displayName" validate:"trimmed_min,max=21"`
	Category    string `json:"category" validate:"omitempty,category"`
	Role        string `json:"role" validate:"omitempty,role"`
}

func TestStruct(t *testing.T) {
	t.Parallel()

	require.NoError(t, Struct(communityInput{Name: "dogs", DisplayName: "Dogs", Category: "dogs"}))

	assertValidationError(t, Struct(communityInput{Name: "no", DisplayName: "Dogs"}), "name")
	assertValidationError(t, Struct(communityInput{Name: "dogs", DisplayName: "   "}), "displayName")
	assertValidationError(t, Struct(communityInput{Name: "dogs", DisplayName: strings.Repeat("x", 22)}), "displayName")
	assertValidationError(t, Struct(communityInput{Name: "dogs", DisplayName: "Dogs", Category: "horses"}), "category")
	assertValidationError(t, Struct(communityInput{Name: "dogs", DisplayName: "Dogs", Role: "owner"}), "role")
}

func TestPostFields(t *testing.T) {
	t.Parallel()

	title, err := PostTitle("  Good boy  ")
	require.NoError(t, err)
	assert.Equal(t, "Good boy", title)

	_, err = PostTitle("   ")
	assertValidationError(t, err, "title")
	_, err = PostTitle(strings.Repeat("t", models.MaxTitleLength+1))
	assertValidationError(t, err, "title")

	content, err := PostContent("\nwoof\n")
	require.NoError(t, err)
	assert.Equal(t, "woof", content)
	_, err = PostContent(strings.Repeat("c", models.MaxContentLength+1))
	assertValidationError(t, err, "content")

	tags, err := PostTags([]string{"Dogs", " dogs", "", "Cute"})
	require.NoError(t, err)
	assert.Equal(t, []string{"dogs", "cute"}, tags)

	many := make([]string, models.MaxTagsPerPost+1)
	for i := range many {
		many[i] = strings.Repeat("t", i+1)
	}
	_, err = PostTags(many)
	assertValidationError(t, err, "tags")
}
