package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"pettit/internal/models"
)

// PostTitle trims title and checks its length.
func PostTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", models.NewFieldValidationError("Title is required", models.FieldError{Field: "title", Message: "title is required"})
	}
	if utf8.RuneCountInString(title) > models.MaxTitleLength {
		msg := fmt.Sprintf("title must be at most %d characters", models.MaxTitleLength)
		return "", models.NewFieldValidationError(msg, models.FieldError{Field: "title", Message: msg})
	}
	return title, nil
}

// PostContent trims content and checks its length.
func PostContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", models.NewFieldValidationError("Content is required", models.FieldError{Field: "content", Message: "content is required"})
	}
	if utf8.RuneCountInString(content) > models.MaxContentLength {
		msg := fmt.Sprintf("content must be at most %d characters", models.MaxContentLength)
		return "", models.NewFieldValidationError(msg, models.FieldError{Field: "content", Message: msg})
	}
	return content, nil
}

// PostTags normalizes tags and enforces count and length limits.
func PostTags(raw []string) ([]string, error) {
	tags := models.NormalizeTags(raw)
	if len(tags) > models.MaxTagsPerPost {
		msg := fmt.Sprintf("at most %d tags are allowed", models.MaxTagsPerPost)
		return nil, models.NewFieldValidationError(msg, models.FieldError{Field: "tags", Message: msg})
	}
	for _, t := range tags {
		if utf8.RuneCountInString(t) > models.MaxTagLength {
			msg := fmt.Sprintf("tags must be at most %d characters", models.MaxTagLength)
			return nil, models.NewFieldValidationError(msg, models.FieldError{Field: "tags", Message: msg})
		}
	}
	return tags, nil
}
