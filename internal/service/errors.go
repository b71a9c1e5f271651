// Package service implements the application's business rules on top of the
// repositories.
package service

import (
	"errors"

	"pettit/internal/database"
	"pettit/internal/models"
)

// storeError converts a repository failure into an AppError. A missing row
// becomes NOT_FOUND for resource/id (a string id is reported as a name) and a unique violation becomes CONFLICT
// with conflictMsg. AppErrors pass through unchanged.
func storeError(err error, resource string, id any, conflictMsg string) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case database.IsNotFound(err):
		if name, ok := id.(string); ok {
			return models.NewNamedNotFoundError(resource, name)
		}
		return models.NewNotFoundError(resource, id)
	case conflictMsg != "" && database.IsUniqueViolation(err):
		return models.NewConflictError(conflictMsg)
	default:
		return models.NewInternalError(err)
	}
}
