package services

import (
	"errors"

	"studyforum/internal/apperr"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// storageErr 透传已分类的错误，其余包装为存储错误
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperr.Storage(op, err)
}

// notFoundOr maps gorm.ErrRecordNotFound to a not-found error for what.
func notFoundOr(what, op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(what)
	}
	return storageErr(op, err)
}

func requireID(field, id string) error {
	if id == "" {
		return apperr.Invalid(field, "is required")
	}
	if _, err := uuid.Parse(id); err != nil {
		return apperr.Invalid(field, "must be a valid id")
	}
	return nil
}
