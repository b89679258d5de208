// Package storage provides the keyword rule persistence layer.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fintalk/iecat/internal/common"
	"github.com/fintalk/iecat/internal/model"
)

// Validation errors.
var (
	ErrNilContext            = errors.New("context cannot be nil")
	ErrEmptyString           = errors.New("string parameter cannot be empty")
	ErrInvalidType           = errors.New("invalid transaction type")
	ErrInvalidID             = errors.New("invalid rule id")
	ErrUnsupportedDriver     = errors.New("unsupported database driver")
	ErrSchemaVersionMismatch = errors.New("database schema version mismatch")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateType(t model.TransactionType) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, t)
	}
	return nil
}

func validateID(id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidID, id)
	}
	return nil
}

// unavailable tags driver-level failures so callers can degrade.
func unavailable(err error) error {
	return fmt.Errorf("%w: %w", common.ErrStoreUnavailable, err)
}
