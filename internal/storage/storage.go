// Package storage defines the archive of finished sessions. Implementations
// live in the memory and valkey subpackages.
package storage

import (
	"context"
	"errors"

	"github.com/OktayBayram/nyx-game/internal/models"
)

var ErrNotFound = errors.New("session not found")

type SessionStore interface {
	Save(ctx context.Context, s models.Session) error
	Recent(ctx context.Context, n int) ([]models.Session, error)
	Get(ctx context.Context, id string) (models.Session, error)
	Close() error
}
