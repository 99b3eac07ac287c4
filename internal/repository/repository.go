// Package repository declares the persistence contracts. Implementations live
// in sub-packages: sqlite (a single JSON document in a key-value table, the
// "mock" backend) and firestore (one hosted document per wishlist).
package repository

import (
	"context"

	"github.com/sakif/wishlist/internal/model"
)

// WishlistRepository stores whole wishlist records, items embedded.
//
// Save is a whole-record replace guarded by the record's Revision: it fails
// with apperror.ErrConflict when the stored revision differs from
// w.Revision, and on success stores (and sets) w.Revision+1.
type WishlistRepository interface {
	// Create assigns the ID and Revision (1) and inserts the record.
	Create(ctx context.Context, w *model.Wishlist) error
	// ListByUser returns every wishlist whose UserID matches, in no
	// particular order.
	ListByUser(ctx context.Context, userID string) ([]model.Wishlist, error)
	// GetByID returns apperror.ErrNotFound when the id is unknown.
	GetByID(ctx context.Context, id string) (*model.Wishlist, error)
	Save(ctx context.Context, w *model.Wishlist) error
	// Delete is idempotent: an unknown id is not an error.
	Delete(ctx context.Context, id string) error
}

// SessionRepository is the identity provider's session storage. A session
// holds at most one signed-in user.
type SessionRepository interface {
	// LoadSession returns (nil, nil) when the session has no user.
	LoadSession(ctx context.Context, sid string) (*model.User, error)
	SaveSession(ctx context.Context, sid string, user *model.User) error
	DeleteSession(ctx context.Context, sid string) error
}
