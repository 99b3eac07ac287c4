package sqlite

import (
	"context"

	"github.com/rs/xid"
	"github.com/sakif/wishlist/internal/apperror"
	"github.com/sakif/wishlist/internal/model"
	"github.com/sakif/wishlist/internal/repository"
)

// compile-time check that *DB implements repository.WishlistRepository
var _ repository.WishlistRepository = (*DB)(nil)

// Create assigns an xid, sets Revision to 1 and appends the wishlist to the
// collection document.
//
// xid IDs are 20 URL-safe characters and start with a timestamp, so they
// sort roughly by creation time, e.g. "cv37rs3pp9olc6atsptg".
func (db *DB) Create(ctx context.Context, w *model.Wishlist) error {
	w.ID = xid.New().String()
	w.Revision = 1
	if w.Items == nil {
		w.Items = []model.Item{}
	}

	return db.updateDocument(ctx, func(doc *document) (bool, error) {
		doc.Wishlists = append(doc.Wishlists, *w.Clone())
		return true, nil
	})
}

// ListByUser filters the collection by owner. Ordering is left to the
// caller.
func (db *DB) ListByUser(ctx context.Context, userID string) ([]model.Wishlist, error) {
	doc, err := loadDocument(ctx, db.conn)
	if err != nil {
		return nil, err
	}

	lists := make([]model.Wishlist, 0)
	for _, w := range doc.Wishlists {
		if w.UserID == userID {
			lists = append(lists, w)
		}
	}
	return lists, nil
}

// GetByID finds a wishlist by linear scan.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Wishlist, error) {
	doc, err := loadDocument(ctx, db.conn)
	if err != nil {
		return nil, err
	}

	i := doc.index(id)
	if i < 0 {
		return nil, apperror.NotFound("wishlist", id)
	}
	return &doc.Wishlists[i], nil
}

// Save replaces the stored record when its revision still matches.
//
// The revision comparison and the write happen in the same transaction, so
// a writer holding a stale copy gets apperror.ErrConflict instead of
// silently overwriting a newer record.
func (db *DB) Save(ctx context.Context, w *model.Wishlist) error {
	next := w.Clone()
	next.Revision++

	err := db.updateDocument(ctx, func(doc *document) (bool, error) {
		i := doc.index(w.ID)
		if i < 0 {
			return false, apperror.NotFound("wishlist", w.ID)
		}
		if doc.Wishlists[i].Revision != w.Revision {
			return false, apperror.Conflict("wishlist", w.ID)
		}
		doc.Wishlists[i] = *next
		return true, nil
	})
	if err != nil {
		return err
	}

	w.Revision = next.Revision
	return nil
}

// Delete removes the wishlist and, with it, every embedded item. Deleting an
// unknown id changes nothing and succeeds.
func (db *DB) Delete(ctx context.Context, id string) error {
	return db.updateDocument(ctx, func(doc *document) (bool, error) {
		i := doc.index(id)
		if i < 0 {
			return false, nil
		}
		doc.Wishlists = append(doc.Wishlists[:i], doc.Wishlists[i+1:]...)
		return true, nil
	})
}
