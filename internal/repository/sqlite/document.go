package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sakif/wishlist/internal/apperror"
	"github.com/sakif/wishlist/internal/model"
)

// documentKey is the fixed storage identifier of the wishlist collection.
const documentKey = "wishlist_mock_db"

// document is the persisted layout: {"wishlists": [...]}.
type document struct {
	Wishlists []model.Wishlist `json:"wishlists"`
}

// index returns the position of the wishlist with the given id, or -1.
func (d *document) index(id string) int {
	for i := range d.Wishlists {
		if d.Wishlists[i].ID == id {
			return i
		}
	}
	return -1
}

// loadDocument reads and decodes the collection. An absent key is an empty
// collection; an undecodable value is a storage failure, never silently
// reset.
func loadDocument(ctx context.Context, q querier) (*document, error) {
	raw, ok, err := getValue(ctx, q, documentKey)
	if err != nil {
		return nil, apperror.StorageFailed("reading wishlists", err)
	}
	doc := &document{Wishlists: []model.Wishlist{}}
	if !ok {
		return doc, nil
	}
	if err := json.Unmarshal([]byte(raw), doc); err != nil {
		return nil, apperror.StorageFailed("decoding wishlists",
			fmt.Errorf("sqlite: corrupt %s document: %w", documentKey, err))
	}
	if doc.Wishlists == nil {
		doc.Wishlists = []model.Wishlist{}
	}
	return doc, nil
}

// saveDocument encodes and writes back the whole collection.
func saveDocument(ctx context.Context, q querier, doc *document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return apperror.StorageFailed("encoding wishlists", err)
	}
	if err := putValue(ctx, q, documentKey, string(raw)); err != nil {
		return apperror.StorageFailed("writing wishlists", err)
	}
	return nil
}

// updateDocument runs fn against the current collection inside a
// transaction and writes the collection back when fn reports a change.
// Errors returned by fn abort the transaction and are passed through as-is.
func (db *DB) updateDocument(ctx context.Context, fn func(doc *document) (changed bool, err error)) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return apperror.StorageFailed("starting transaction", fmt.Errorf("sqlite: begin: %w", err))
	}
	// Rollback after Commit is a no-op, so deferring it covers every early return.
	defer tx.Rollback()

	doc, err := loadDocument(ctx, tx)
	if err != nil {
		return err
	}

	changed, err := fn(doc)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	if err := saveDocument(ctx, tx, doc); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperror.StorageFailed("committing wishlists", fmt.Errorf("sqlite: commit: %w", err))
	}
	return nil
}
