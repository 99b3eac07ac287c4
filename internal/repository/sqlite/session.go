package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sakif/wishlist/internal/apperror"
	"github.com/sakif/wishlist/internal/model"
	"github.com/sakif/wishlist/internal/repository"
)

// compile-time check that *DB implements repository.SessionRepository
var _ repository.SessionRepository = (*DB)(nil)

// sessionKeyPrefix namespaces session users inside the kv table, next to the
// wishlist document.
const sessionKeyPrefix = "wishlist_mock_user:"

func sessionKey(sid string) string {
	return sessionKeyPrefix + sid
}

// LoadSession returns the user signed in to the session, or nil.
func (db *DB) LoadSession(ctx context.Context, sid string) (*model.User, error) {
	raw, ok, err := getValue(ctx, db.conn, sessionKey(sid))
	if err != nil {
		return nil, apperror.StorageFailed("reading session", err)
	}
	if !ok {
		return nil, nil
	}

	var u model.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, apperror.StorageFailed("decoding session",
			fmt.Errorf("sqlite: corrupt session %s: %w", sid, err))
	}
	return &u, nil
}

// SaveSession stores the user for the session, replacing any previous one.
func (db *DB) SaveSession(ctx context.Context, sid string, user *model.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return apperror.StorageFailed("encoding session", err)
	}
	if err := putValue(ctx, db.conn, sessionKey(sid), string(raw)); err != nil {
		return apperror.StorageFailed("writing session", err)
	}
	return nil
}

// DeleteSession forgets the session's user. Unknown sessions are fine.
func (db *DB) DeleteSession(ctx context.Context, sid string) error {
	if err := deleteValue(ctx, db.conn, sessionKey(sid)); err != nil {
		return apperror.StorageFailed("deleting session", err)
	}
	return nil
}
