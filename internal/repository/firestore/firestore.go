// Package firestore implements the repository interfaces on Cloud Firestore.
//
// Each wishlist is one document in the "wishlists" collection, keyed by the
// wishlist ID, with its items embedded as an array field. Listing is an
// equality query on userId; everything else is a point lookup by document
// ID. Session users live in the "sessions" collection keyed by session ID.
package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sakif/wishlist/internal/apperror"
	"github.com/sakif/wishlist/internal/model"
	"github.com/sakif/wishlist/internal/repository"
)

const (
	wishlistsCollection = "wishlists"
	sessionsCollection  = "sessions"
)

var (
	_ repository.WishlistRepository = (*Store)(nil)
	_ repository.SessionRepository  = (*Store)(nil)
)

// Store is the Firestore-backed repository.
type Store struct {
	client *firestore.Client
}

// New wraps an existing client. The client's lifecycle belongs to the
// caller (see hosted.Backend).
func New(client *firestore.Client) *Store {
	return &Store{client: client}
}

func (s *Store) wishlists() *firestore.CollectionRef {
	return s.client.Collection(wishlistsCollection)
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// Create lets Firestore pick the document ID, like an auto-ID add.
func (s *Store) Create(ctx context.Context, w *model.Wishlist) error {
	ref := s.wishlists().NewDoc()
	w.ID = ref.ID
	w.Revision = 1
	if w.Items == nil {
		w.Items = []model.Item{}
	}

	if _, err := ref.Create(ctx, w); err != nil {
		return apperror.StorageFailed("creating wishlist", fmt.Errorf("firestore: create %s: %w", w.ID, err))
	}
	return nil
}

// ListByUser runs the userId equality query. No orderBy is requested, so no
// composite index is needed; the service sorts.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]model.Wishlist, error) {
	snaps, err := s.wishlists().Where("userId", "==", userID).Documents(ctx).GetAll()
	if err != nil {
		return nil, apperror.StorageFailed("listing wishlists", fmt.Errorf("firestore: query userId=%s: %w", userID, err))
	}

	lists := make([]model.Wishlist, 0, len(snaps))
	for _, snap := range snaps {
		var w model.Wishlist
		if err := snap.DataTo(&w); err != nil {
			return nil, apperror.StorageFailed("decoding wishlist", fmt.Errorf("firestore: decode %s: %w", snap.Ref.ID, err))
		}
		w.ID = snap.Ref.ID
		lists = append(lists, w)
	}
	return lists, nil
}

// GetByID is a point lookup by document ID.
func (s *Store) GetByID(ctx context.Context, id string) (*model.Wishlist, error) {
	snap, err := s.wishlists().Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.NotFound("wishlist", id)
		}
		return nil, apperror.StorageFailed("reading wishlist", fmt.Errorf("firestore: get %s: %w", id, err))
	}

	var w model.Wishlist
	if err := snap.DataTo(&w); err != nil {
		return nil, apperror.StorageFailed("decoding wishlist", fmt.Errorf("firestore: decode %s: %w", id, err))
	}
	w.ID = snap.Ref.ID
	return &w, nil
}

// errRevision aborts the transaction without retrying it. RunTransaction
// only retries on contention errors from the server, so returning any other
// error from the callback ends the attempt.
var errRevision = errors.New("firestore: revision mismatch")

// Save replaces the document inside a transaction after comparing revisions.
func (s *Store) Save(ctx context.Context, w *model.Wishlist) error {
	ref := s.wishlists().Doc(w.ID)
	next := w.Clone()
	next.Revision++

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var stored model.Wishlist
		if err := snap.DataTo(&stored); err != nil {
			return err
		}
		if stored.Revision != w.Revision {
			return errRevision
		}
		return tx.Set(ref, next)
	})

	switch {
	case err == nil:
		w.Revision = next.Revision
		return nil
	case errors.Is(err, errRevision):
		return apperror.Conflict("wishlist", w.ID)
	case isNotFound(err):
		return apperror.NotFound("wishlist", w.ID)
	default:
		return apperror.StorageFailed("saving wishlist", fmt.Errorf("firestore: save %s: %w", w.ID, err))
	}
}

// Delete removes the document. Firestore deletes of missing documents
// succeed, which gives the idempotent behaviour for free.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.wishlists().Doc(id).Delete(ctx); err != nil {
		return apperror.StorageFailed("deleting wishlist", fmt.Errorf("firestore: delete %s: %w", id, err))
	}
	return nil
}

// LoadSession returns the session's user or nil.
func (s *Store) LoadSession(ctx context.Context, sid string) (*model.User, error) {
	snap, err := s.client.Collection(sessionsCollection).Doc(sid).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, apperror.StorageFailed("reading session", fmt.Errorf("firestore: get session: %w", err))
	}

	var u model.User
	if err := snap.DataTo(&u); err != nil {
		return nil, apperror.StorageFailed("decoding session", fmt.Errorf("firestore: decode session: %w", err))
	}
	return &u, nil
}

// SaveSession overwrites the session document.
func (s *Store) SaveSession(ctx context.Context, sid string, user *model.User) error {
	if _, err := s.client.Collection(sessionsCollection).Doc(sid).Set(ctx, user); err != nil {
		return apperror.StorageFailed("writing session", fmt.Errorf("firestore: set session: %w", err))
	}
	return nil
}

// DeleteSession removes the session document if present.
func (s *Store) DeleteSession(ctx context.Context, sid string) error {
	if _, err := s.client.Collection(sessionsCollection).Doc(sid).Delete(ctx); err != nil {
		return apperror.StorageFailed("deleting session", fmt.Errorf("firestore: delete session: %w", err))
	}
	return nil
}
