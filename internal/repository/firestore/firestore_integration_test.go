package firestore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/wishlist/internal/apperror"
	"github.com/sakif/wishlist/internal/model"
)

// newEmulatorStore connects to the Firestore emulator. These tests only run
// when FIRESTORE_EMULATOR_HOST is set, e.g.
//
//	gcloud emulators firestore start --host-port=localhost:8081
//	FIRESTORE_EMULATOR_HOST=localhost:8081 go test ./internal/repository/firestore/
func newEmulatorStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set; skipping Firestore integration test")
	}

	client, err := firestore.NewClient(context.Background(), "demo-wishlist")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return New(client)
}

func TestIntegration_CreateGetList(t *testing.T) {
	s := newEmulatorStore(t)
	ctx := context.Background()
	owner := "u-" + xid.New().String()

	w := &model.Wishlist{UserID: owner, Title: "Birthday 2024", CreatedAt: time.Now().UTC(), IsPublic: true}
	require.NoError(t, s.Create(ctx, w))
	t.Cleanup(func() { s.Delete(ctx, w.ID) })

	assert.NotEmpty(t, w.ID)
	assert.Equal(t, int64(1), w.Revision)

	got, err := s.GetByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "Birthday 2024", got.Title)
	assert.Empty(t, got.Items)

	lists, err := s.ListByUser(ctx, owner)
	require.NoError(t, err)
	require.Len(t, lists, 1)
	assert.Equal(t, w.ID, lists[0].ID)
}

func TestIntegration_SaveRevisionCheck(t *testing.T) {
	s := newEmulatorStore(t)
	ctx := context.Background()

	w := &model.Wishlist{UserID: "u1", Title: "Christmas", CreatedAt: time.Now().UTC()}
	require.NoError(t, s.Create(ctx, w))
	t.Cleanup(func() { s.Delete(ctx, w.ID) })

	first, err := s.GetByID(ctx, w.ID)
	require.NoError(t, err)
	second, err := s.GetByID(ctx, w.ID)
	require.NoError(t, err)

	first.Items = append(first.Items, model.Item{ID: "a", Name: "Scarf"})
	require.NoError(t, s.Save(ctx, first))
	assert.Equal(t, int64(2), first.Revision)

	second.Items = append(second.Items, model.Item{ID: "b", Name: "Gloves"})
	err = s.Save(ctx, second)
	assert.True(t, errors.Is(err, apperror.ErrConflict), "want ErrConflict, got %v", err)
}

func TestIntegration_DeleteAndNotFound(t *testing.T) {
	s := newEmulatorStore(t)
	ctx := context.Background()

	w := &model.Wishlist{UserID: "u1", Title: "Temp", CreatedAt: time.Now().UTC()}
	require.NoError(t, s.Create(ctx, w))

	require.NoError(t, s.Delete(ctx, w.ID))
	require.NoError(t, s.Delete(ctx, w.ID), "second delete should be a no-op")

	_, err := s.GetByID(ctx, w.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound), "want ErrNotFound, got %v", err)
}

func TestIntegration_Sessions(t *testing.T) {
	s := newEmulatorStore(t)
	ctx := context.Background()
	sid := xid.New().String()

	require.NoError(t, s.SaveSession(ctx, sid, &model.User{UID: "u1", DisplayName: "Demo User"}))

	u, err := s.LoadSession(ctx, sid)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "u1", u.UID)

	require.NoError(t, s.DeleteSession(ctx, sid))
	u, err = s.LoadSession(ctx, sid)
	require.NoError(t, err)
	assert.Nil(t, u)
}
