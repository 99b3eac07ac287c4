package auth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/wishlist/internal/apperror"
	"github.com/sakif/wishlist/internal/identity"
)

func TestDemoAuthenticate_AnonymousGetsFreshMockUser(t *testing.T) {
	d := NewDemoAuthenticator(nil, "")

	a, err := d.Authenticate(context.Background(), identity.Credentials{})
	require.NoError(t, err)
	b, err := d.Authenticate(context.Background(), identity.Credentials{})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a.UID, "mock-user-"), "uid = %q", a.UID)
	assert.NotEqual(t, a.UID, b.UID, "every anonymous sign-in is a new identity")
	assert.Equal(t, DemoDisplayName, a.DisplayName)
	assert.Equal(t, DemoEmail, a.Email)
	assert.Equal(t, DemoPhotoURL, a.PhotoURL)
}

func TestDemoAuthenticate_UsernameGivesStableUID(t *testing.T) {
	d := NewDemoAuthenticator(nil, "")

	a, err := d.Authenticate(context.Background(), identity.Credentials{Username: " Alice "})
	require.NoError(t, err)
	b, err := d.Authenticate(context.Background(), identity.Credentials{Username: "alice"})
	require.NoError(t, err)

	assert.Equal(t, "demo-alice", a.UID)
	assert.Equal(t, a.UID, b.UID)
}

func TestDemoAuthenticate_SharedPassword(t *testing.T) {
	ps := NewPasswordServiceForTest(4)
	hash, err := ps.Hash("let-me-in")
	require.NoError(t, err)
	d := NewDemoAuthenticator(ps, hash)

	_, err = d.Authenticate(context.Background(), identity.Credentials{Password: "let-me-in"})
	assert.NoError(t, err)

	_, err = d.Authenticate(context.Background(), identity.Credentials{Password: "nope"})
	assert.True(t, errors.Is(err, apperror.ErrAuth), "want ErrAuth, got %v", err)

	_, err = d.Authenticate(context.Background(), identity.Credentials{})
	assert.True(t, errors.Is(err, apperror.ErrAuth))
}

func TestDemoAuthenticate_MalformedHashIsNotAuthError(t *testing.T) {
	d := NewDemoAuthenticator(NewPasswordServiceForTest(4), "not-a-hash")

	_, err := d.Authenticate(context.Background(), identity.Credentials{Password: "x"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, apperror.ErrAuth))
}
