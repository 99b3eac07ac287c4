// Package model defines the data structures used throughout the application.
package model

// User is the identity handed out by an identity provider.
//
// Users are NOT stored alongside wishlists. A User exists only for as long as
// the provider's session does: it is created on sign-in, kept in session
// storage, and destroyed on sign-out. The UID is the partition key the
// wishlist store receives from its caller.
//
// The json tags match the shape browsers already know from the hosted auth
// SDKs ({uid, displayName, email, photoURL}); the firestore tags are used when
// sessions are kept in the hosted document database.
type User struct {
	UID         string `json:"uid"         firestore:"uid"`
	DisplayName string `json:"displayName" firestore:"displayName"`
	Email       string `json:"email"       firestore:"email"`
	PhotoURL    string `json:"photoURL"    firestore:"photoURL"`
}

// Clone returns a copy, or nil for a nil user. Providers hand out clones so a
// subscriber can never mutate the shared session value.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
