// Package hosted connects to the hosted backend (Firebase): the Firestore
// document database for wishlists and sessions, and Firebase Auth for ID
// token verification.
package hosted

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// Config selects the Firebase project and, optionally, a service-account key
// file. With no key file the SDK falls back to Application Default
// Credentials, and with FIRESTORE_EMULATOR_HOST set it talks to the emulator.
type Config struct {
	ProjectID       string
	CredentialsFile string
}

// Backend owns the Firebase app and the clients created from it.
type Backend struct {
	app       *firebase.App
	firestore *firestore.Client
}

// Open initialises the Firebase app and its Firestore client.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Backend, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("hosted: initialising firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("hosted: creating firestore client: %w", err)
	}

	logger.Info("firestore initialised", slog.String("project", cfg.ProjectID))
	return &Backend{app: app, firestore: client}, nil
}

// Firestore returns the shared document database client.
func (b *Backend) Firestore() *firestore.Client {
	return b.firestore
}

// Auth returns a Firebase Auth client for ID token verification.
func (b *Backend) Auth(ctx context.Context) (*auth.Client, error) {
	client, err := b.app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("hosted: creating auth client: %w", err)
	}
	return client, nil
}

// Close releases the Firestore connection.
func (b *Backend) Close() error {
	return b.firestore.Close()
}
