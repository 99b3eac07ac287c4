// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, checks ownership, writes responses
//	Service (Business layer) → applies the wishlist rules, orchestrates
//	Repository (Data layer)  → reads/writes whole records to a backend
//
// THE DEPENDENCY CHAIN:
//
//	main.go creates:  backend → Repository → Service → Handler
//	At runtime:       Handler calls Service calls Repository calls backend
//
// WishlistService takes a repository.WishlistRepository (interface), not a
// concrete backend, so the same rules run on the local key-value document
// and on the hosted document database.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/wishlist/internal/apperror"
	"github.com/sakif/wishlist/internal/metrics"
	"github.com/sakif/wishlist/internal/model"
	"github.com/sakif/wishlist/internal/preview"
	"github.com/sakif/wishlist/internal/repository"
)

// MaxSaveAttempts bounds how often a mutation is re-run on a fresh read
// after losing a revision race.
const MaxSaveAttempts = 3

// ImageFinder looks up a preview image for a product link.
// *preview.Fetcher satisfies it.
type ImageFinder interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// WishlistService owns every create/read/update/delete over wishlists and
// their embedded items.
//
// It performs no ownership checks: GetWishlist is the capability-by-URL read
// used by the share page, and callers that mutate must check UserID first.
//
// Every mutation is a whole-record read/modify/write. The repository rejects
// a write based on a stale read (apperror.ErrConflict); the service then
// re-runs the mutation on a fresh read, up to MaxSaveAttempts times, so two
// concurrent AddItem calls both land.
type WishlistService struct {
	repo     repository.WishlistRepository
	previews ImageFinder // nil disables preview lookups
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewWishlistService creates a WishlistService. previews and m may be nil.
func NewWishlistService(repo repository.WishlistRepository, previews ImageFinder, m *metrics.Metrics, logger *slog.Logger) *WishlistService {
	return &WishlistService{
		repo:     repo,
		previews: previews,
		metrics:  m,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateWishlist creates an empty, public wishlist owned by userID.
func (s *WishlistService) CreateWishlist(ctx context.Context, userID, title, description string) (*model.Wishlist, error) {
	w := &model.Wishlist{
		UserID:      userID,
		Title:       title,
		Description: description,
		Items:       []model.Item{},
		CreatedAt:   s.now(),
		IsPublic:    true,
	}

	if err := s.repo.Create(ctx, w); err != nil {
		s.logger.Error("failed to create wishlist",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, s.record("create_wishlist", fmt.Errorf("creating wishlist: %w", err))
	}

	s.logger.Info("wishlist created",
		slog.String("id", w.ID),
		slog.String("user_id", userID),
	)
	s.record("create_wishlist", nil)
	return w, nil
}

// GetUserWishlists returns the wishlists owned by userID, newest first. A
// user with no wishlists gets an empty, non-nil slice.
func (s *WishlistService) GetUserWishlists(ctx context.Context, userID string) ([]model.Wishlist, error) {
	lists, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list wishlists",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, s.record("list_wishlists", fmt.Errorf("listing wishlists: %w", err))
	}
	if lists == nil {
		lists = []model.Wishlist{}
	}

	slices.SortStableFunc(lists, func(a, b model.Wishlist) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	s.record("list_wishlists", nil)
	return lists, nil
}

// GetWishlist returns the wishlist with the given ID, or apperror.ErrNotFound.
func (s *WishlistService) GetWishlist(ctx context.Context, id string) (*model.Wishlist, error) {
	w, err := s.repo.GetByID(ctx, id)
	if err != nil {
		// NotFound is an ordinary answer; only log real failures.
		if !errors.Is(err, apperror.ErrNotFound) {
			s.logger.Error("failed to read wishlist",
				slog.String("id", id),
				slog.String("error", err.Error()),
			)
		}
		return nil, s.record("get_wishlist", err)
	}

	s.record("get_wishlist", nil)
	return w, nil
}

// UpdateWishlist merges the patch into the wishlist's metadata. Items,
// owner, creation time and visibility are never touched.
func (s *WishlistService) UpdateWishlist(ctx context.Context, id string, patch model.WishlistPatch) error {
	if err := patch.Validate(); err != nil {
		return s.record("update_wishlist", err)
	}

	err := s.mutate(ctx, id, func(w *model.Wishlist) (bool, error) {
		patch.Apply(w)
		return true, nil
	})
	if err != nil {
		return s.record("update_wishlist", err)
	}

	s.logger.Info("wishlist updated", slog.String("id", id))
	return s.record("update_wishlist", nil)
}

// DeleteWishlist removes the wishlist and every item in it. Deleting an
// unknown ID succeeds.
func (s *WishlistService) DeleteWishlist(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error("failed to delete wishlist",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return s.record("delete_wishlist", fmt.Errorf("deleting wishlist: %w", err))
	}

	s.logger.Info("wishlist deleted", slog.String("id", id))
	return s.record("delete_wishlist", nil)
}

// AddItem appends a new item to the wishlist and returns it.
//
// When the item has a link but no image, a preview image is looked up first.
// A failed lookup just leaves Image nil.
func (s *WishlistService) AddItem(ctx context.Context, wishlistID string, fields model.ItemFields) (*model.Item, error) {
	if err := fields.Validate(); err != nil {
		return nil, s.record("add_item", err)
	}

	image := fields.Image
	if image != nil && *image == "" {
		image = nil
	}
	if image == nil && fields.URL != "" {
		image = s.lookupPreview(ctx, fields.URL)
	}

	item := model.Item{
		ID:      xid.New().String(),
		Name:    fields.Name,
		URL:     fields.URL,
		Price:   fields.Price,
		Notes:   fields.Notes,
		Image:   image,
		AddedAt: s.now(),
	}

	err := s.mutate(ctx, wishlistID, func(w *model.Wishlist) (bool, error) {
		w.Items = append(w.Items, item)
		return true, nil
	})
	if err != nil {
		return nil, s.record("add_item", err)
	}

	s.logger.Info("item added",
		slog.String("wishlist_id", wishlistID),
		slog.String("item_id", item.ID),
	)
	s.record("add_item", nil)
	return &item, nil
}

// UpdateItem merges the patch into the matching item. An unknown wishlist or
// item is not an error; nothing changes.
//
// When the patch changes the item's link without also setting an image, a
// preview image is looked up for the new link. If there is none, or the link
// was cleared, the item loses its image.
func (s *WishlistService) UpdateItem(ctx context.Context, wishlistID, itemID string, patch model.ItemPatch) error {
	if err := patch.Validate(); err != nil {
		return s.record("update_item", err)
	}

	if patch.URL != nil && patch.Image == nil && s.linkChanged(ctx, wishlistID, itemID, *patch.URL) {
		// The old image belonged to the old link. An empty image clears it
		// when the link was removed or the new one has no preview.
		cleared := ""
		patch.Image = &cleared
		if *patch.URL != "" {
			if img := s.lookupPreview(ctx, *patch.URL); img != nil {
				patch.Image = img
			}
		}
	}

	err := s.mutate(ctx, wishlistID, func(w *model.Wishlist) (bool, error) {
		i := w.ItemIndex(itemID)
		if i < 0 {
			return false, nil
		}
		patch.Apply(&w.Items[i])
		return true, nil
	})
	if errors.Is(err, apperror.ErrNotFound) {
		return s.record("update_item", nil)
	}
	if err != nil {
		return s.record("update_item", err)
	}

	s.logger.Info("item updated",
		slog.String("wishlist_id", wishlistID),
		slog.String("item_id", itemID),
	)
	return s.record("update_item", nil)
}

// DeleteItem removes the matching item, keeping the rest in order. An
// unknown wishlist or item is not an error.
func (s *WishlistService) DeleteItem(ctx context.Context, wishlistID, itemID string) error {
	err := s.mutate(ctx, wishlistID, func(w *model.Wishlist) (bool, error) {
		return w.RemoveItem(itemID), nil
	})
	if errors.Is(err, apperror.ErrNotFound) {
		return s.record("delete_item", nil)
	}
	if err != nil {
		return s.record("delete_item", err)
	}

	s.logger.Info("item deleted",
		slog.String("wishlist_id", wishlistID),
		slog.String("item_id", itemID),
	)
	return s.record("delete_item", nil)
}

// mutate runs fn on a fresh copy of the wishlist and saves the result,
// retrying from the read when the save loses a revision race. fn reports
// whether it changed anything; an unchanged record is not written.
//
// fn may run more than once and must only touch the wishlist it is given.
func (s *WishlistService) mutate(ctx context.Context, id string, fn func(w *model.Wishlist) (bool, error)) error {
	for attempt := 1; attempt <= MaxSaveAttempts; attempt++ {
		w, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		changed, err := fn(w)
		if err != nil || !changed {
			return err
		}

		err = s.repo.Save(ctx, w)
		if err == nil {
			return nil
		}
		if !errors.Is(err, apperror.ErrConflict) {
			s.logger.Error("failed to save wishlist",
				slog.String("id", id),
				slog.String("error", err.Error()),
			)
			return err
		}

		s.logger.Debug("wishlist changed underneath, retrying",
			slog.String("id", id),
			slog.Int("attempt", attempt),
		)
	}

	s.logger.Warn("giving up on contended wishlist",
		slog.String("id", id),
		slog.Int("attempts", MaxSaveAttempts),
	)
	return apperror.Conflict("wishlist", id)
}

// linkChanged reports whether the stored item's link differs from url. Any
// read failure counts as "unchanged"; mutate will surface it.
func (s *WishlistService) linkChanged(ctx context.Context, wishlistID, itemID, url string) bool {
	w, err := s.repo.GetByID(ctx, wishlistID)
	if err != nil {
		return false
	}
	i := w.ItemIndex(itemID)
	return i >= 0 && w.Items[i].URL != url
}

// lookupPreview returns the preview image for url, or nil. Failures are
// logged and counted, never returned.
func (s *WishlistService) lookupPreview(ctx context.Context, url string) *string {
	if s.previews == nil {
		return nil
	}

	img, err := s.previews.Fetch(ctx, url)
	if err != nil {
		s.logger.Debug("no preview image",
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
		s.metrics.Preview(previewOutcome(err))
		return nil
	}

	s.metrics.Preview("found")
	return &img
}

// Preview is the stand-alone lookup behind POST /api/preview. Unlike the
// enrichment in AddItem it reports whether an image was found, but a failed
// lookup is still not an error.
func (s *WishlistService) Preview(ctx context.Context, url string) (image string, found bool) {
	img := s.lookupPreview(ctx, url)
	if img == nil {
		return "", false
	}
	return *img, true
}

// record counts the operation's outcome and returns err unchanged.
func (s *WishlistService) record(op string, err error) error {
	s.metrics.StoreOp(op, Outcome(err))
	return err
}

// Outcome classifies err into a short metrics label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperror.ErrValidation):
		return "validation"
	case errors.Is(err, apperror.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return "conflict"
	case errors.Is(err, apperror.ErrAuth):
		return "rejected"
	case errors.Is(err, apperror.ErrStorage):
		return "storage"
	default:
		return "error"
	}
}

func previewOutcome(err error) string {
	if errors.Is(err, preview.ErrNoImage) {
		return "none"
	}
	return "error"
}
