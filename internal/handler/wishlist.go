package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/wishlist/internal/apperror"
	"github.com/sakif/wishlist/internal/auth"
	"github.com/sakif/wishlist/internal/model"
	"github.com/sakif/wishlist/internal/service"
)

// Field limits for request validation.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
	MaxItemFieldLength   = 2000
)

// WishlistHandler serves the owner-facing wishlist API.
//
// OWNERSHIP:
// The service deliberately does not know who is calling. Every route here
// runs behind RequireAuth, and every route that names a wishlist first loads
// it and compares its UserID with the caller's uid (see owned).
type WishlistHandler struct {
	wishlists *service.WishlistService
	logger    *slog.Logger
}

// NewWishlistHandler creates a WishlistHandler.
func NewWishlistHandler(wishlists *service.WishlistService, logger *slog.Logger) *WishlistHandler {
	return &WishlistHandler{wishlists: wishlists, logger: logger}
}

// createWishlistRequest is the body of POST /api/wishlists.
type createWishlistRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// HandleList returns the caller's wishlists, newest first.
//
// HTTP: GET /api/wishlists
func (h *WishlistHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user := mustUser(r)

	lists, err := h.wishlists.GetUserWishlists(r.Context(), user.UID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, lists)
}

// HandleCreate creates a wishlist owned by the caller.
//
// HTTP: POST /api/wishlists
// REQUEST BODY: {"title": "Birthday 2024", "description": "optional"}
func (h *WishlistHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user := mustUser(r)

	var req createWishlistRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	title := strings.TrimSpace(req.Title)
	if err := validateTitle(title); err != nil {
		writeError(w, err)
		return
	}
	if err := validateLength("description", req.Description, MaxDescriptionLength); err != nil {
		writeError(w, err)
		return
	}

	wl, err := h.wishlists.CreateWishlist(r.Context(), user.UID, title, strings.TrimSpace(req.Description))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, wl)
}

// HandleGet returns one of the caller's wishlists.
//
// HTTP: GET /api/wishlists/{id}
func (h *WishlistHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	wl, err := h.owned(r)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, wl)
}

// HandleUpdate changes a wishlist's title and/or description and returns
// the updated wishlist.
//
// HTTP: PATCH /api/wishlists/{id}
// REQUEST BODY: {"title": "Birthday 2025"} (any subset of title, description)
func (h *WishlistHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var patch model.WishlistPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, err)
		return
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if err := validateTitle(title); err != nil {
			writeError(w, err)
			return
		}
		patch.Title = &title
	}
	if patch.Description != nil {
		if err := validateLength("description", *patch.Description, MaxDescriptionLength); err != nil {
			writeError(w, err)
			return
		}
	}

	wl, err := h.owned(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.wishlists.UpdateWishlist(r.Context(), wl.ID, patch); err != nil {
		writeError(w, err)
		return
	}

	updated, err := h.wishlists.GetWishlist(r.Context(), wl.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// HandleDelete deletes a wishlist and all its items. Deleting a wishlist
// that no longer exists succeeds, so a double-click is harmless.
//
// HTTP: DELETE /api/wishlists/{id}
func (h *WishlistHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	wl, err := h.owned(r)
	if errors.Is(err, apperror.ErrNotFound) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.wishlists.DeleteWishlist(r.Context(), wl.ID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleAddItem appends an item to one of the caller's wishlists.
//
// HTTP: POST /api/wishlists/{id}/items
// REQUEST BODY: {"name": "Headphones", "url": "...", "price": "$99", "notes": "", "image": null}
func (h *WishlistHandler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	var fields model.ItemFields
	if err := decodeJSON(r, &fields); err != nil {
		writeError(w, err)
		return
	}
	fields.Name = strings.TrimSpace(fields.Name)
	fields.URL = strings.TrimSpace(fields.URL)
	if err := validateItemFields(fields); err != nil {
		writeError(w, err)
		return
	}

	wl, err := h.owned(r)
	if err != nil {
		writeError(w, err)
		return
	}

	item, err := h.wishlists.AddItem(r.Context(), wl.ID, fields)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

// HandleUpdateItem merges changes into an item. An item that no longer
// exists is silently left alone.
//
// HTTP: PATCH /api/wishlists/{id}/items/{itemID}
func (h *WishlistHandler) HandleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var patch model.ItemPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, err)
		return
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		patch.Name = &name
	}
	if err := patch.Validate(); err != nil {
		writeError(w, err)
		return
	}
	for field, v := range map[string]*string{"name": patch.Name, "url": patch.URL, "price": patch.Price, "notes": patch.Notes, "image": patch.Image} {
		if v != nil {
			if err := validateLength(field, *v, MaxItemFieldLength); err != nil {
				writeError(w, err)
				return
			}
		}
	}

	wl, err := h.owned(r)
	if errors.Is(err, apperror.ErrNotFound) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.wishlists.UpdateItem(r.Context(), wl.ID, chi.URLParam(r, "itemID"), patch); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleDeleteItem removes an item. An item that no longer exists is
// silently left alone.
//
// HTTP: DELETE /api/wishlists/{id}/items/{itemID}
func (h *WishlistHandler) HandleDeleteItem(w http.ResponseWriter, r *http.Request) {
	wl, err := h.owned(r)
	if errors.Is(err, apperror.ErrNotFound) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.wishlists.DeleteItem(r.Context(), wl.ID, chi.URLParam(r, "itemID")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// owned loads the wishlist named in the URL and checks that the caller owns
// it. A wishlist owned by someone else is apperror.ErrForbidden, not
// NotFound: the ID is a share capability, so its existence is no secret.
func (h *WishlistHandler) owned(r *http.Request) (*model.Wishlist, error) {
	user := mustUser(r)
	id := chi.URLParam(r, "id")

	wl, err := h.wishlists.GetWishlist(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if wl.UserID != user.UID {
		h.logger.Warn("wishlist access denied",
			slog.String("id", id),
			slog.String("uid", user.UID),
		)
		return nil, apperror.Forbidden("you do not own this wishlist")
	}
	return wl, nil
}

// mustUser returns the authenticated user. Only call it behind RequireAuth.
func mustUser(r *http.Request) *model.User {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		// RequireAuth guarantees a user; reaching this is a routing bug.
		panic("handler: route is missing RequireAuth")
	}
	return user
}

func validateTitle(title string) error {
	if title == "" {
		return apperror.ValidationFailed("title", "title is required")
	}
	return validateLength("title", title, MaxTitleLength)
}

func validateItemFields(f model.ItemFields) error {
	if err := f.Validate(); err != nil {
		return err
	}
	for field, v := range map[string]string{"name": f.Name, "url": f.URL, "price": f.Price, "notes": f.Notes} {
		if err := validateLength(field, v, MaxItemFieldLength); err != nil {
			return err
		}
	}
	if f.Image != nil {
		return validateLength("image", *f.Image, MaxItemFieldLength)
	}
	return nil
}

func validateLength(field, value string, limit int) error {
	if len(value) > limit {
		return apperror.ValidationFailed(field, field+" is too long")
	}
	return nil
}
