package handler

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/wishlist/internal/apperror"
	"github.com/sakif/wishlist/internal/auth"
	"github.com/sakif/wishlist/internal/model"
	"github.com/sakif/wishlist/internal/service"
)

// SharedHandler serves the read-only share view of a wishlist.
//
// CAPABILITY BY URL:
// Anyone who holds the wishlist ID may read it. There is no ACL beyond the
// IsPublic flag, which every wishlist gets at creation. Routes here use
// OptionalAuth so the page can tell the owner that the list is theirs.
//
// The page templates are parsed once at startup: base.html carries the
// layout with a {{template "content" .}} slot, shared.html fills it.
type SharedHandler struct {
	wishlists *service.WishlistService
	templates *template.Template
	logger    *slog.Logger
}

// NewSharedHandler parses the share page templates from templateDir.
func NewSharedHandler(wishlists *service.WishlistService, templateDir string, logger *slog.Logger) (*SharedHandler, error) {
	tmpl, err := template.ParseFiles(
		filepath.Join(templateDir, "base.html"),
		filepath.Join(templateDir, "shared.html"),
	)
	if err != nil {
		return nil, err
	}

	return &SharedHandler{
		wishlists: wishlists,
		templates: tmpl,
		logger:    logger,
	}, nil
}

// sharedView is the public projection of a wishlist. It leaves out the
// owner's uid and the storage revision.
type sharedView struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Items       []model.Item `json:"items"`
	CreatedAt   string       `json:"createdAt"`
	IsOwner     bool         `json:"isOwner"`
}

// HandleSharedJSON returns a wishlist for anonymous viewing.
//
// HTTP: GET /api/shared/{id}
func (h *SharedHandler) HandleSharedJSON(w http.ResponseWriter, r *http.Request) {
	view, err := h.load(r)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// HandleSharedPage renders the read-only share page.
//
// HTTP: GET /shared/{id}
func (h *SharedHandler) HandleSharedPage(w http.ResponseWriter, r *http.Request) {
	view, err := h.load(r)
	status := http.StatusOK
	data := map[string]any{"Title": "Wishlist"}
	switch {
	case err == nil:
		data["Title"] = view.Title
		data["Wishlist"] = view
	case errors.Is(err, apperror.ErrNotFound):
		status = http.StatusNotFound
		data["Missing"] = true
	default:
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.ExecuteTemplate(w, "base", data); err != nil {
		h.logger.Error("failed to render template",
			slog.String("error", err.Error()),
		)
	}
}

// load fetches the wishlist named in the URL and hides non-public lists
// behind NotFound.
func (h *SharedHandler) load(r *http.Request) (*sharedView, error) {
	id := chi.URLParam(r, "id")

	wl, err := h.wishlists.GetWishlist(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if !wl.IsPublic {
		return nil, apperror.NotFound("wishlist", id)
	}

	view := &sharedView{
		ID:          wl.ID,
		Title:       wl.Title,
		Description: wl.Description,
		Items:       wl.Items,
		CreatedAt:   wl.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if user, ok := auth.UserFromContext(r.Context()); ok {
		view.IsOwner = user.UID == wl.UserID
	}
	return view, nil
}
