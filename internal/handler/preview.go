package handler

import (
	"net/http"
	"strings"

	"github.com/sakif/wishlist/internal/apperror"
	"github.com/sakif/wishlist/internal/service"
)

// PreviewHandler lets the item form show a picture before the item is saved.
type PreviewHandler struct {
	wishlists *service.WishlistService
}

// NewPreviewHandler creates a PreviewHandler.
func NewPreviewHandler(wishlists *service.WishlistService) *PreviewHandler {
	return &PreviewHandler{wishlists: wishlists}
}

type previewRequest struct {
	URL string `json:"url"`
}

type previewResponse struct {
	Image *string `json:"image"`
}

// HandlePreview looks up a representative image for a product page.
// Lookup failures are not errors: the answer is just {"image": null}.
//
// HTTP: POST /api/preview
// REQUEST BODY: {"url": "https://shop.example/headphones"}
func (h *PreviewHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	url := strings.TrimSpace(req.URL)
	if url == "" {
		writeError(w, apperror.ValidationFailed("url", "url is required"))
		return
	}

	var resp previewResponse
	if image, ok := h.wishlists.Preview(r.Context(), url); ok {
		resp.Image = &image
	}
	writeJSON(w, http.StatusOK, resp)
}
