package handler

import (
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/sakif/wishlist/internal/service"
)

// HomeHandler serves the landing page. The Google callback sends the browser
// here, with ?auth=failed or ?auth=denied when sign-in did not complete.
type HomeHandler struct {
	auth      *service.AuthService
	templates *template.Template
	google    bool
	demo      bool
	logger    *slog.Logger
}

// NewHomeHandler parses the landing page templates from templateDir. google
// and demo say which sign-in buttons to offer.
func NewHomeHandler(authSvc *service.AuthService, templateDir string, google, demo bool, logger *slog.Logger) (*HomeHandler, error) {
	tmpl, err := template.ParseFiles(
		filepath.Join(templateDir, "base.html"),
		filepath.Join(templateDir, "home.html"),
	)
	if err != nil {
		return nil, err
	}

	return &HomeHandler{
		auth:      authSvc,
		templates: tmpl,
		google:    google,
		demo:      demo,
		logger:    logger,
	}, nil
}

var authNotices = map[string]string{
	"failed": "Sign-in failed. Please try again.",
	"denied": "Sign-in was cancelled.",
}

// HandleHome renders the landing page for the browser session.
//
// HTTP: GET /
func (h *HomeHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"Title":  "Home",
		"Google": h.google,
		"Demo":   h.demo,
		"Notice": authNotices[r.URL.Query().Get("auth")],
	}

	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		user, err := h.auth.CurrentUser(r.Context(), cookie.Value)
		if err != nil {
			// The page still works signed out.
			h.logger.Warn("reading session for home page", slog.String("error", err.Error()))
		}
		if user != nil {
			data["User"] = user
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, "base", data); err != nil {
		h.logger.Error("failed to render template",
			slog.String("error", err.Error()),
		)
	}
}
