// Package handler exposes the core read models and actions to the mobile
// shell over HTTP, plus the live change feed over WebSocket.
package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"spotmatch/app/internal/assistant"
	"spotmatch/app/internal/config"
	"spotmatch/app/internal/feed"
	"spotmatch/app/internal/localization"
	"spotmatch/app/internal/moderation"
	"spotmatch/app/internal/places"
	"spotmatch/app/internal/requests"
	"spotmatch/app/internal/store"
)

// Handler carries the wired dependencies and the per-user sessions.
type Handler struct {
	Store      *store.Service
	Hub        *feed.Manager
	Venues     *places.VenueClient
	Assistant  *assistant.Client
	Moderation *moderation.Service
	Locale     *localization.Localizer
	Cfg        config.Config

	sessions *sessionRegistry
}

// NewHandler builds the handler.
func NewHandler(s *store.Service, hub *feed.Manager, venues *places.VenueClient, asst *assistant.Client, cfg config.Config) *Handler {
	return &Handler{
		Store:      s,
		Hub:        hub,
		Venues:     venues,
		Assistant:  asst,
		Moderation: moderation.NewService(s),
		Locale:     localization.NewLocalizer(),
		Cfg:        cfg,
		sessions:   newSessionRegistry(s, cfg),
	}
}

// lang picks the response language from Accept-Language.
func lang(c *gin.Context) string {
	header := c.GetHeader("Accept-Language")
	if len(header) >= 2 {
		return strings.ToLower(header[:2])
	}
	return localization.DefaultLang
}

// respondError maps domain errors onto API responses. Soft notices
// (duplicates, terminal transitions) are 409s with a notice the UI renders
// as a toast; everything transient carries the raw message plus a retry
// hint.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, requests.ErrAlreadySent):
		c.JSON(http.StatusConflict, gin.H{"notice": h.Locale.GetString(lang(c), "notice.request_duplicate")})
	case errors.Is(err, requests.ErrAlreadyResolved):
		c.JSON(http.StatusConflict, gin.H{"notice": h.Locale.GetString(lang(c), "notice.request_resolved")})
	case errors.Is(err, requests.ErrNotRecipient):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, moderation.ErrSelfReport), errors.Is(err, moderation.ErrUnknownCategory):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, places.ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "retryable": true})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "retryable": true})
	}
}
