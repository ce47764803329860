package bans

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/banlist/internal/access"
	"github.com/router-for-me/banlist/internal/bans"
	log "github.com/sirupsen/logrus"
)

// Handler serves the /bans endpoints.
type Handler struct {
	svc    *bans.Service
	tokens access.TokenSource
}

// NewHandler constructs a Handler.
func NewHandler(svc *bans.Service, tokens access.TokenSource) *Handler {
	return &Handler{svc: svc, tokens: tokens}
}

// banResponse is the wire shape of a ban.
type banResponse struct {
	ID     int32  `json:"id"`
	Reason string `json:"reason"`
}

// List returns every ban.
func (h *Handler) List(c *gin.Context) {
	rows, err := h.svc.ListBans(c.Request.Context(), h.tokens.ExtractToken(c.Request))
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]banResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, banResponse{ID: row.UserID, Reason: row.Reason})
	}
	c.JSON(http.StatusOK, out)
}

// Create adds a batch of bans.
func (h *Handler) Create(c *gin.Context) {
	var body []bans.CreateBan
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := h.svc.CreateBans(c.Request.Context(), h.tokens.ExtractToken(c.Request), body); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Get returns one ban.
func (h *Handler) Get(c *gin.Context) {
	ban, err := h.svc.GetBan(c.Request.Context(), h.tokens.ExtractToken(c.Request), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, banResponse{ID: ban.UserID, Reason: ban.Reason})
}

// Delete removes one ban.
func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.DeleteBan(c.Request.Context(), h.tokens.ExtractToken(c.Request), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func respondError(c *gin.Context, err error) {
	var svcErr *bans.Error
	if !errors.As(err, &svcErr) {
		log.WithError(err).Error("bans: unexpected error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if svcErr.Kind == bans.KindInternal {
		log.WithError(err).WithField("path", c.FullPath()).Error("bans: request failed")
	}
	c.JSON(svcErr.HTTPStatus(), gin.H{"error": svcErr.Message})
}
