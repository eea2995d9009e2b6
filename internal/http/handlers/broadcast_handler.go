// Broadcast HTTP handler.
//
// POST /broadcast triggers one outbound campaign. The endpoint is meant for
// the site's scheduler and admin tooling, so it sits behind an optional
// shared secret rather than the public rate limiter. Duplicate triggers within the
// cool-down window succeed with sent=0 and duplicate=true; the caller decides
// whether that is worth alerting on.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/younesbotola/mdr-chatbot-server/internal/broadcast"
	"github.com/younesbotola/mdr-chatbot-server/internal/http/middleware"
)

// Broadcaster runs one outbound campaign; see the broadcast package.
type Broadcaster interface {
	Run(ctx context.Context, req broadcast.Request) (broadcast.Result, error)
}

// Broadcast handles POST /broadcast.
//
// Responses:
//   - 200 with {sent, total, duplicate}
//   - 400 for a malformed body or unknown broadcast type
//   - 401 when a token is configured and the secret is missing or wrong
func (h *Handlers) Broadcast(c *gin.Context) {
	if !h.authorizedBroadcast(c) {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "missing or invalid broadcast token")
		return
	}

	var req broadcast.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if req.Type != broadcast.TypeWeeklyRecipes && req.Type != broadcast.TypeWeeklyAffiliate {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown broadcast type")
		return
	}

	ctx := c.Request.Context()

	// Recipe digests default to the cached recipe list when the caller does
	// not pin an explicit selection.
	if req.Type == broadcast.TypeWeeklyRecipes && len(req.Recipes) == 0 {
		all := h.Recipes.Get(ctx)
		n := len(all)
		if n > 5 {
			n = 5
		}
		req.Recipes = all[:n]
	}
	if req.BotName == "" {
		if bs := h.Branding.Get(ctx); len(bs) > 0 {
			req.BotName = bs[0].BotName
		}
	}

	res, err := h.Orchestrator.Run(ctx, req)
	if err != nil {
		middleware.LoggerFrom(c).Error().Err(err).Msg("broadcast run failed")
		fail(c, http.StatusInternalServerError, ErrCodeBroadcastFailed, "broadcast failed")
		return
	}

	middleware.ObserveBroadcastSends(req.Type, "sent", res.Sent)
	middleware.ObserveBroadcastSends(req.Type, "failed", res.Total-res.Sent)
	if res.Duplicate {
		middleware.ObserveBroadcastSend(req.Type, "skipped")
	}

	lg := middleware.LoggerFrom(c)
	lg.Info().
		Str("type", req.Type).
		Int("sent", res.Sent).
		Int("total", res.Total).
		Bool("duplicate", res.Duplicate).
		Msg("broadcast completed")

	ok(c, http.StatusOK, res)
}

// authorizedBroadcast checks the shared secret, accepted either as a bearer
// token or in X-Broadcast-Token. The gate is opt-in: with no token
// configured the endpoint is open, for deployments that fence it off at the
// network layer instead.
func (h *Handlers) authorizedBroadcast(c *gin.Context) bool {
	if h.BroadcastToken == "" {
		return true
	}
	if v := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "); v == h.BroadcastToken {
		return true
	}
	return c.GetHeader("X-Broadcast-Token") == h.BroadcastToken
}
