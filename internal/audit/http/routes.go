package audithttp

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/harvest-erp/harvest/internal/platform/httpx"
	"github.com/harvest-erp/harvest/internal/shared"
)

const rateLimit = 10
const rateWindow = time.Minute

// MountRoutes registers the timeline and its CSV export. Exports are rate
// limited per user.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(rateLimit, rateWindow,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "too many exports", "retry in a minute")
		}),
	)
	r.Get("/", h.handleTimeline)
	r.With(limiter).Get("/export.csv", h.handleExport)
}

func rateLimitKey(r *http.Request) (string, error) {
	if principal, ok := shared.PrincipalFromContext(r.Context()); ok && principal.UserID > 0 {
		return "user:" + strconv.FormatInt(principal.UserID, 10), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
