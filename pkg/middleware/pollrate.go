package middleware

import (
	"net/http"
	"sync"
	"time"

	"villa-booking/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// PollRate bounds status-poll frequency per guest+path. Polling is advisory
// only, so throttled clients lose nothing: server-side hold expiry stays
// authoritative. Limiters for idle keys are dropped after an hour.
func PollRate(minInterval time.Duration, logger *zap.Logger) func(http.Handler) http.Handler {
	type pollEntry struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}

	var (
		mu      sync.Mutex
		entries = make(map[string]*pollEntry)
	)

	allow := func(key string) bool {
		mu.Lock()
		defer mu.Unlock()

		now := time.Now()
		e, ok := entries[key]
		if !ok {
			e = &pollEntry{limiter: rate.NewLimiter(rate.Every(minInterval), 1)}
			entries[key] = e
		}
		e.lastSeen = now

		if len(entries) > 1024 {
			for k, v := range entries {
				if now.Sub(v.lastSeen) > time.Hour {
					delete(entries, k)
				}
			}
		}

		return e.limiter.Allow()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			guestID, _ := utils.GetGuestIDFromContext(r.Context())

			if !allow(guestID + "|" + r.URL.Path) {
				logger.Warn("Poll rate exceeded",
					zap.String("guest_id", guestID),
					zap.String("path", r.URL.Path),
				)
				utils.ResponseTooManyRequests(w, "Polling too fast, retry later")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
