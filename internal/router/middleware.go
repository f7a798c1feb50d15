package router

import (
	"context"
	"net/http"
	"strings"

	"github.com/acted/rules-engine/internal/acknowledgment"
	"github.com/acted/rules-engine/internal/models"
)

// SubjectMiddleware stores the caller identity forwarded by the gateway in the request context.
// Authentication itself happens upstream, an anonymous caller only carries a session id.
func SubjectMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject := acknowledgment.Subject{
			UserID:    strings.TrimSpace(r.Header.Get(models.HeaderUserID)),
			SessionID: strings.TrimSpace(r.Header.Get(models.HeaderSessionID)),
		}
		ctx := context.WithValue(r.Context(), models.ContextKeySubject, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
