package http

import (
	"context"
	"net/http"
	"regexp"

	"github.com/whatsagent/landing/internal/rand"
	"go.uber.org/zap"
)

type key string

var visitorCtxKey key = "visitor_context_key"

// WithVisitor stores the visitor ID in the passed context. It may then be
// retrieved with VisitorFromContext.
func WithVisitor(ctx context.Context, visitorID string) context.Context {
	return context.WithValue(ctx, visitorCtxKey, visitorID)
}

// VisitorFromContext retrieves the visitor ID stored by WithVisitor.
func VisitorFromContext(ctx context.Context) (string, bool) {
	visitorID, ok := ctx.Value(visitorCtxKey).(string)
	return visitorID, ok && visitorID != ""
}

// visitorIDRE matches IDs generated by rand.GenerateString(visitorIDBytes).
var visitorIDRE = regexp.MustCompile(`^[A-Za-z0-9_\-=]{16,64}$`)

const visitorIDBytes = 24

// Visitor identifies the anonymous visitor of each request. A visitor without
// a well-formed visitor cookie is issued a new ID. The ID is stored in the
// request context.
func Visitor(logger *zap.Logger, options CookieOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				visitorID := VisitorFromRequest(r)
				if !visitorIDRE.MatchString(visitorID) {
					id, err := rand.GenerateString(visitorIDBytes)
					if err != nil {
						ErrInternal(logger, w, err)
						return
					}
					visitorID = id
				}

				// Always refresh the cookie so its expiration rolls forward.
				SetVisitorCookie(w, visitorID, options)

				ctx := WithVisitor(r.Context(), visitorID)
				next.ServeHTTP(w, r.WithContext(ctx))
			},
		)
	}
}
