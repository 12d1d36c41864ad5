package http

import (
	"net/http"
	"time"
)

type CookieOptions struct {
	Domain   string
	Secure   bool
	SameSite http.SameSite
	MaxAge   time.Duration
}

const visitorKey = "_wa-visitor"

// SetVisitorCookie stores the visitor ID on the client.
func SetVisitorCookie(
	w http.ResponseWriter,
	id string,
	options CookieOptions,
) {
	http.SetCookie(w, VisitorCookie(id, options))
}

// VisitorCookie builds the cookie carrying the visitor ID.
func VisitorCookie(id string, options CookieOptions) *http.Cookie {
	return &http.Cookie{
		Name:     visitorKey,
		Value:    id,
		Domain:   options.Domain,
		Path:     "/",
		MaxAge:   int(options.MaxAge.Seconds()),
		Secure:   options.Secure,
		HttpOnly: true,
		SameSite: options.SameSite,
	}
}

// VisitorFromRequest retrieves the visitor ID sent by the client, or an empty
// string if there is none.
func VisitorFromRequest(req *http.Request) string {
	cookie, err := req.Cookie(visitorKey)
	if err != nil {
		return ""
	}
	return cookie.Value
}
