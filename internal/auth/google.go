package auth

import (
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"
)

const SessionName = "novelnest_session"

// NewSessionStore builds the cookie store shared by gothic and the device
// session.
func NewSessionStore(secret string, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.MaxAge(30 * 24 * 60 * 60)
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = secure
	store.Options.SameSite = http.SameSiteLaxMode
	return store
}

func SetupGoogle(clientID, clientSecret, host string, store sessions.Store) {
	goth.UseProviders(
		google.New(clientID, clientSecret, fmt.Sprintf("%s/api/v1/auth/google/callback", host), "email", "profile"),
	)
	gothic.Store = store
}
