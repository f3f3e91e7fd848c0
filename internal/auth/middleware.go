package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/r9s-ai/open-data-router/internal/keystore"
	"github.com/r9s-ai/open-data-router/pkg/apierr"
	"github.com/r9s-ai/open-data-router/pkg/dispatch"
)

// KeyLookup returns the current access keys; the store may be swapped by a
// reload between requests.
type KeyLookup func() *keystore.Store

type Options struct {
	APIKey string
	Keys   KeyLookup
	Tokens *Tokens
}

func (o Options) enabled() bool {
	return strings.TrimSpace(o.APIKey) != "" || o.Keys != nil || o.Tokens != nil
}

// Middleware authenticates the caller from "Authorization: Bearer" or
// "X-Api-Key" and stores a Session. With nothing configured every caller is
// anonymous.
func Middleware(opts Options) gin.HandlerFunc {
	master := strings.TrimSpace(opts.APIKey)
	return func(c *gin.Context) {
		if !opts.enabled() {
			c.Set(ctxSession, &Session{Principal: "anonymous", Method: MethodAnonymous})
			c.Next()
			return
		}
		got := credential(c.Request)
		if s := authenticate(got, master, opts); s != nil {
			c.Set(ctxSession, s)
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, dispatch.ErrorEnvelope(apierr.CodeUnauthorized, "unauthorized"))
	}
}

func credential(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get("Authorization")); strings.HasPrefix(v, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(v, "Bearer "))
	}
	return strings.TrimSpace(r.Header.Get("X-Api-Key"))
}

func authenticate(got, master string, opts Options) *Session {
	if got == "" {
		return nil
	}
	if master != "" && subtle.ConstantTimeCompare([]byte(got), []byte(master)) == 1 {
		return &Session{Principal: "admin", Method: MethodAPIKey}
	}
	var keys *keystore.Store
	if opts.Keys != nil {
		keys = opts.Keys()
	}
	if k, ok := keys.MatchAccessKey(got); ok {
		name := k.Name
		if name == "" {
			name = "access-key"
		}
		return &Session{Principal: name, Method: MethodAccessKey, KeyName: k.Name, Commands: k.Commands}
	}
	if opts.Tokens == nil || !LooksLikeJWT(got) {
		return nil
	}
	claims, err := opts.Tokens.Parse(got)
	if err != nil {
		return nil
	}
	s := &Session{
		Principal: claims.Subject,
		Method:    MethodJWT,
		KeyName:   claims.Key,
		Commands:  claims.Commands,
	}
	if claims.IssuedAt != nil {
		s.IssuedAt = claims.IssuedAt.Time.In(time.Local)
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time.In(time.Local)
	}
	if len(s.Commands) == 0 && claims.Key != "" {
		// A token bound to a key that was removed from keys.yaml is rejected.
		k, ok := keys.ByName(claims.Key)
		if !ok {
			return nil
		}
		s.Commands = k.Commands
	}
	return s
}
