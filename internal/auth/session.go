package auth

import (
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/r9s-ai/open-data-router/internal/keystore"
)

// Method names how a caller authenticated.
type Method string

const (
	MethodAnonymous Method = "anonymous"
	MethodAPIKey    Method = "api_key"
	MethodAccessKey Method = "access_key"
	MethodJWT       Method = "jwt"
)

const ctxSession = "odr.auth.session"

// Session describes the authenticated caller. It is exposed to hooks and
// handlers as an attribute bag.
type Session struct {
	Principal string
	Method    Method
	KeyName   string
	// Commands limits the commands the caller may dispatch; empty means all.
	Commands  []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Allows reports whether the session may dispatch cmd.
func (s *Session) Allows(cmd string) bool {
	if s == nil {
		return false
	}
	return keystore.AccessKey{Commands: s.Commands}.Allows(cmd)
}

func (s *Session) attributes() map[string]any {
	m := map[string]any{
		"principal": s.Principal,
		"method":    string(s.Method),
	}
	if s.KeyName != "" {
		m["key"] = s.KeyName
	}
	if len(s.Commands) > 0 {
		m["commands"] = strings.Join(s.Commands, ",")
	}
	if !s.IssuedAt.IsZero() {
		m["issuedAt"] = s.IssuedAt
	}
	if !s.ExpiresAt.IsZero() {
		m["expiresAt"] = s.ExpiresAt
	}
	return m
}

func (s *Session) AttributeNames() []string {
	if s == nil {
		return nil
	}
	attrs := s.attributes()
	names := make([]string, 0, len(attrs))
	for k := range attrs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (s *Session) Attribute(name string) any {
	if s == nil {
		return nil
	}
	return s.attributes()[name]
}

// SessionFrom returns the session the middleware stored on c.
func SessionFrom(c *gin.Context) *Session {
	if c == nil {
		return nil
	}
	v, ok := c.Get(ctxSession)
	if !ok {
		return nil
	}
	s, _ := v.(*Session)
	return s
}
