package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims are the HS256 bearer token claims. Key names an access key whose
// command patterns apply when Commands is empty.
type Claims struct {
	Key      string   `json:"key,omitempty"`
	Commands []string `json:"cmds,omitempty"`
	jwt.RegisteredClaims
}

type TokenOptions struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
	Now      func() time.Time
}

// Tokens signs and verifies bearer tokens with one shared secret.
type Tokens struct {
	secret []byte
	opts   TokenOptions
}

func NewTokens(opts TokenOptions) (*Tokens, error) {
	if strings.TrimSpace(opts.Secret) == "" {
		return nil, errors.New("jwt secret is empty")
	}
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Tokens{secret: []byte(opts.Secret), opts: opts}, nil
}

// Sign mints a token for subject.
func (t *Tokens) Sign(subject, key string, commands []string) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", errors.New("token subject is empty")
	}
	now := t.opts.Now()
	claims := Claims{
		Key:      key,
		Commands: commands,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    t.opts.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.opts.TTL)),
		},
	}
	if t.opts.Audience != "" {
		claims.Audience = jwt.ClaimStrings{t.opts.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Parse verifies raw and returns its claims.
func (t *Tokens) Parse(raw string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.opts.Now),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if t.opts.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.opts.Issuer))
	}
	if t.opts.Audience != "" {
		opts = append(opts, jwt.WithAudience(t.opts.Audience))
	}
	var claims Claims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// LooksLikeJWT reports whether s has the three-segment compact form.
func LooksLikeJWT(s string) bool {
	return strings.Count(s, ".") == 2 && !strings.ContainsAny(s, " \t")
}
