// Package sso redeems the signed handoff tokens the identity service posts
// after an OAuth sign-in. Each token can be redeemed once.
package sso

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"tutorbook/internal/shared/constants"
	"tutorbook/internal/shared/errs"
	"tutorbook/pkg/atomicstore"
	"tutorbook/pkg/logger"
)

const (
	maxNameLength  = 100
	maxEmailLength = 254

	// ProviderUnknown replaces any provider outside the allow-list
	ProviderUnknown = "unknown"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	noncePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{16,128}$`)
	markup       = regexp.MustCompile(`<[^>]*>`)
)

// Identity is the verified caller carried by a redeemed token
type Identity struct {
	Email     string
	Name      string
	Provider  string
	ExpiresAt time.Time
	NonceID   string
}

// Config holds the verification settings shared with the identity service
type Config struct {
	Secret           []byte
	ClockSkew        time.Duration
	MaxTokenLength   int
	AllowedProviders []string
	AllowedOrigin    string
}

// NonceGuard verifies handoff tokens and claims their nonce in the shared
// store. Every failure rejects the token.
type NonceGuard struct {
	store     atomicstore.Store
	cfg       Config
	providers map[string]struct{}
	log       *logger.Logger
	now       func() time.Time
}

func NewNonceGuard(store atomicstore.Store, cfg Config) *NonceGuard {
	providers := make(map[string]struct{}, len(cfg.AllowedProviders))
	for _, p := range cfg.AllowedProviders {
		providers[strings.ToLower(strings.TrimSpace(p))] = struct{}{}
	}
	return &NonceGuard{
		store:     store,
		cfg:       cfg,
		providers: providers,
		log:       logger.GetDefault().WithComponent("sso"),
		now:       time.Now,
	}
}

// CheckOrigin rejects requests whose Origin header is not the configured
// identity service origin
func (g *NonceGuard) CheckOrigin(origin string) error {
	if g.cfg.AllowedOrigin == "" || !strings.EqualFold(strings.TrimRight(origin, "/"), strings.TrimRight(g.cfg.AllowedOrigin, "/")) {
		return ErrOriginMismatch
	}
	return nil
}

// Redeem verifies token and claims its nonce. Concurrent redemptions of the
// same token race on the claim and exactly one returns an Identity.
func (g *NonceGuard) Redeem(ctx context.Context, token string) (Identity, error) {
	payload, err := g.verify(token)
	if err != nil {
		return Identity{}, err
	}

	claims, err := decodeClaims(payload)
	if err != nil {
		return Identity{}, err
	}

	identity, err := g.validate(claims)
	if err != nil {
		return Identity{}, err
	}

	if err := g.claim(ctx, identity); err != nil {
		return Identity{}, err
	}

	g.log.DebugContext(ctx, "handoff token redeemed", "provider", identity.Provider)
	return identity, nil
}

// verify checks the token structure and signature and returns the decoded
// payload
func (g *NonceGuard) verify(token string) ([]byte, error) {
	if token == "" || len(token) > g.cfg.MaxTokenLength {
		return nil, ErrMalformedToken
	}
	if strings.Count(token, ".") != 1 {
		return nil, ErrMalformedToken
	}

	payloadSeg, sigSeg, _ := strings.Cut(token, ".")
	if payloadSeg == "" || sigSeg == "" {
		return nil, ErrMalformedToken
	}

	signature, err := decodeSegment(sigSeg)
	if err != nil {
		return nil, ErrMalformedToken
	}
	if !hmac.Equal(signature, Sign(g.cfg.Secret, payloadSeg)) {
		return nil, ErrBadSignature
	}

	payload, err := decodeSegment(payloadSeg)
	if err != nil {
		return nil, ErrMalformedToken
	}
	return payload, nil
}

type handoffClaims struct {
	Email    interface{} `json:"email"`
	Name     interface{} `json:"name"`
	Provider interface{} `json:"provider"`
	Exp      interface{} `json:"exp"`
	JTI      interface{} `json:"jti"`
}

func decodeClaims(payload []byte) (handoffClaims, error) {
	var claims handoffClaims
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&claims); err != nil {
		return handoffClaims{}, ErrInvalidPayload
	}
	return claims, nil
}

func (g *NonceGuard) validate(c handoffClaims) (Identity, error) {
	email, _ := c.Email.(string)
	email = strings.ToLower(strings.TrimSpace(email))
	if len(email) > maxEmailLength || !emailPattern.MatchString(email) {
		return Identity{}, ErrInvalidPayload
	}

	name, _ := c.Name.(string)
	name = sanitizeName(name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}

	provider, _ := c.Provider.(string)
	provider = strings.ToLower(strings.TrimSpace(provider))
	if _, ok := g.providers[provider]; !ok {
		provider = ProviderUnknown
	}

	exp, ok := positiveInt(c.Exp)
	if !ok {
		return Identity{}, ErrInvalidPayload
	}

	now := g.now().Unix()
	if now > exp {
		return Identity{}, ErrExpired
	}
	if exp > now+int64(g.cfg.ClockSkew/time.Second) {
		return Identity{}, ErrExpiryTooFar
	}

	jti, _ := c.JTI.(string)
	if !noncePattern.MatchString(jti) {
		return Identity{}, ErrBadNonce
	}

	return Identity{
		Email:     email,
		Name:      name,
		Provider:  provider,
		ExpiresAt: time.Unix(exp, 0),
		NonceID:   jti,
	}, nil
}

// claim records the nonce. The record outlives the token by the skew
// tolerance so it stays present for as long as the token could verify.
func (g *NonceGuard) claim(ctx context.Context, id Identity) error {
	ttl := id.ExpiresAt.Sub(g.now()) + g.cfg.ClockSkew
	if ttl < time.Second {
		ttl = time.Second
	}

	res, err := g.store.ConditionalWrite(ctx, constants.NonceKey(id.NonceID),
		atomicstore.NotExists(),
		atomicstore.Mutation{
			Set: map[string]string{"expiry": strconv.FormatInt(id.ExpiresAt.Unix(), 10)},
			TTL: ttl,
		},
	)
	if err != nil {
		return fmt.Errorf("claim nonce: %w", errs.Storage(err))
	}
	if !res.Applied {
		return ErrNonceUsed
	}
	return nil
}

// Sign returns the HMAC-SHA256 of the encoded payload segment
func Sign(secret []byte, payloadSeg string) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payloadSeg))
	return mac.Sum(nil)
}

// EncodeToken builds a signed handoff token for payload. The identity
// service does the same on its side.
func EncodeToken(secret []byte, payload interface{}) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	payloadSeg := base64.RawURLEncoding.EncodeToString(raw)
	sigSeg := base64.RawURLEncoding.EncodeToString(Sign(secret, payloadSeg))
	return payloadSeg + "." + sigSeg, nil
}

func decodeSegment(seg string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(seg, "="))
}

func positiveInt(v interface{}) (int64, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	i, err := n.Int64()
	if err != nil || i <= 0 {
		return 0, false
	}
	return i, true
}

func sanitizeName(name string) string {
	name = strings.TrimSpace(markup.ReplaceAllString(name, ""))
	name = strings.NewReplacer("<", "", ">", "").Replace(name)
	if utf8.RuneCountInString(name) > maxNameLength {
		name = string([]rune(name)[:maxNameLength])
	}
	return strings.TrimSpace(name)
}
