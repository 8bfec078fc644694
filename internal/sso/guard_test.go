package sso

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tutorbook/internal/shared/errs"
	"tutorbook/pkg/atomicstore"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("handoff-test-secret")

var fixedNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

func newTestGuard(t *testing.T) (*NonceGuard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	guard := NewNonceGuard(atomicstore.NewRedisStore(client, "test", time.Second), Config{
		Secret:           testSecret,
		ClockSkew:        120 * time.Second,
		MaxTokenLength:   2000,
		AllowedProviders: []string{"google", "microsoft"},
		AllowedOrigin:    "https://id.example.edu",
	})
	guard.now = func() time.Time { return fixedNow }
	return guard, mr
}

func payload(exp int64) map[string]interface{} {
	return map[string]interface{}{
		"email":    "Student@Example.edu",
		"name":     "Ada <b>Lovelace</b>",
		"provider": "google",
		"exp":      exp,
		"jti":      "n0nce_0123456789abcdef",
	}
}

func sign(t *testing.T, p map[string]interface{}) string {
	t.Helper()
	token, err := EncodeToken(testSecret, p)
	require.NoError(t, err)
	return token
}

func TestRedeemValidToken(t *testing.T) {
	guard, mr := newTestGuard(t)

	identity, err := guard.Redeem(context.Background(), sign(t, payload(fixedNow.Unix()+1)))
	require.NoError(t, err)

	assert.Equal(t, "student@example.edu", identity.Email)
	assert.Equal(t, "Ada Lovelace", identity.Name)
	assert.Equal(t, "google", identity.Provider)
	assert.Equal(t, "n0nce_0123456789abcdef", identity.NonceID)
	assert.True(t, mr.Exists("test:nonce:n0nce_0123456789abcdef"))
	assert.Greater(t, mr.TTL("test:nonce:n0nce_0123456789abcdef"), time.Duration(0))
}

func TestRedeemFreshnessBoundary(t *testing.T) {
	guard, _ := newTestGuard(t)
	ctx := context.Background()

	_, err := guard.Redeem(ctx, sign(t, payload(fixedNow.Unix()-1)))
	assert.ErrorIs(t, err, ErrExpired)

	_, err = guard.Redeem(ctx, sign(t, payload(fixedNow.Unix()+120+1)))
	assert.ErrorIs(t, err, ErrExpiryTooFar)

	_, err = guard.Redeem(ctx, sign(t, payload(fixedNow.Unix()+1)))
	require.NoError(t, err)

	_, err = guard.Redeem(ctx, sign(t, payload(fixedNow.Unix()+1)))
	assert.ErrorIs(t, err, ErrNonceUsed)
}

func TestRedeemConcurrentExactlyOnce(t *testing.T) {
	guard, _ := newTestGuard(t)
	token := sign(t, payload(fixedNow.Unix()+60))

	const racers = 40
	var wins, used int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := guard.Redeem(context.Background(), token)
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case errors.Is(err, ErrNonceUsed):
				atomic.AddInt32(&used, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	assert.Equal(t, int32(racers-1), used)
}

func TestRedeemRejectsTamperedSignature(t *testing.T) {
	guard, mr := newTestGuard(t)
	token := sign(t, payload(fixedNow.Unix()+60))

	forged, err := EncodeToken([]byte("someone-else"), payload(fixedNow.Unix()+60))
	require.NoError(t, err)
	payloadSeg, _, _ := strings.Cut(token, ".")
	_, forgedSig, _ := strings.Cut(forged, ".")

	_, err = guard.Redeem(context.Background(), payloadSeg+"."+forgedSig)
	assert.ErrorIs(t, err, ErrBadSignature)
	assert.False(t, mr.Exists("test:nonce:n0nce_0123456789abcdef"))
}

func TestRedeemRejectsMalformedStructure(t *testing.T) {
	guard, _ := newTestGuard(t)
	valid := sign(t, payload(fixedNow.Unix()+60))

	cases := map[string]string{
		"empty":          "",
		"no separator":   strings.Replace(valid, ".", "", 1),
		"two separators": valid + ".extra",
		"oversized":      strings.Repeat("a", 2001) + "." + "b",
		"bad base64":     "!!!." + strings.SplitN(valid, ".", 2)[1],
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := guard.Redeem(context.Background(), token)
			require.Error(t, err)
			assert.Equal(t, errs.KindUnauthenticated, errs.KindOf(err))
		})
	}
}

func TestRedeemValidatesFields(t *testing.T) {
	guard, _ := newTestGuard(t)
	ctx := context.Background()

	bad := payload(fixedNow.Unix() + 60)
	bad["email"] = "not-an-email"
	_, err := guard.Redeem(ctx, sign(t, bad))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	bad = payload(fixedNow.Unix() + 60)
	bad["exp"] = "soon"
	_, err = guard.Redeem(ctx, sign(t, bad))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	bad = payload(fixedNow.Unix() + 60)
	bad["jti"] = "short"
	_, err = guard.Redeem(ctx, sign(t, bad))
	assert.ErrorIs(t, err, ErrBadNonce)

	unknown := payload(fixedNow.Unix() + 60)
	unknown["provider"] = "myspace"
	identity, err := guard.Redeem(ctx, sign(t, unknown))
	require.NoError(t, err)
	assert.Equal(t, ProviderUnknown, identity.Provider)
}

func TestRedeemNonJSONPayload(t *testing.T) {
	guard, _ := newTestGuard(t)
	payloadSeg := base64.RawURLEncoding.EncodeToString([]byte("not json"))
	sigSeg := base64.RawURLEncoding.EncodeToString(Sign(testSecret, payloadSeg))

	_, err := guard.Redeem(context.Background(), payloadSeg+"."+sigSeg)
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestRedeemFailsClosedOnStoreError(t *testing.T) {
	guard, mr := newTestGuard(t)
	mr.Close()

	_, err := guard.Redeem(context.Background(), sign(t, payload(fixedNow.Unix()+60)))
	require.Error(t, err)
	assert.Equal(t, errs.KindStorageUnavailable, errs.KindOf(err))
}

func TestCheckOrigin(t *testing.T) {
	guard, _ := newTestGuard(t)

	assert.NoError(t, guard.CheckOrigin("https://id.example.edu"))
	assert.NoError(t, guard.CheckOrigin("https://id.example.edu/"))
	assert.ErrorIs(t, guard.CheckOrigin("https://evil.example.com"), ErrOriginMismatch)
	assert.ErrorIs(t, guard.CheckOrigin(""), ErrOriginMismatch)
}

func TestSanitizeNameCapsLength(t *testing.T) {
	long := strings.Repeat("é", 150)
	assert.Equal(t, 100, len([]rune(sanitizeName(long))))
	assert.Equal(t, "alert(1)", sanitizeName("<script>alert(1)</script>"))
}
