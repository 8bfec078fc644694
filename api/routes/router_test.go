package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tutorbook/internal/shared/config"
	"tutorbook/pkg/atomicstore"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHealthEngine(t *testing.T) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := atomicstore.NewRedisStore(client, "test", time.Second)
	engine := gin.New()
	NewRouter(&config.Config{APIVersion: "v1"}, nil, Dependencies{Store: store}).setupHealthRoutes(engine)
	return engine, mr
}

func getHealth(engine *gin.Engine) (int, map[string]interface{}) {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	var body map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w.Code, body
}

func TestHealthReportsStore(t *testing.T) {
	engine, mr := newHealthEngine(t)

	code, body := getHealth(engine)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, map[string]interface{}{"store": "ok"}, body["checks"])

	mr.Close()
	code, body = getHealth(engine)
	require.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body["status"])
	assert.Equal(t, map[string]interface{}{"store": "unavailable"}, body["checks"])
}
