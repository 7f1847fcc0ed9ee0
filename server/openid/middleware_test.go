package openid

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/liquidtune/tunevault/server/config"
)

func claims(email string) func(v any) error {
	return func(v any) error {
		data, _ := json.Marshal(map[string]string{"email": email})
		return json.Unmarshal(data, v)
	}
}

func TestAllowed(t *testing.T) {
	config.Instance().OpenId.EmailWhitelist = nil
	assert.True(t, allowed(claims("anyone@example.com")))

	config.Instance().OpenId.EmailWhitelist = []string{"me@example.com"}
	defer func() { config.Instance().OpenId.EmailWhitelist = nil }()

	assert.True(t, allowed(claims("me@example.com")))
	assert.False(t, allowed(claims("other@example.com")))
}

func TestMiddlewareWithoutProvider(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
