package user

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/liquidtune/tunevault/server/config"
	middlewares "github.com/liquidtune/tunevault/server/middleware"
)

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	auth := &config.Instance().Authentication
	auth.Username = "admin"
	auth.PasswordHash = string(hash)
	auth.JWTSecret = "test-secret"

	rec := httptest.NewRecorder()
	Login(rec, httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"username":"admin","password":"hunter2"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var res map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.NoError(t, middlewares.Verify(res["token"]))

	rec = httptest.NewRecorder()
	Login(rec, httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"username":"admin","password":"wrong"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
