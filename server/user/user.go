package user

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/liquidtune/tunevault/server/config"
	middlewares "github.com/liquidtune/tunevault/server/middleware"
)

const tokenTTL = time.Hour * 24 * 30

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func Login(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	auth := config.Instance().Authentication

	if req.Username != auth.Username ||
		bcrypt.CompareHashAndPassword([]byte(auth.PasswordHash), []byte(req.Password)) != nil {
		slog.Warn("rejected login", slog.String("username", req.Username))
		http.Error(w, "invalid username or password", http.StatusUnauthorized)
		return
	}

	token, err := middlewares.Issue(req.Username, tokenTTL)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middlewares.TOKEN_COOKIE_NAME,
		Value:    token,
		HttpOnly: true,
		Path:     "/",
		Expires:  time.Now().Add(tokenTTL),
		SameSite: http.SameSiteStrictMode,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

func Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middlewares.TOKEN_COOKIE_NAME,
		Value:    "",
		HttpOnly: true,
		Path:     "/",
		MaxAge:   -1,
	})
	w.WriteHeader(http.StatusNoContent)
}
