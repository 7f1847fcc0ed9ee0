package settings

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLoadDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "settings.yml"))
	require.NoError(t, err)

	item, err := s.Get("notifications")
	require.NoError(t, err)
	assert.Equal(t, Toggle(true), item.Value)

	item, err = s.Get("theme")
	require.NoError(t, err)
	assert.Equal(t, KindNavigation, item.Value.Kind)

	_, err = s.Get("nope")
	assert.ErrorIs(t, err, ErrUnknownSetting)
}

func TestSetTogglePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yml")

	s, err := Load(path)
	require.NoError(t, err)

	_, err = s.SetToggle("enhanced_audio", true)
	require.NoError(t, err)

	_, err = s.SetToggle("theme", true)
	assert.ErrorIs(t, err, ErrNotToggle)

	reloaded, err := Load(path)
	require.NoError(t, err)

	item, err := reloaded.Get("enhanced_audio")
	require.NoError(t, err)
	assert.True(t, item.Value.Enabled)
}

func TestValueYAML(t *testing.T) {
	const doc = "auto_download: true\ntheme:\n  navigate: theme\n"

	var values map[string]Value
	require.NoError(t, yaml.Unmarshal([]byte(doc), &values))

	assert.Equal(t, Toggle(true), values["auto_download"])
	assert.Equal(t, Navigation("theme"), values["theme"])

	var bad map[string]Value
	assert.Error(t, yaml.Unmarshal([]byte("theme: {}\n"), &bad))
	assert.Error(t, yaml.Unmarshal([]byte("auto_download: maybe\n"), &bad))
}

func TestLoadIgnoresMismatchedKinds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yml")
	require.NoError(t, os.WriteFile(path, []byte("theme: true\nunknown: false\n"), 0644))

	s, err := Load(path)
	require.NoError(t, err)

	item, _ := s.Get("theme")
	assert.Equal(t, KindNavigation, item.Value.Kind)
}

func TestRoutes(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "settings.yml"))
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Route("/settings", NewHandler(s, func() (int64, error) { return 2_400_000_000, nil }).ApplyRouter())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/settings/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var sections []Section
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sections))
	require.Len(t, sections, 4)
	assert.Equal(t, "2.4 GB used", sections[2].Items[1].Subtitle)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/settings/auto_download", strings.NewReader(`{"value":true}`)))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/settings/theme", strings.NewReader(`{"value":true}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/settings/missing", strings.NewReader(`{"value":true}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
