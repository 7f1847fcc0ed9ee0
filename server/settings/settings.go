package settings

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownSetting = errors.New("unknown setting")
	ErrNotToggle      = errors.New("setting is not a toggle")
)

type Item struct {
	Key      string `json:"key" yaml:"-"`
	Title    string `json:"title" yaml:"-"`
	Subtitle string `json:"subtitle" yaml:"-"`
	Value    Value  `json:"value" yaml:"-"`
}

type Section struct {
	Title string `json:"title"`
	Items []Item `json:"items"`
}

func defaults() []Section {
	return []Section{
		{
			Title: "Audio",
			Items: []Item{
				{Key: "audio_quality", Title: "Audio Quality", Subtitle: "High Quality", Value: Navigation("audio-quality")},
				{Key: "enhanced_audio", Title: "Enhanced Audio", Subtitle: "Spatial audio and EQ", Value: Toggle(false)},
			},
		},
		{
			Title: "Personalization",
			Items: []Item{
				{Key: "theme", Title: "Theme", Subtitle: "Liquid Glass (Default)", Value: Navigation("theme")},
				{Key: "notifications", Title: "Notifications", Subtitle: "New releases and updates", Value: Toggle(true)},
			},
		},
		{
			Title: "Downloads",
			Items: []Item{
				{Key: "auto_download", Title: "Auto Download", Subtitle: "Download on Wi-Fi", Value: Toggle(false)},
				{Key: "storage", Title: "Storage", Value: Navigation("storage")},
			},
		},
		{
			Title: "About",
			Items: []Item{
				{Key: "privacy_policy", Title: "Privacy Policy", Subtitle: "How we protect your data", Value: Navigation("privacy-policy")},
				{Key: "about", Title: "About", Subtitle: "Version 1.0.0", Value: Navigation("about")},
			},
		},
	}
}

// Store keeps the user settings in a yaml file, only values are persisted.
type Store struct {
	path     string
	sections []Section
	mu       sync.RWMutex
}

func Load(path string) (*Store, error) {
	s := &Store{path: path, sections: defaults()}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}

	var saved map[string]Value
	if err := yaml.Unmarshal(data, &saved); err != nil {
		return nil, errors.Join(errors.New("failed to parse settings"), err)
	}

	for key, v := range saved {
		item := s.find(key)
		if item == nil {
			slog.Warn("ignoring unknown setting", slog.String("key", key))
			continue
		}
		if item.Value.Kind != v.Kind {
			slog.Warn("ignoring setting of the wrong kind", slog.String("key", key))
			continue
		}
		item.Value = v
	}

	return s, nil
}

func (s *Store) find(key string) *Item {
	for i := range s.sections {
		for j := range s.sections[i].Items {
			if s.sections[i].Items[j].Key == key {
				return &s.sections[i].Items[j]
			}
		}
	}
	return nil
}

// Sections returns a copy of every section.
func (s *Store) Sections() []Section {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Section, len(s.sections))
	for i, sec := range s.sections {
		out[i] = Section{Title: sec.Title, Items: append([]Item(nil), sec.Items...)}
	}
	return out
}

func (s *Store) Get(key string) (Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item := s.find(key)
	if item == nil {
		return Item{}, fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}
	return *item, nil
}

// SetToggle flips a toggle and persists the settings.
func (s *Store) SetToggle(key string, enabled bool) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.find(key)
	if item == nil {
		return Item{}, fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}
	if item.Value.Kind != KindToggle {
		return Item{}, fmt.Errorf("%w: %s", ErrNotToggle, key)
	}

	previous := item.Value
	item.Value = Toggle(enabled)

	if err := s.save(); err != nil {
		item.Value = previous
		return Item{}, err
	}

	return *item, nil
}

func (s *Store) save() error {
	values := make(map[string]Value)
	for _, sec := range s.sections {
		for _, item := range sec.Items {
			values[item.Key] = item.Value
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(values); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
