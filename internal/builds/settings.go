package builds

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/stitts-dev/dfs-lineup-client/internal/dfs"
)

// pageSetting is one sticky UI setting, namespaced per optimizer page so
// the NASCAR page's lineup count never bleeds into the MLB page's.
type pageSetting struct {
	Namespace string         `gorm:"primaryKey"`
	Key       string         `gorm:"primaryKey"`
	Value     datatypes.JSON `json:"value"`
}

// SettingsStore persists sticky page settings in the builds database,
// sharing its in-memory degradation behavior.
type SettingsStore struct {
	store *Store
	mem   map[string]json.RawMessage
}

// NewSettingsStore attaches a settings table to an opened build store
func NewSettingsStore(store *Store) *SettingsStore {
	s := &SettingsStore{store: store}
	if store.db != nil {
		if err := store.db.AutoMigrate(&pageSetting{}); err != nil {
			store.logger.WithError(err).Warn("Settings table unavailable, settings will not persist")
			s.mem = make(map[string]json.RawMessage)
		}
	} else {
		s.mem = make(map[string]json.RawMessage)
	}
	return s
}

// PageNamespace names the settings scope for one optimizer page
func PageNamespace(sport dfs.Sport, site dfs.Site) string {
	return fmt.Sprintf("%s:%s", sport, site)
}

// Set stores a JSON-encodable value under namespace/key
func (s *SettingsStore) Set(namespace, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal setting %s/%s: %w", namespace, key, err)
	}

	if s.mem != nil {
		s.store.mu.Lock()
		s.mem[namespace+"\x00"+key] = data
		s.store.mu.Unlock()
		return nil
	}

	setting := pageSetting{Namespace: namespace, Key: key, Value: datatypes.JSON(data)}
	err = s.store.db.Save(&setting).Error
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// Get decodes the value at namespace/key into dest. Returns ErrNotFound
// when the key has never been set.
func (s *SettingsStore) Get(namespace, key string, dest interface{}) error {
	var raw json.RawMessage

	if s.mem != nil {
		s.store.mu.Lock()
		v, ok := s.mem[namespace+"\x00"+key]
		s.store.mu.Unlock()
		if !ok {
			return ErrNotFound
		}
		raw = v
	} else {
		var setting pageSetting
		err := s.store.db.First(&setting, "namespace = ? AND key = ?", namespace, key).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStorage, err)
		}
		raw = json.RawMessage(setting.Value)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("failed to unmarshal setting %s/%s: %w", namespace, key, err)
	}
	return nil
}

// GetInt returns the int at namespace/key, or fallback when unset or unreadable
func (s *SettingsStore) GetInt(namespace, key string, fallback int) int {
	var v int
	if err := s.Get(namespace, key, &v); err != nil {
		return fallback
	}
	return v
}

// GetString returns the string at namespace/key, or fallback
func (s *SettingsStore) GetString(namespace, key, fallback string) string {
	var v string
	if err := s.Get(namespace, key, &v); err != nil {
		return fallback
	}
	return v
}

// GetBool returns the bool at namespace/key, or fallback
func (s *SettingsStore) GetBool(namespace, key string, fallback bool) bool {
	var v bool
	if err := s.Get(namespace, key, &v); err != nil {
		return fallback
	}
	return v
}
