package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Settings stores the active theme and plugin overrides.
type Settings struct {
	db *bolt.DB
}

// NewSettings creates a settings store on db.
func NewSettings(db *DB) *Settings {
	return &Settings{db: db.Bolt()}
}

// ActiveTheme returns the persisted active theme name, or ErrNotFound.
func (s *Settings) ActiveTheme() (string, error) {
	var name string
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSettings).Get(keyActiveTheme)
		if data == nil {
			return ErrNotFound
		}
		name = string(data)
		return nil
	})
	return name, err
}

// SetActiveTheme persists the active theme name.
func (s *Settings) SetActiveTheme(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSettings).Put(keyActiveTheme, []byte(name))
	})
}

// PluginOverride records an admin decision about a plugin.
type PluginOverride struct {
	Disabled  bool      `json:"disabled"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SetPluginDisabled records whether the admin disabled the plugin.
func (s *Settings) SetPluginDisabled(name string, disabled bool, at time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(PluginOverride{Disabled: disabled, UpdatedAt: at})
		if err != nil {
			return fmt.Errorf("failed to marshal plugin override: %w", err)
		}
		return tx.Bucket(bucketPlugins).Put([]byte(name), data)
	})
}

// PluginOverride returns the override for name, or ErrNotFound.
func (s *Settings) PluginOverride(name string) (PluginOverride, error) {
	var o PluginOverride
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketPlugins).Get([]byte(name))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &o)
	})
	return o, err
}

// DisabledPlugins returns the names of disabled plugins in sorted order.
func (s *Settings) DisabledPlugins() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPlugins).ForEach(func(k, v []byte) error {
			var o PluginOverride
			if err := json.Unmarshal(v, &o); err != nil {
				return fmt.Errorf("failed to unmarshal plugin override %q: %w", k, err)
			}
			if o.Disabled {
				names = append(names, string(k))
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}
