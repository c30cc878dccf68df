package tenant

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// Config is the delivery setup of one tenant.
type Config struct {
	Destination       string              `json:"destination"`
	EnabledCategories map[string]bool     `json:"enabled_categories"`
	MentionTargets    map[string][]string `json:"roles"`
}

func NewConfig() Config {
	return Config{
		EnabledCategories: make(map[string]bool),
		MentionTargets:    make(map[string][]string),
	}
}

func (c Config) Enabled(category string) bool {
	return c.EnabledCategories[category]
}

func (c Config) Targets(category string) []string {
	return slices.Clone(c.MentionTargets[category])
}

func (c Config) Clone() Config {
	clone := Config{
		Destination:       c.Destination,
		EnabledCategories: maps.Clone(c.EnabledCategories),
		MentionTargets:    make(map[string][]string, len(c.MentionTargets)),
	}
	if clone.EnabledCategories == nil {
		clone.EnabledCategories = make(map[string]bool)
	}
	for category, targets := range c.MentionTargets {
		clone.MentionTargets[category] = slices.Clone(targets)
	}
	return clone
}

// UnmarshalJSON reads both the current layout and the one written by
// earlier releases: numeric "channel_id", category flags as top-level
// booleans and numeric role ids.
func (c *Config) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	cfg := NewConfig()
	for key, raw := range fields {
		switch key {
		case "destination", "channel_id":
			if isNull(raw) {
				continue
			}
			handle, err := decodeHandle(raw)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			if key == "destination" || cfg.Destination == "" {
				cfg.Destination = handle
			}
		case "enabled_categories":
			if isNull(raw) {
				continue
			}
			var enabled map[string]bool
			if err := json.Unmarshal(raw, &enabled); err != nil {
				return fmt.Errorf("invalid enabled_categories: %w", err)
			}
			maps.Copy(cfg.EnabledCategories, enabled)
		case "roles":
			if isNull(raw) {
				continue
			}
			var roles map[string][]json.RawMessage
			if err := json.Unmarshal(raw, &roles); err != nil {
				return fmt.Errorf("invalid roles: %w", err)
			}
			for category, handles := range roles {
				targets := make([]string, 0, len(handles))
				for _, h := range handles {
					target, err := decodeHandle(h)
					if err != nil {
						return fmt.Errorf("invalid role in %s: %w", category, err)
					}
					if !slices.Contains(targets, target) {
						targets = append(targets, target)
					}
				}
				cfg.MentionTargets[category] = targets
			}
		default:
			var enabled bool
			if err := json.Unmarshal(raw, &enabled); err == nil {
				if _, set := cfg.EnabledCategories[key]; !set {
					cfg.EnabledCategories[key] = enabled
				}
			}
		}
	}

	*c = cfg
	return nil
}

// decodeHandle accepts a JSON string or number and returns it verbatim.
func decodeHandle(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
