package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"example.com/canwatch/internal/profile"
)

// ProfileRef points the daemon at one detection profile document.
type ProfileRef struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	Path string `json:"path" yaml:"path"`
}

// Options configures server creation.
type Options struct {
	StorageDir string
	Profiles   []ProfileRef
	SessionLog string
}

// loadProfiles parses every referenced profile document up front so a broken
// profile fails daemon startup instead of the first analysis request. The
// built-in default profile is always available under its own id.
func loadProfiles(refs []ProfileRef) (map[string]profile.Profile, error) {
	out := map[string]profile.Profile{}
	def := profile.Default()
	out[def.ID] = def
	for _, ref := range refs {
		id := strings.TrimSpace(ref.ID)
		if id == "" {
			return nil, errors.New("profile reference missing id")
		}
		if _, dup := out[id]; dup && id != def.ID {
			return nil, fmt.Errorf("duplicate profile id %q", id)
		}
		path := strings.TrimSpace(ref.Path)
		if path == "" {
			return nil, fmt.Errorf("profile %s missing path", id)
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("profile %s path: %w", id, err)
		}
		if _, err := os.Stat(abs); err != nil {
			return nil, fmt.Errorf("profile %s: %w", id, err)
		}
		p, err := profile.Load(abs)
		if err != nil {
			return nil, err
		}
		p.ID = id
		if ref.Name != "" {
			p.Name = ref.Name
		}
		out[id] = p
	}
	return out, nil
}

func profileIDs(profiles map[string]profile.Profile) []string {
	ids := make([]string, 0, len(profiles))
	for id := range profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
