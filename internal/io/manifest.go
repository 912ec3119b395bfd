package io

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/KyungWonPark/Connectivity/internal/brain"
	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Manifest lists the subjects of a run
type Manifest struct {
	// Group names the subjects pooled for the group decomposition; empty
	// means every subject.
	Group    []string        `yaml:"group,omitempty"`
	Subjects []brain.Subject `yaml:"subjects"`
}

// ReadManifest reads a YAML manifest. Relative paths are resolved against
// the manifest's directory and session entries may be doublestar globs,
// e.g. "100307/rfMRI_REST*/*.npy"; matches are taken in lexical order.
func ReadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	base := filepath.Dir(path)
	for i := range m.Subjects {
		s := &m.Subjects[i]
		if s.Primary != "" {
			s.Primary = resolve(base, s.Primary)
		}

		var sessions []string
		for _, pattern := range s.Sessions {
			matches, err := expand(resolve(base, pattern))
			if err != nil {
				return nil, fmt.Errorf("subject %s: %w", s.ID, err)
			}
			sessions = append(sessions, matches...)
		}
		s.Sessions = sessions
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}

	return &m, nil
}

// Validate checks subject ids are unique and every subject has sessions
func (m *Manifest) Validate() error {
	if len(m.Subjects) == 0 {
		return errors.New("no subjects")
	}

	seen := make(map[string]bool, len(m.Subjects))
	for _, s := range m.Subjects {
		if s.ID == "" {
			return errors.New("subject without id")
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate subject id %s", s.ID)
		}
		seen[s.ID] = true

		if len(s.Sessions) == 0 {
			return fmt.Errorf("subject %s has no sessions", s.ID)
		}
	}

	for _, id := range m.Group {
		if !seen[id] {
			return fmt.Errorf("group subject %s is not listed", id)
		}
	}

	return nil
}

// GroupSubjects returns the subjects pooled for the group decomposition
func (m *Manifest) GroupSubjects() []brain.Subject {
	if len(m.Group) == 0 {
		return m.Subjects
	}

	wanted := make(map[string]bool, len(m.Group))
	for _, id := range m.Group {
		wanted[id] = true
	}

	var subjects []brain.Subject
	for _, s := range m.Subjects {
		if wanted[s.ID] {
			subjects = append(subjects, s)
		}
	}

	return subjects
}

// WriteManifest writes m as YAML
func WriteManifest(path string, m *Manifest) error {
	raw, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	return os.WriteFile(path, raw, 0o644)
}

func resolve(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(base, path)
}

func expand(pattern string) ([]string, error) {
	if !strings.ContainsAny(pattern, "*?[{") {
		return []string{pattern}, nil
	}

	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("bad session pattern %s: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("session pattern %s matches no files", pattern)
	}
	sort.Strings(matches)

	return matches, nil
}
