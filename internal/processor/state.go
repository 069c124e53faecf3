package processor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// RunState is the runner progress kept on disk between restarts.
type RunState struct {
	StartedAt  time.Time `json:"started_at"`
	LastPassAt time.Time `json:"last_pass_at"`
	Processed  int       `json:"processed"`
	Failed     []string  `json:"failed"`

	path string // not serialized
}

// LoadState reads the state at path, or starts a fresh one if the file does
// not exist yet.
func LoadState(path string) (*RunState, error) {
	p := expandHome(path)

	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return &RunState{
				StartedAt: time.Now().UTC(),
				path:      p,
			}, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}

	var s RunState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	s.path = p
	return &s, nil
}

// Save writes the state back to its file.
func (s *RunState) Save() error {
	s.LastPassAt = time.Now().UTC()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	return os.WriteFile(s.path, data, 0o644)
}

// record folds one pass into the state.
func (s *RunState) record(processed int, failed map[string]bool) {
	s.Processed += processed
	s.Failed = s.Failed[:0]
	for path := range failed {
		s.Failed = append(s.Failed, path)
	}
	sort.Strings(s.Failed)
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
