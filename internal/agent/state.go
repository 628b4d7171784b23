package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/scrypster/volition/pkg/types"
)

// LoadRunState reads the run state from a JSON file. A missing file yields a
// fresh zero state; that is the first-run path, not an error.
func LoadRunState(path string) (*types.AgentRunState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &types.AgentRunState{}, nil
		}
		return nil, fmt.Errorf("load run state: %w", err)
	}

	var state types.AgentRunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse run state %s: %w", path, err)
	}
	return &state, nil
}

// SaveRunState writes the run state atomically: temp file in the same
// directory, then rename. A crash mid-write never leaves a torn state file.
func SaveRunState(path string, state *types.AgentRunState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run state: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("save run state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".runstate-*")
	if err != nil {
		return fmt.Errorf("save run state: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("save run state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("save run state: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("save run state: %w", err)
	}
	return nil
}
