package timer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrCorruptState is returned by StateFile.Load when the file could not be
// parsed. The file is removed.
var ErrCorruptState = errors.New("corrupt timer state")

type persistedState struct {
	Paused *PausedTimer `json:"paused,omitempty"`
	Carry  *Carry       `json:"carry,omitempty"`
}

// StateFile keeps the paused and carry records across restarts.
type StateFile struct {
	path string
}

func NewStateFile(path string) *StateFile {
	return &StateFile{path: path}
}

func (f *StateFile) Path() string { return f.path }

// Load reads the records. A missing file yields nil records.
func (f *StateFile) Load() (*PausedTimer, *Carry, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read state file: %w", err)
	}

	var st persistedState
	if err := json.Unmarshal(data, &st); err != nil {
		os.Remove(f.path)
		return nil, nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if st.Paused != nil && st.Paused.ProjectID == "" {
		st.Paused = nil
	}
	if st.Carry != nil && st.Carry.ProjectID == "" {
		st.Carry = nil
	}
	return st.Paused, st.Carry, nil
}

// Save writes the records atomically. With nothing to keep, the file is
// removed.
func (f *StateFile) Save(paused *PausedTimer, carry *Carry) error {
	if paused == nil && carry == nil {
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove state file: %w", err)
		}
		return nil
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	data, err := json.MarshalIndent(persistedState{Paused: paused, Carry: carry}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	// Write atomically via temp file
	tmpFile, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	name := tmpFile.Name()
	_, err = tmpFile.Write(data)
	if err1 := tmpFile.Close(); err1 != nil && err == nil {
		err = err1
	}
	if err != nil {
		os.Remove(name)
		return fmt.Errorf("write temp state file: %w", err)
	}

	if err := os.Rename(name, f.path); err != nil {
		os.Remove(name)
		return fmt.Errorf("rename state file: %w", err)
	}
	return nil
}
