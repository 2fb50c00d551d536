package cmd

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jensneuse/graphql-migrate/pkg/rollout"
)

const defaultStateFile = ".gqlmigrate/flags.json"

// loadFlagState seeds the manager from the state file. A missing file is not
// an error; the first run starts empty.
func loadFlagState(path string, manager *rollout.Manager) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var flags []*rollout.FeatureFlag
	if err := json.Unmarshal(data, &flags); err != nil {
		return err
	}
	manager.Import(flags)
	return nil
}

func saveFlagState(path string, manager *rollout.Manager) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(manager.Flags(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
