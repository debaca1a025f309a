// Package orchestrator owns the task lifecycle the CLI and any future API
// surface drive: creating/reusing tasks, deriving storage locations,
// dispatching the tiling engine off the request path, and tracking progress
// and ETA. Config/request loading and the ETA estimator live alongside it
// since both are small, orchestrator-only concerns.
package orchestrator

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/pspoerri/tileslicer/internal/model"
)

// Profile is the process-wide defaults an operator can override via a TOML
// file passed to the CLI's -profile flag. Unset fields fall back to the
// built-in defaults below, mirroring the CLI's own flag-default pattern.
type Profile struct {
	WorkerCount            int                   `toml:"worker_count"`
	DefaultStorageLocation model.StorageLocation `toml:"default_storage_location"`
	DefaultOutputRoot      string                `toml:"default_output_root"`
	DefaultStrategy        model.Strategy        `toml:"default_strategy"`
	DefaultOutputFormat    model.OutputFormat    `toml:"default_output_format"`
}

// DefaultProfile returns the built-in defaults used when no -profile flag
// is given, or when a loaded profile leaves a field at its zero value.
func DefaultProfile() Profile {
	return Profile{
		WorkerCount:            4,
		DefaultStorageLocation: model.StorageLocalFilesystem,
		DefaultOutputRoot:      "slices",
		DefaultStrategy:        model.StrategyOctree,
		DefaultOutputFormat:    model.FormatB3DM,
	}
}

// LoadProfile decodes a TOML profile file, filling any zero-valued field
// from DefaultProfile so a partial profile is as valid as a complete one.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	if path == "" {
		return p, nil
	}
	if _, err := toml.DecodeFile(path, &p); err != nil {
		return Profile{}, fmt.Errorf("decoding profile %s: %w", path, err)
	}
	if p.WorkerCount <= 0 {
		p.WorkerCount = DefaultProfile().WorkerCount
	}
	if p.DefaultStorageLocation == "" {
		p.DefaultStorageLocation = DefaultProfile().DefaultStorageLocation
	}
	if p.DefaultOutputRoot == "" {
		p.DefaultOutputRoot = DefaultProfile().DefaultOutputRoot
	}
	if p.DefaultStrategy == "" {
		p.DefaultStrategy = DefaultProfile().DefaultStrategy
	}
	if p.DefaultOutputFormat == "" {
		p.DefaultOutputFormat = DefaultProfile().DefaultOutputFormat
	}
	return p, nil
}

// fileExists is a small os.Stat wrapper reporting whether path can be
// stat'ed. LoadProfile does not call it: a missing profile file is an error.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
