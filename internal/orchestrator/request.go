package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pspoerri/tileslicer/internal/model"
)

// TaskRequest is the CLI/API input shape for CreateTask: a source path,
// model type, and the SlicingConfig to run it under. Tagged for both JSON
// and YAML so operators can hand-author either.
type TaskRequest struct {
	Name       string              `json:"name" yaml:"name"`
	SourcePath string              `json:"source_path" yaml:"source_path"`
	ModelType  string              `json:"model_type" yaml:"model_type"`
	Config     model.SlicingConfig `json:"config" yaml:"config"`
}

// LoadTaskRequest reads path and unmarshals it as JSON or YAML, sniffed by
// extension (.yaml/.yml vs everything else).
func LoadTaskRequest(path string) (TaskRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TaskRequest{}, fmt.Errorf("reading task request %s: %w", path, err)
	}
	return ParseTaskRequest(data, path)
}

// ParseTaskRequest unmarshals data as YAML when hint ends in .yaml/.yml,
// otherwise as JSON. hint is typically the source file path but may be any
// string ending in the relevant extension (tests pass a bare hint).
func ParseTaskRequest(data []byte, hint string) (TaskRequest, error) {
	var req TaskRequest
	lower := strings.ToLower(hint)
	if strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
		if err := yaml.Unmarshal(data, &req); err != nil {
			return TaskRequest{}, fmt.Errorf("parsing YAML task request: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, &req); err != nil {
			return TaskRequest{}, fmt.Errorf("parsing JSON task request: %w", err)
		}
	}
	if req.SourcePath == "" {
		return TaskRequest{}, fmt.Errorf("task request missing source_path")
	}
	return req, nil
}
