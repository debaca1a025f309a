package orchestrator

import "testing"

func TestParseTaskRequest_JSON(t *testing.T) {
	data := []byte(`{"source_path":"/data/scene.glb","model_type":"mesh","config":{"strategy":"octree","tile_size":100,"max_level":3,"output_format":"b3dm","parallel_processing_count":2}}`)
	req, err := ParseTaskRequest(data, "request.json")
	if err != nil {
		t.Fatalf("ParseTaskRequest: %v", err)
	}
	if req.SourcePath != "/data/scene.glb" || req.Config.MaxLevel != 3 {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestParseTaskRequest_YAML(t *testing.T) {
	data := []byte("source_path: /data/scene.glb\nmodel_type: mesh\nconfig:\n  strategy: grid\n  tile_size: 50\n  max_level: 2\n  output_format: glb\n  parallel_processing_count: 4\n")
	req, err := ParseTaskRequest(data, "request.yaml")
	if err != nil {
		t.Fatalf("ParseTaskRequest: %v", err)
	}
	if req.SourcePath != "/data/scene.glb" || req.Config.TileSize != 50 {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestParseTaskRequest_MissingSourcePathErrors(t *testing.T) {
	if _, err := ParseTaskRequest([]byte(`{}`), "request.json"); err == nil {
		t.Fatalf("expected error for missing source_path")
	}
}
