package jobs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeDemoResponse(t *testing.T, dir string, fileHash string) {
	t.Helper()
	payload := map[string]any{
		"job_id":                 DemoJobID,
		"lyrics":                 "demo lyrics",
		"lyrics_with_timestamps": []map[string]any{{"text": "demo lyrics", "start_s": 0, "stop_s": 1.5}},
		"vocals_url":             "/api/files/" + DemoJobID + "/" + ArtifactVocals,
		"instrumental_url":       "/api/files/" + DemoJobID + "/" + ArtifactInstrumental,
	}
	if fileHash != "" {
		payload["file_hash"] = fileHash
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "response.json"), data, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDemoWithExplicitHash(t *testing.T) {
	m := NewManager(time.Hour)
	dir := t.TempDir()
	writeArtifacts(t, dir)
	writeDemoResponse(t, dir, "abc123")

	if err := LoadDemo(m, dir); err != nil {
		t.Fatalf("LoadDemo: %v", err)
	}

	res, ok := m.DemoResult()
	if !ok || res.Lyrics != "demo lyrics" {
		t.Fatalf("demo result = %+v, ok=%v", res, ok)
	}

	cached, ok := m.LookupCached("abc123")
	if !ok || cached.JobID != DemoJobID {
		t.Fatal("demo should be served from the cache under its file hash")
	}
}

func TestLoadDemoHashesCandidateInput(t *testing.T) {
	m := NewManager(time.Hour)
	dir := t.TempDir()
	writeArtifacts(t, dir)
	writeDemoResponse(t, dir, "")

	input := []byte("fake mp3 bytes")
	if err := os.WriteFile(filepath.Join(dir, "input.mp3"), input, 0644); err != nil {
		t.Fatal(err)
	}

	if err := LoadDemo(m, dir); err != nil {
		t.Fatalf("LoadDemo: %v", err)
	}

	sum := sha256.Sum256(input)
	if _, ok := m.LookupCached(hex.EncodeToString(sum[:])); !ok {
		t.Fatal("uploading the demo input should hit the cache")
	}
}

func TestLoadDemoMissing(t *testing.T) {
	m := NewManager(time.Hour)
	err := LoadDemo(m, t.TempDir())
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
	if _, ok := m.DemoResult(); ok {
		t.Fatal("no demo should be registered")
	}
}

func TestLoadDemoInvalidJSON(t *testing.T) {
	m := NewManager(time.Hour)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "response.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := LoadDemo(m, dir); err == nil {
		t.Fatal("expected error for invalid demo payload")
	}
}
