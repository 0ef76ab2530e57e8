package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"soundsgood/internal/jobs"
	"soundsgood/internal/transcribe"
)

type fakeAcquirer struct {
	mu    sync.Mutex
	calls int
	data  []byte
	err   error
	gate  chan struct{} // when non-nil, Acquire blocks until closed
}

func (f *fakeAcquirer) Acquire(_ context.Context, _, destDir string) (string, []byte, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return "", nil, f.err
	}
	path := filepath.Join(destDir, "input.m4a")
	if err := os.WriteFile(path, f.data, 0644); err != nil {
		return "", nil, err
	}
	return path, f.data, nil
}

func (f *fakeAcquirer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSeparator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeSeparator) Separate(_ context.Context, _, workDir string) (string, string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return "", "", f.err
	}
	vocals := filepath.Join(workDir, jobs.ArtifactVocals)
	instrumental := filepath.Join(workDir, jobs.ArtifactInstrumental)
	if err := os.WriteFile(vocals, []byte("vocals"), 0644); err != nil {
		return "", "", err
	}
	if err := os.WriteFile(instrumental, []byte("instrumental"), 0644); err != nil {
		return "", "", err
	}
	return vocals, instrumental, nil
}

func (f *fakeSeparator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeTranscriber struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ string) (*transcribe.Transcription, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &transcribe.Transcription{
		Text:     "la la la",
		Segments: []transcribe.Segment{{Text: "la la la", StartS: 0, StopS: 2.5}},
	}, nil
}

type fixture struct {
	manager    *jobs.Manager
	acquirer   *fakeAcquirer
	separator  *fakeSeparator
	transcribe *fakeTranscriber
	orch       *Orchestrator
	workRoot   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		manager:    jobs.NewManager(time.Hour),
		acquirer:   &fakeAcquirer{data: []byte("audio bytes")},
		separator:  &fakeSeparator{},
		transcribe: &fakeTranscriber{},
		workRoot:   t.TempDir(),
	}
	f.orch = New(f.manager, f.acquirer, f.separator, f.transcribe, func(s string) string { return "key:" + s }, f.workRoot)
	return f
}

func waitForTerminal(t *testing.T, m *jobs.Manager, jobID string) jobs.Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap, ok := m.Get(jobID)
		if !ok {
			t.Fatalf("job %s not registered", jobID)
		}
		if snap.Status == jobs.StatusDone || snap.Status == jobs.StatusError {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal state", jobID)
	return jobs.Snapshot{}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte("audio"))
	b := Fingerprint([]byte("audio"))
	c := Fingerprint([]byte("other"))
	if a != b {
		t.Fatal("fingerprint must be deterministic")
	}
	if a == c {
		t.Fatal("different bytes must not collide")
	}
	if len(a) != 64 {
		t.Fatalf("fingerprint length = %d, want 64 hex chars", len(a))
	}
}

func TestProcessUploadRunsStagesOnce(t *testing.T) {
	f := newFixture(t)
	data := []byte("some song")

	first, err := f.orch.ProcessUpload(context.Background(), data, "song.mp3")
	if err != nil {
		t.Fatalf("ProcessUpload: %v", err)
	}
	if first.Lyrics != "la la la" {
		t.Fatalf("lyrics = %q", first.Lyrics)
	}
	if first.VocalsURL != "/api/files/"+first.JobID+"/vocals.wav" {
		t.Fatalf("vocals URL = %q", first.VocalsURL)
	}

	second, err := f.orch.ProcessUpload(context.Background(), data, "song.mp3")
	if err != nil {
		t.Fatalf("second ProcessUpload: %v", err)
	}
	if second.JobID != first.JobID {
		t.Fatal("repeat submission must return the cached result")
	}
	if f.separator.callCount() != 1 {
		t.Fatalf("separation ran %d times, want 1", f.separator.callCount())
	}
}

func TestProcessUploadReprocessesAfterEviction(t *testing.T) {
	f := newFixture(t)
	data := []byte("some song")

	if _, err := f.orch.ProcessUpload(context.Background(), data, "song.mp3"); err != nil {
		t.Fatal(err)
	}
	f.manager.Cleanup()

	res, err := f.orch.ProcessUpload(context.Background(), data, "song.mp3")
	if err != nil {
		t.Fatal(err)
	}
	if res == nil || f.separator.callCount() != 2 {
		t.Fatalf("separation ran %d times after eviction, want 2", f.separator.callCount())
	}
}

func TestProcessUploadTagsStageErrors(t *testing.T) {
	f := newFixture(t)
	f.separator.err = errors.New("model blew up")

	_, err := f.orch.ProcessUpload(context.Background(), []byte("x"), "song.mp3")
	if err == nil || !strings.Contains(err.Error(), "separation failed") {
		t.Fatalf("err = %v, want separation tag", err)
	}

	f = newFixture(t)
	f.transcribe.err = errors.New("no credits")
	_, err = f.orch.ProcessUpload(context.Background(), []byte("x"), "song.mp3")
	if err == nil || !strings.Contains(err.Error(), "transcription failed") {
		t.Fatalf("err = %v, want transcription tag", err)
	}
}

func TestProcessUploadCleansUpOnFailure(t *testing.T) {
	f := newFixture(t)
	f.transcribe.err = errors.New("no credits")

	if _, err := f.orch.ProcessUpload(context.Background(), []byte("x"), "song.mp3"); err == nil {
		t.Fatal("expected failure")
	}

	entries, err := os.ReadDir(f.workRoot)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("failed job left %d dirs behind", len(entries))
	}
}

func TestSubmitURLDeduplicatesConcurrentRequests(t *testing.T) {
	f := newFixture(t)
	f.acquirer.gate = make(chan struct{})

	first := f.orch.SubmitURL("https://example/video")
	second := f.orch.SubmitURL("https://example/video")
	if first != second {
		t.Fatalf("concurrent submissions got different jobs: %s vs %s", first, second)
	}

	close(f.acquirer.gate)
	snap := waitForTerminal(t, f.manager, first)
	if snap.Status != jobs.StatusDone {
		t.Fatalf("job status = %s (%s)", snap.Status, snap.Error)
	}
	if snap.Result == nil {
		t.Fatal("done job must carry a result")
	}
	if f.acquirer.callCount() != 1 {
		t.Fatalf("acquisition ran %d times, want 1", f.acquirer.callCount())
	}
	if f.separator.callCount() != 1 {
		t.Fatalf("separation ran %d times, want 1", f.separator.callCount())
	}
}

func TestSubmitURLJoinsDoneJob(t *testing.T) {
	f := newFixture(t)

	first := f.orch.SubmitURL("https://example/video")
	waitForTerminal(t, f.manager, first)

	again := f.orch.SubmitURL("https://example/video")
	if again != first {
		t.Fatal("completed job with live artifacts should be joined")
	}
	if f.acquirer.callCount() != 1 {
		t.Fatalf("acquisition ran %d times, want 1", f.acquirer.callCount())
	}
}

func TestSubmitURLJoinsShortCircuitedJob(t *testing.T) {
	f := newFixture(t)
	data := []byte("same exact bytes")
	f.acquirer.data = data

	// Inline upload produces the cached result the URL job will reuse.
	if _, err := f.orch.ProcessUpload(context.Background(), data, "song.wav"); err != nil {
		t.Fatal(err)
	}

	first := f.orch.SubmitURL("https://example/video")
	snap := waitForTerminal(t, f.manager, first)
	if snap.Status != jobs.StatusDone {
		t.Fatalf("status = %s (%s)", snap.Status, snap.Error)
	}

	again := f.orch.SubmitURL("https://example/video")
	if again != first {
		t.Fatalf("done short-circuited job not joined: first=%s again=%s", first, again)
	}
	if f.acquirer.callCount() != 1 {
		t.Fatalf("acquisition ran %d times, want 1", f.acquirer.callCount())
	}
}

func TestSubmitURLFailureAllowsRetry(t *testing.T) {
	f := newFixture(t)
	f.acquirer.err = errors.New("video unavailable")

	first := f.orch.SubmitURL("https://example/video")
	snap := waitForTerminal(t, f.manager, first)
	if snap.Status != jobs.StatusError {
		t.Fatalf("status = %s, want error", snap.Status)
	}
	if !strings.Contains(snap.Error, "download failed") {
		t.Fatalf("error = %q, want download tag", snap.Error)
	}
	if snap.Result != nil {
		t.Fatal("failed job must carry no result")
	}

	second := f.orch.SubmitURL("https://example/video")
	if second == first {
		t.Fatal("failed source must start a brand-new job")
	}
	waitForTerminal(t, f.manager, second)
}

func TestSubmitURLShortCircuitsOnContentMatch(t *testing.T) {
	f := newFixture(t)
	data := []byte("same exact bytes")
	f.acquirer.data = data

	uploaded, err := f.orch.ProcessUpload(context.Background(), data, "song.wav")
	if err != nil {
		t.Fatal(err)
	}

	jobID := f.orch.SubmitURL("https://example/video")
	snap := waitForTerminal(t, f.manager, jobID)
	if snap.Status != jobs.StatusDone {
		t.Fatalf("status = %s (%s)", snap.Status, snap.Error)
	}
	if snap.Result.JobID != uploaded.JobID {
		t.Fatal("URL job should reuse the inline result for identical bytes")
	}
	if f.separator.callCount() != 1 {
		t.Fatalf("separation ran %d times, want 1", f.separator.callCount())
	}
}

func TestSubmitURLAliasesShareOneJob(t *testing.T) {
	f := newFixture(t)
	f.acquirer.gate = make(chan struct{})
	// Normalizer that maps both URL shapes to the same key.
	f.orch.normalize = func(string) string { return "youtube:abc" }

	first := f.orch.SubmitURL("https://example/video?id=abc")
	second := f.orch.SubmitURL("https://short.example/abc")
	if first != second {
		t.Fatal("aliases of the same source must share a job")
	}
	close(f.acquirer.gate)
	waitForTerminal(t, f.manager, first)
}
