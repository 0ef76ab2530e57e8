package jobs

import (
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// storedJob records the on-disk artifact area for one job.
type storedJob struct {
	dir       string
	createdAt time.Time
}

// cacheEntry maps a content fingerprint to the job that produced the
// cached result.
type cacheEntry struct {
	jobID  string
	result *Result
}

// Manager owns all volatile pipeline state: the artifact store, the
// result cache keyed by content fingerprint, the in-flight registry
// keyed by source key, and the background job registry. One mutex guards
// all four so that lookup/publish and join/register sequences are atomic
// with respect to concurrent requests. Pipeline stages never run under
// this lock.
type Manager struct {
	mu  sync.Mutex
	ttl time.Duration

	stored   map[string]*storedJob // job ID -> artifact area
	cache    map[string]cacheEntry // fingerprint -> cached result
	inflight map[string]string     // source key -> job ID
	tracked  map[string]*Job       // job ID -> background job record

	demoID     string
	demoResult *Result
}

// NewManager creates an empty manager whose artifacts expire after ttl.
func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		ttl:      ttl,
		stored:   make(map[string]*storedJob),
		cache:    make(map[string]cacheEntry),
		inflight: make(map[string]string),
		tracked:  make(map[string]*Job),
	}
}

// LookupCached returns the cached result for a fingerprint if the
// producing job's artifacts are still on disk. A valid hit refreshes the
// job's creation time so recently served results are not evicted. A
// stale entry (artifacts gone) is removed and reported as a miss.
func (m *Manager) LookupCached(fingerprint string) (*Result, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.cache[fingerprint]
	if !ok {
		return nil, false
	}
	if st, ok := m.stored[entry.jobID]; ok && artifactsLive(st.dir) {
		st.createdAt = time.Now()
		return entry.result, true
	}
	delete(m.cache, fingerprint)
	return nil, false
}

// Publish records a job's artifact area and caches its result under the
// given fingerprint. Called exactly once per successful pipeline run,
// after the artifacts are written.
func (m *Manager) Publish(fingerprint, jobID, dir string, res *Result) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stored[jobID] = &storedJob{dir: dir, createdAt: time.Now()}
	m.cache[fingerprint] = cacheEntry{jobID: jobID, result: res}
}

// JoinOrCreate returns the job currently registered for sourceKey, or
// registers a brand-new queued job when none is usable. A registered job
// is joinable while queued or processing, and when done only if the
// artifacts its result points at are still on disk; a done-but-evicted
// or failed predecessor is replaced. The second return value reports whether the caller owns a
// newly created job and must launch it.
func (m *Manager) JoinOrCreate(sourceKey string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.inflight[sourceKey]; ok {
		if j := m.tracked[id]; j != nil {
			switch j.status {
			case StatusQueued, StatusProcessing:
				return j.snapshot(), false
			case StatusDone:
				// A job that short-circuited on a cache hit carries a
				// result owned by an earlier job; liveness is decided by
				// the artifacts that result actually points at.
				storedID := id
				if j.result != nil && j.result.JobID != "" {
					storedID = j.result.JobID
				}
				if st, ok := m.stored[storedID]; ok && artifactsLive(st.dir) {
					return j.snapshot(), false
				}
			}
		}
	}

	job := &Job{
		ID:        uuid.New().String(),
		SourceKey: sourceKey,
		status:    StatusQueued,
	}
	m.tracked[job.ID] = job
	m.inflight[sourceKey] = job.ID
	return job.snapshot(), true
}

// StartProcessing transitions a queued job to processing.
func (m *Manager) StartProcessing(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if j, ok := m.tracked[jobID]; ok && j.status == StatusQueued {
		j.status = StatusProcessing
	}
}

// Complete transitions a job to done with its result. The result may
// belong to an earlier job when the run short-circuited on a cache hit.
func (m *Manager) Complete(jobID string, res *Result) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.tracked[jobID]
	if !ok || terminal(j.status) {
		return
	}
	j.status = StatusDone
	j.result = res
	j.errMsg = ""
}

// Fail transitions a job to error and releases its in-flight
// registration so the same source key can be retried. The registration
// is only removed if this job still owns it; a newer job for the same
// key is left alone.
func (m *Manager) Fail(jobID, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.tracked[jobID]
	if !ok || terminal(j.status) {
		return
	}
	j.status = StatusError
	j.errMsg = msg
	m.releaseLocked(j.SourceKey, jobID)
}

func (m *Manager) releaseLocked(sourceKey, jobID string) {
	if sourceKey == "" {
		return
	}
	if current, ok := m.inflight[sourceKey]; ok && current == jobID {
		delete(m.inflight, sourceKey)
	}
}

// Get returns a snapshot of a background job for polling.
func (m *Manager) Get(jobID string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.tracked[jobID]
	if !ok {
		return Snapshot{}, false
	}
	return j.snapshot(), true
}

// ArtifactPath resolves a whitelisted artifact name for a stored job.
// Unknown names are rejected before the store is consulted.
func (m *Manager) ArtifactPath(jobID, name string) (string, bool) {
	if !IsArtifactName(name) {
		return "", false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.stored[jobID]
	if !ok {
		return "", false
	}
	return filepath.Join(st.dir, name), true
}

// SeedDemo registers a permanently retained demo job. Its artifacts are
// exempt from eviction and its result is served by the demo endpoint.
// When fingerprint is non-empty the result is also published to the
// cache so matching uploads reuse it.
func (m *Manager) SeedDemo(jobID, dir, fingerprint string, res *Result) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.demoID = jobID
	m.demoResult = res
	m.stored[jobID] = &storedJob{dir: dir, createdAt: time.Now()}
	if fingerprint != "" {
		m.cache[fingerprint] = cacheEntry{jobID: jobID, result: res}
	}
}

// DemoResult returns the pre-seeded demo result, if any.
func (m *Manager) DemoResult() (*Result, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.demoResult == nil {
		return nil, false
	}
	return m.demoResult, true
}

// sweepOnce removes artifact areas older than the TTL, except the demo
// entry. Deletion is best-effort: filesystem failures are logged and do
// not block other entries. Cache entries pointing at evicted jobs are
// cleaned up lazily by LookupCached.
func (m *Manager) sweepOnce(now time.Time) {
	m.mu.Lock()
	var dirs []string
	for id, st := range m.stored {
		if id == m.demoID {
			continue
		}
		if now.Sub(st.createdAt) > m.ttl {
			delete(m.stored, id)
			dirs = append(dirs, st.dir)
		}
	}
	m.mu.Unlock()

	for _, dir := range dirs {
		if err := os.RemoveAll(dir); err != nil {
			log.Printf("Failed to remove expired job dir %s: %v", dir, err)
		}
	}
}

// Cleanup removes all non-demo artifact areas. Called at shutdown.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	var dirs []string
	for id, st := range m.stored {
		if id == m.demoID {
			continue
		}
		delete(m.stored, id)
		dirs = append(dirs, st.dir)
	}
	m.mu.Unlock()

	for _, dir := range dirs {
		if err := os.RemoveAll(dir); err != nil {
			log.Printf("Failed to remove job dir %s: %v", dir, err)
		}
	}
}

// artifactsLive reports whether both output stems still exist.
func artifactsLive(dir string) bool {
	for _, name := range []string{ArtifactVocals, ArtifactInstrumental} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return false
		}
	}
	return true
}

func terminal(status string) bool {
	return status == StatusDone || status == StatusError
}
