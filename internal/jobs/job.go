package jobs

// Job statuses for background (URL) pipeline runs.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusError      = "error"
)

// Artifact filenames produced by every successful job. File serving is
// restricted to exactly this set.
const (
	ArtifactVocals       = "vocals.wav"
	ArtifactInstrumental = "instrumental.wav"
)

// IsArtifactName reports whether name is one of the known output files.
func IsArtifactName(name string) bool {
	return name == ArtifactVocals || name == ArtifactInstrumental
}

// LyricLine is a single transcribed fragment with timing.
type LyricLine struct {
	Text   string  `json:"text"`
	StartS float64 `json:"start_s"`
	StopS  float64 `json:"stop_s"`
}

// Result is the structured output of a completed pipeline run.
// Results are immutable once published.
type Result struct {
	JobID           string      `json:"job_id"`
	Lyrics          string      `json:"lyrics"`
	Lines           []LyricLine `json:"lyrics_with_timestamps"`
	VocalsURL       string      `json:"vocals_url"`
	InstrumentalURL string      `json:"instrumental_url"`
}

// Job is the registry record for one background pipeline run. Its mutable
// fields (status, errMsg, result) are guarded by the Manager's lock and
// written only by the goroutine executing the job.
type Job struct {
	ID        string
	SourceKey string

	status string
	errMsg string
	result *Result
}

// Snapshot is a poller-visible copy of a job's state. Error and Result
// are mutually exclusive: Error is set only in status "error", Result
// only in status "done".
type Snapshot struct {
	JobID  string  `json:"job_id"`
	Status string  `json:"status"`
	Error  string  `json:"error,omitempty"`
	Result *Result `json:"result,omitempty"`
}

func (j *Job) snapshot() Snapshot {
	return Snapshot{
		JobID:  j.ID,
		Status: j.status,
		Error:  j.errMsg,
		Result: j.result,
	}
}
