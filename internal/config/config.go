package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Settings holds runtime configuration loaded from environment variables.
// A .env file is loaded by main before Load is called.
type Settings struct {
	Port            string
	STTAPIKey       string        // remote STT credential; empty selects the local recognizer
	STTBaseURL      string        // remote STT endpoint base URL
	ASRModelDir     string        // sherpa-onnx model directory for local transcription
	DemucsModel     string        // demucs model name (e.g. "htdemucs")
	DemucsDevice    string        // "cpu" or "cuda"
	UploadMaxMB     int           // maximum accepted upload size
	JobTTL          time.Duration // artifact lifetime before eviction
	CleanupInterval time.Duration // eviction sweep interval
	CORSOrigins     []string
	WorkDir         string // parent directory for job working areas ("" = system temp)
	DemoDir         string // pre-seeded demo data directory ("" = disabled)
}

// Load reads settings from the environment, applying defaults for
// anything unset.
func Load() *Settings {
	return &Settings{
		Port:            envString("PORT", "8080"),
		STTAPIKey:       os.Getenv("STT_API_KEY"),
		STTBaseURL:      envString("STT_BASE_URL", ""),
		ASRModelDir:     os.Getenv("ASR_MODEL_DIR"),
		DemucsModel:     envString("DEMUCS_MODEL", "htdemucs"),
		DemucsDevice:    envString("DEMUCS_DEVICE", "cpu"),
		UploadMaxMB:     envInt("UPLOAD_MAX_MB", 50),
		JobTTL:          envSeconds("JOB_TTL_SECONDS", 1800),
		CleanupInterval: envSeconds("CLEANUP_INTERVAL_SECONDS", 300),
		CORSOrigins:     envList("CORS_ORIGINS", []string{"http://localhost:5173", "http://127.0.0.1:5173"}),
		WorkDir:         os.Getenv("WORK_DIR"),
		DemoDir:         os.Getenv("DEMO_DIR"),
	}
}

// UploadMaxBytes returns the upload size cap in bytes.
func (s *Settings) UploadMaxBytes() int64 {
	return int64(s.UploadMaxMB) * 1024 * 1024
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envSeconds(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Second
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
