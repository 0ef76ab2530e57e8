package separate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Demucs runs two-stem (vocals / accompaniment) separation by invoking
// demucs as a subprocess.
type Demucs struct {
	Model  string
	Device string

	python string
	runner func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewDemucs creates a separator for the given demucs model and device.
func NewDemucs(model, device string) *Demucs {
	return &Demucs{
		Model:  model,
		Device: device,
		python: findPython(),
	}
}

// WithRunner sets a custom command runner (for testing).
func (d *Demucs) WithRunner(runner func(ctx context.Context, name string, args ...string) ([]byte, error)) {
	d.runner = runner
}

// Separate splits inputPath into vocals and instrumental stems inside
// workDir and returns their paths. The stems are always named
// vocals.wav and instrumental.wav.
func (d *Demucs) Separate(ctx context.Context, inputPath, workDir string) (string, string, error) {
	rawRoot := filepath.Join(workDir, "demucs_raw")
	if err := os.MkdirAll(rawRoot, 0755); err != nil {
		return "", "", fmt.Errorf("failed to create separation output dir: %w", err)
	}

	args := []string{
		"-m", "demucs.separate",
		"--two-stems", "vocals",
		"-n", d.Model,
		"--device", d.Device,
		"-o", rawRoot,
		inputPath,
	}
	output, err := d.run(ctx, d.python, args...)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", "", fmt.Errorf("demucs is not available: python not found")
		}
		detail := strings.TrimSpace(string(output))
		if detail == "" {
			detail = "no error details provided"
		}
		if strings.Contains(strings.ToLower(detail), "ffmpeg") {
			return "", "", fmt.Errorf("demucs failed because ffmpeg is missing from PATH")
		}
		return "", "", fmt.Errorf("demucs separation failed: %s", detail)
	}

	// Demucs writes <rawRoot>/<model>/<track>/{vocals,no_vocals}.wav.
	trackStem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	trackDir := filepath.Join(rawRoot, d.Model, trackStem)
	vocalsSource := filepath.Join(trackDir, "vocals.wav")
	instrumentalSource := filepath.Join(trackDir, "no_vocals.wav")

	vocalsTarget := filepath.Join(workDir, "vocals.wav")
	instrumentalTarget := filepath.Join(workDir, "instrumental.wav")

	if err := os.Rename(vocalsSource, vocalsTarget); err != nil {
		return "", "", fmt.Errorf("demucs completed but expected output files were not found")
	}
	if err := os.Rename(instrumentalSource, instrumentalTarget); err != nil {
		return "", "", fmt.Errorf("demucs completed but expected output files were not found")
	}
	_ = os.RemoveAll(rawRoot)

	return vocalsTarget, instrumentalTarget, nil
}

func (d *Demucs) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if d.runner != nil {
		return d.runner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// findPython returns the interpreter used to invoke demucs.
func findPython() string {
	if path, err := exec.LookPath("python3"); err == nil {
		return path
	}
	return "python"
}
