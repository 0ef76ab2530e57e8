package transcribe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"
)

// ModelConfig locates the files of a sherpa-onnx transducer model.
type ModelConfig struct {
	ModelPath   string
	EncoderPath string
	DecoderPath string
	JoinerPath  string
	TokensPath  string
	NumThreads  int
	SampleRate  int
}

// NewModelConfig builds a configuration from a model directory,
// auto-detecting the model files (int8 quantized versions preferred).
func NewModelConfig(modelDir string) (*ModelConfig, error) {
	config := &ModelConfig{
		ModelPath:  modelDir,
		NumThreads: 2,
		SampleRate: 16000,
	}

	config.EncoderPath = findModelFile(modelDir, []string{
		"encoder-epoch-99-avg-1.int8.onnx",
		"encoder.int8.onnx",
		"encoder-epoch-99-avg-1.onnx",
		"encoder.onnx",
	})
	if config.EncoderPath == "" {
		return nil, fmt.Errorf("encoder model not found in %s", modelDir)
	}

	config.DecoderPath = findModelFile(modelDir, []string{
		"decoder-epoch-99-avg-1.onnx",
		"decoder.onnx",
	})
	if config.DecoderPath == "" {
		return nil, fmt.Errorf("decoder model not found in %s", modelDir)
	}

	config.JoinerPath = findModelFile(modelDir, []string{
		"joiner-epoch-99-avg-1.int8.onnx",
		"joiner.int8.onnx",
		"joiner-epoch-99-avg-1.onnx",
		"joiner.onnx",
	})
	if config.JoinerPath == "" {
		return nil, fmt.Errorf("joiner model not found in %s", modelDir)
	}

	config.TokensPath = findModelFile(modelDir, []string{"tokens.txt"})
	if config.TokensPath == "" {
		return nil, fmt.Errorf("tokens.txt not found in %s", modelDir)
	}

	return config, nil
}

// findModelFile returns the first candidate present in dir, or "".
func findModelFile(dir string, candidates []string) string {
	for _, candidate := range candidates {
		path := filepath.Join(dir, candidate)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Recognizer is a local offline transcriber backed by sherpa-onnx. It is
// used when no remote STT credential is configured.
type Recognizer struct {
	config     *ModelConfig
	recognizer *sherpa.OfflineRecognizer
}

// NewRecognizer creates a local recognizer from a model directory.
func NewRecognizer(modelDir string) (*Recognizer, error) {
	config, err := NewModelConfig(modelDir)
	if err != nil {
		return nil, err
	}

	sherpaConfig := sherpa.OfflineRecognizerConfig{
		FeatConfig: sherpa.FeatureConfig{
			SampleRate: config.SampleRate,
			FeatureDim: 80,
		},
		ModelConfig: sherpa.OfflineModelConfig{
			Transducer: sherpa.OfflineTransducerModelConfig{
				Encoder: config.EncoderPath,
				Decoder: config.DecoderPath,
				Joiner:  config.JoinerPath,
			},
			Tokens:     config.TokensPath,
			NumThreads: config.NumThreads,
			Debug:      0,
		},
	}

	recognizer := sherpa.NewOfflineRecognizer(&sherpaConfig)
	if recognizer == nil {
		return nil, fmt.Errorf("failed to create offline recognizer")
	}

	return &Recognizer{config: config, recognizer: recognizer}, nil
}

// Transcribe decodes a WAV vocals file with the local model.
func (r *Recognizer) Transcribe(_ context.Context, vocalsPath string) (*Transcription, error) {
	if _, err := os.Stat(vocalsPath); err != nil {
		return nil, fmt.Errorf("vocals file not found: %s", vocalsPath)
	}

	wave := sherpa.ReadWave(vocalsPath)
	if wave == nil || len(wave.Samples) == 0 {
		return nil, fmt.Errorf("failed to read WAV file or file is empty")
	}

	stream := sherpa.NewOfflineStream(r.recognizer)
	defer sherpa.DeleteOfflineStream(stream)

	stream.AcceptWaveform(wave.SampleRate, wave.Samples)
	r.recognizer.Decode(stream)

	result := stream.GetResult()
	if result == nil {
		return nil, fmt.Errorf("recognizer produced no result")
	}

	return &Transcription{
		Text:     result.Text,
		Segments: segmentsFromTokens(result.Tokens, result.Timestamps),
	}, nil
}

// Close releases the underlying recognizer.
func (r *Recognizer) Close() error {
	if r.recognizer != nil {
		sherpa.DeleteOfflineRecognizer(r.recognizer)
		r.recognizer = nil
	}
	return nil
}

// segmentsFromTokens builds timed segments from per-token timestamps.
// Each token ends where the next one starts; the final token is given a
// nominal duration.
func segmentsFromTokens(tokens []string, timestamps []float32) []Segment {
	const finalTokenDuration = 0.3

	var segments []Segment
	for i, text := range tokens {
		if text == "" || i >= len(timestamps) {
			continue
		}
		start := float64(timestamps[i])
		stop := start + finalTokenDuration
		if i+1 < len(timestamps) {
			stop = float64(timestamps[i+1])
		}
		segments = append(segments, Segment{Text: text, StartS: start, StopS: stop})
	}
	return segments
}
