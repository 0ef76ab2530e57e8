package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"soundsgood/internal/acquire"
	"soundsgood/internal/config"
	"soundsgood/internal/separate"
	"soundsgood/internal/transcribe"
)

// One-shot pipeline runner: separates and transcribes a local audio file
// or a video URL without going through the server.
func main() {
	var (
		inputFile = flag.String("i", "", "Input audio file (.mp3 or .wav)")
		inputURL  = flag.String("url", "", "Video URL to download instead of a local file")
		format    = flag.String("format", "text", "Output format: text, json, srt")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -i song.mp3\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -url https://youtu.be/VIDEO -format srt\n", os.Args[0])
	}

	flag.Parse()

	if (*inputFile == "") == (*inputURL == "") {
		fmt.Fprintf(os.Stderr, "Error: exactly one of -i or -url is required\n\n")
		flag.Usage()
		os.Exit(1)
	}
	if *format != "text" && *format != "json" && *format != "srt" {
		fmt.Fprintf(os.Stderr, "Error: invalid format %q, must be text, json, or srt\n", *format)
		os.Exit(1)
	}

	_ = godotenv.Load()
	settings := config.Load()

	ctx := context.Background()

	workDir, err := os.MkdirTemp(settings.WorkDir, "sge-cli-")
	if err != nil {
		fatal("failed to create working dir: %v", err)
	}
	defer os.RemoveAll(workDir)

	inputPath := *inputFile
	if *inputURL != "" {
		fmt.Fprintf(os.Stderr, "Downloading audio for %s\n", acquire.NormalizeSource(*inputURL))
		downloader := acquire.NewDownloader(settings.UploadMaxBytes())
		inputPath, _, err = downloader.Acquire(ctx, *inputURL, workDir)
		if err != nil {
			fatal("download failed: %v", err)
		}
	} else if _, err := os.Stat(inputPath); err != nil {
		fatal("input file not found: %s", inputPath)
	}

	fmt.Fprintln(os.Stderr, "Separating stems...")
	separator := separate.NewDemucs(settings.DemucsModel, settings.DemucsDevice)
	vocalsPath, instrumentalPath, err := separator.Separate(ctx, inputPath, workDir)
	if err != nil {
		fatal("separation failed: %v", err)
	}
	fmt.Fprintf(os.Stderr, "Stems written: %s, %s\n", vocalsPath, instrumentalPath)

	transcriber, err := buildTranscriber(settings)
	if err != nil {
		fatal("%v", err)
	}

	fmt.Fprintln(os.Stderr, "Transcribing vocals...")
	result, err := transcriber.Transcribe(ctx, vocalsPath)
	if err != nil {
		fatal("transcription failed: %v", err)
	}

	switch *format {
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			fatal("failed to marshal result: %v", err)
		}
		fmt.Println(string(data))
	case "srt":
		fmt.Println(result.FormatAsSRT())
	default:
		fmt.Println(result.Text)
	}
}

type transcriber interface {
	Transcribe(ctx context.Context, vocalsPath string) (*transcribe.Transcription, error)
}

func buildTranscriber(settings *config.Settings) (transcriber, error) {
	if settings.STTAPIKey != "" {
		return transcribe.NewClient(settings.STTAPIKey, settings.STTBaseURL), nil
	}
	if settings.ASRModelDir != "" {
		return transcribe.NewRecognizer(settings.ASRModelDir)
	}
	return nil, fmt.Errorf("set STT_API_KEY or ASR_MODEL_DIR to enable transcription")
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
