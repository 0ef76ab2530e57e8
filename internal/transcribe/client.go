package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// DefaultBaseURL is the buffered STT endpoint used when none is configured.
const DefaultBaseURL = "https://api.gradium.ai"

// Client transcribes separated vocals through a remote buffered STT API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a remote transcription client. An empty baseURL
// selects the default endpoint.
func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// sttResponse is the wire shape of the buffered STT result.
type sttResponse struct {
	Text               string `json:"text"`
	TextWithTimestamps []struct {
		Text   string  `json:"text"`
		StartS float64 `json:"start_s"`
		StopS  float64 `json:"stop_s"`
	} `json:"text_with_timestamps"`
}

// Transcribe uploads a WAV vocals file and returns the transcription.
func (c *Client) Transcribe(ctx context.Context, vocalsPath string) (*Transcription, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return nil, fmt.Errorf("STT API key is missing")
	}

	audio, err := os.ReadFile(vocalsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocals audio: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/stt", bytes.NewReader(audio))
	if err != nil {
		return nil, fmt.Errorf("failed to build STT request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "audio/wav")
	req.Header.Set("X-Model-Name", "default")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("STT request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("STT request returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded sttResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode STT response: %w", err)
	}

	result := &Transcription{Text: decoded.Text}
	for _, seg := range decoded.TextWithTimestamps {
		result.Segments = append(result.Segments, Segment{
			Text:   seg.Text,
			StartS: seg.StartS,
			StopS:  seg.StopS,
		})
	}
	return result, nil
}
