package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const DefaultRecognizerURL = "http://www.google.com/speech-api/v2/recognize"

var ErrNoTranscript = errors.New("speech was not recognised")

type Alternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

type Result struct {
	Alternative []Alternative `json:"alternative"`
	Final       bool          `json:"final"`
}

type Response struct {
	Result []Result `json:"result"`
}

// Recognizer sends FLAC audio to the Google speech API.
type Recognizer struct {
	URL    string
	APIKey string
	Lang   string
	HTTP   *http.Client
}

func NewRecognizer(apiKey string) *Recognizer {
	return &Recognizer{
		URL:    DefaultRecognizerURL,
		APIKey: apiKey,
		Lang:   "en-US",
		HTTP:   http.DefaultClient,
	}
}

// Recognize returns the most confident transcript and its confidence.
func (r *Recognizer) Recognize(ctx context.Context, flacData []byte, sampleRate int) (string, float64, error) {
	data := url.Values{}
	data.Set("client", "chromium")
	data.Set("lang", r.Lang)
	data.Set("key", r.APIKey)
	data.Set("pFilter", "0")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL+"?"+data.Encode(), bytes.NewReader(flacData))
	if err != nil {
		return "", 0, fmt.Errorf("build recognizer request: %w", err)
	}
	req.Header.Set("Content-Type", fmt.Sprintf("audio/x-flac; rate=%d", sampleRate))

	resp, err := r.HTTP.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("send recognizer request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("read recognizer response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("recognizer returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return parseResponse(string(body))
}

// parseResponse reads the newline separated JSON documents the API answers
// with; the first one is usually an empty result.
func parseResponse(responseText string) (string, float64, error) {
	result, err := convertToResult(responseText)
	if err != nil {
		return "", 0, err
	}
	best, err := findBestHypothesis(result.Alternative)
	if err != nil {
		return "", 0, err
	}
	confidence := best.Confidence
	if confidence == 0 {
		confidence = 0.5
	}
	return best.Transcript, confidence, nil
}

func convertToResult(responseText string) (Result, error) {
	for _, line := range strings.Split(responseText, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var response Response
		if err := json.Unmarshal([]byte(line), &response); err != nil {
			return Result{}, fmt.Errorf("decode recognizer response: %w", err)
		}
		if len(response.Result) != 0 {
			if len(response.Result[0].Alternative) == 0 {
				return Result{}, ErrNoTranscript
			}
			return response.Result[0], nil
		}
	}
	return Result{}, ErrNoTranscript
}

func findBestHypothesis(alternatives []Alternative) (Alternative, error) {
	if len(alternatives) == 0 {
		return Alternative{}, ErrNoTranscript
	}

	best := alternatives[0]
	for _, alternative := range alternatives[1:] {
		if alternative.Confidence > best.Confidence {
			best = alternative
		}
	}
	if best.Transcript == "" {
		return Alternative{}, ErrNoTranscript
	}
	return best, nil
}
