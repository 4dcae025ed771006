package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/victornm/listenup/internal/errors"
)

const DefaultVoice = "en-US_AllisonVoice"

type SpeechConfig struct {
	URL     string
	User    string
	Pass    string
	Voice   string
	Timeout time.Duration
	HTTP    *http.Client
}

// SpeechClient talks to a text-to-speech service with a Watson compatible synthesize endpoint.
type SpeechClient struct {
	url   string
	user  string
	pass  string
	voice string
	http  *http.Client
}

func NewSpeechClient(c SpeechConfig) *SpeechClient {
	s := &SpeechClient{
		url:   c.URL,
		user:  c.User,
		pass:  c.Pass,
		voice: c.Voice,
		http:  c.HTTP,
	}

	if s.voice == "" {
		s.voice = DefaultVoice
	}
	if s.http == nil {
		s.http = &http.Client{Timeout: c.Timeout}
	}

	return s
}

// Synthesize streams a WAV recording of text into w.
func (s *SpeechClient) Synthesize(ctx context.Context, text string, w io.Writer) error {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("speech: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.url+"/v1/synthesize?"+url.Values{"voice": {s.voice}}.Encode(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("speech: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")
	if s.user != "" {
		req.SetBasicAuth(s.user, s.pass)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return unavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return unavailable(fmt.Errorf("unexpected status %s", resp.Status))
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return unavailable(fmt.Errorf("read audio: %w", err))
	}

	return nil
}

func unavailable(err error) error {
	return errors.New(errors.CodeUnavailable,
		errors.WithMessagef("speech service unavailable: %v", err),
		errors.WithCause(err),
	)
}
