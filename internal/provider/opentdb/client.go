// Package opentdb fetches trivia questions from the Open Trivia Database.
package opentdb

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/victornm/listenup/internal/domain"
	"github.com/victornm/listenup/internal/errors"
)

const (
	DefaultURL = "https://opentdb.com/api.php"

	// maxAmount is the largest batch the API serves in one call.
	maxAmount = 50
)

// Response codes reported in the body of a 200 response.
const (
	codeSuccess   = 0
	codeNoResults = 1
	codeRateLimit = 5
)

type Config struct {
	URL     string
	Timeout time.Duration
	// HTTP overrides the client built from Timeout.
	HTTP *http.Client
}

type Client struct {
	url  string
	http *http.Client
}

func NewClient(c Config) *Client {
	cl := &Client{
		url:  c.URL,
		http: c.HTTP,
	}

	if cl.url == "" {
		cl.url = DefaultURL
	}
	if cl.http == nil {
		cl.http = &http.Client{Timeout: c.Timeout}
	}

	return cl
}

type response struct {
	ResponseCode int      `json:"response_code"`
	Results      []result `json:"results"`
}

type result struct {
	Type             string   `json:"type"`
	Difficulty       string   `json:"difficulty"`
	Category         string   `json:"category"`
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

// FetchQuestions requests up to count questions matching opts. When the database has fewer
// matching questions than requested it returns an empty batch rather than an error. Rate limiting
// and other API errors are reported as unavailable.
func (c *Client) FetchQuestions(ctx context.Context, opts domain.Options, count int) ([]domain.RawQuestion, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("opentdb: new request: %w", err)
	}
	req.URL.RawQuery = query(opts, count).Encode()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, unavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, unavailable(fmt.Errorf("unexpected status %s", resp.Status))
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, unavailable(fmt.Errorf("decode response: %w", err))
	}

	switch body.ResponseCode {
	case codeSuccess:
	case codeNoResults:
		slog.WarnContext(ctx, "opentdb: no results",
			"amount", count,
			"type", opts.Type,
			"difficulty", opts.Difficulty,
			"category", opts.Category,
		)
		return nil, nil
	case codeRateLimit:
		return nil, unavailable(fmt.Errorf("rate limited"))
	default:
		return nil, unavailable(fmt.Errorf("response code %d", body.ResponseCode))
	}

	out := make([]domain.RawQuestion, 0, len(body.Results))
	for _, r := range body.Results {
		q, err := r.decode()
		if err != nil {
			return nil, unavailable(err)
		}
		out = append(out, q)
	}

	return out, nil
}

func query(opts domain.Options, count int) url.Values {
	count = min(max(count, 1), maxAmount)

	v := url.Values{}
	v.Set("amount", strconv.Itoa(count))
	v.Set("encode", "url3986")
	if opts.Type != "" {
		v.Set("type", opts.Type)
	}
	if opts.Difficulty != "" {
		v.Set("difficulty", opts.Difficulty)
	}
	if opts.Category != 0 {
		v.Set("category", strconv.Itoa(opts.Category))
	}
	return v
}

// decode undoes the RFC 3986 encoding of every text field.
func (r result) decode() (domain.RawQuestion, error) {
	var err error
	unescape := func(s string) string {
		if err != nil {
			return ""
		}
		var out string
		out, err = url.QueryUnescape(s)
		return out
	}

	q := domain.RawQuestion{
		Question:      unescape(r.Question),
		CorrectAnswer: unescape(r.CorrectAnswer),
		Type:          unescape(r.Type),
		Difficulty:    unescape(r.Difficulty),
		Category:      unescape(r.Category),
	}
	for _, a := range r.IncorrectAnswers {
		q.IncorrectAnswers = append(q.IncorrectAnswers, unescape(a))
	}

	if err != nil {
		return domain.RawQuestion{}, fmt.Errorf("unescape result: %w", err)
	}
	return q, nil
}

func unavailable(err error) error {
	return errors.New(errors.CodeUnavailable,
		errors.WithMessagef("trivia provider unavailable: %v", err),
		errors.WithCause(err),
	)
}
