// Package musixmatch fetches popular songs and their lyrics from the Musixmatch API.
package musixmatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/listenup/internal/domain"
	"github.com/victornm/listenup/internal/errors"
)

const (
	DefaultURL     = "https://api.musixmatch.com/ws/1.1"
	DefaultCountry = "us"

	maxConcurrentLyrics = 5
)

type Config struct {
	URL     string
	APIKey  string
	Country string
	// ChartSize is the minimum number of chart positions requested. A larger count passed to
	// FetchSongs wins.
	ChartSize int
	Timeout   time.Duration
	HTTP      *http.Client
}

type Client struct {
	url       string
	key       string
	country   string
	chartSize int
	http      *http.Client
}

func NewClient(c Config) *Client {
	cl := &Client{
		url:       c.URL,
		key:       c.APIKey,
		country:   c.Country,
		chartSize: c.ChartSize,
		http:      c.HTTP,
	}

	if cl.url == "" {
		cl.url = DefaultURL
	}
	if cl.country == "" {
		cl.country = DefaultCountry
	}
	if cl.http == nil {
		cl.http = &http.Client{Timeout: c.Timeout}
	}

	return cl
}

type (
	envelope[T any] struct {
		Message struct {
			Header struct {
				StatusCode int `json:"status_code"`
			} `json:"header"`
			Body T `json:"body"`
		} `json:"message"`
	}

	chartBody struct {
		TrackList []struct {
			Track track `json:"track"`
		} `json:"track_list"`
	}

	track struct {
		TrackID    int64  `json:"track_id"`
		TrackName  string `json:"track_name"`
		ArtistName string `json:"artist_name"`
	}

	lyricsBody struct {
		Lyrics struct {
			LyricsBody string `json:"lyrics_body"`
		} `json:"lyrics"`
	}
)

// FetchSongs returns the top chart songs of the configured country that have lyrics, are not
// instrumental and not explicit, with their cleaned lyrics. Tracks whose lyrics cannot be fetched
// are skipped.
func (c *Client) FetchSongs(ctx context.Context, count int) ([]domain.RawSong, error) {
	tracks, err := c.chart(ctx, max(count, c.chartSize))
	if err != nil {
		return nil, err
	}

	var (
		fetched = make([]*domain.RawSong, len(tracks))
		failed  = make([]error, len(tracks))
		eg      errgroup.Group
	)
	eg.SetLimit(maxConcurrentLyrics)
	for i, t := range tracks {
		eg.Go(func() error {
			lyrics, err := c.lyrics(ctx, t.TrackID)
			if err != nil {
				failed[i] = err
				slog.WarnContext(ctx, "musixmatch: skip track without lyrics",
					"track_id", t.TrackID,
					"error", err,
				)
				return nil
			}

			fetched[i] = &domain.RawSong{
				Artist: t.ArtistName,
				Title:  t.TrackName,
				Lyrics: Clean(lyrics),
			}
			return nil
		})
	}
	_ = eg.Wait()

	songs := make([]domain.RawSong, 0, len(tracks))
	for _, s := range fetched {
		if s != nil {
			songs = append(songs, *s)
		}
	}

	// Every lyrics call failed.
	if len(songs) == 0 && len(tracks) > 0 {
		return nil, failed[0]
	}

	return songs, nil
}

func (c *Client) chart(ctx context.Context, size int) ([]track, error) {
	q := url.Values{}
	q.Set("page", "1")
	q.Set("page_size", strconv.Itoa(max(size, 1)))
	q.Set("country", c.country)
	q.Set("f_has_lyrics", "1")
	q.Set("f_is_instrumental", "0")
	q.Set("f_is_explicit", "0")

	var body envelope[chartBody]
	if err := c.get(ctx, "chart.tracks.get", q, &body); err != nil {
		return nil, err
	}

	tracks := make([]track, 0, len(body.Message.Body.TrackList))
	for _, t := range body.Message.Body.TrackList {
		tracks = append(tracks, t.Track)
	}
	return tracks, nil
}

func (c *Client) lyrics(ctx context.Context, trackID int64) (string, error) {
	q := url.Values{}
	q.Set("track_id", strconv.FormatInt(trackID, 10))

	var body envelope[lyricsBody]
	if err := c.get(ctx, "track.lyrics.get", q, &body); err != nil {
		return "", err
	}
	return body.Message.Body.Lyrics.LyricsBody, nil
}

func (c *Client) get(ctx context.Context, method string, q url.Values, out any) error {
	q.Set("apikey", c.key)
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/"+method, nil)
	if err != nil {
		return fmt.Errorf("musixmatch: new request: %w", err)
	}
	req.URL.RawQuery = q.Encode()

	resp, err := c.http.Do(req)
	if err != nil {
		return unavailable(method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return unavailable(method, fmt.Errorf("unexpected status %s", resp.Status))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return unavailable(method, fmt.Errorf("decode response: %w", err))
	}

	// The API reports its own status inside a 200 response.
	if s, ok := out.(interface{ status() int }); ok && s.status() != http.StatusOK {
		return unavailable(method, fmt.Errorf("status code %d", s.status()))
	}

	return nil
}

func (e *envelope[T]) status() int { return e.Message.Header.StatusCode }

func unavailable(method string, err error) error {
	return errors.New(errors.CodeUnavailable,
		errors.WithMessagef("song provider unavailable: %s: %v", method, err),
		errors.WithCause(err),
	)
}
