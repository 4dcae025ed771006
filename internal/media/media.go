// Package media turns content into audio files that can be played to the user.
package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/sync/singleflight"

	"github.com/victornm/listenup/internal/domain"
)

const maxNameLen = 120

// Audible is anything that can be read aloud.
type Audible interface {
	Filename() string
	Text() string
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string, w io.Writer) error
}

// RefStore persists the location of an item's audio.
type RefStore interface {
	SetMediaRef(ctx context.Context, item domain.Item, ref string) error
}

type Config struct {
	Dir         string
	Synthesizer Synthesizer
	Store       RefStore
}

// Materializer synthesizes audio once per item and remembers where it was written.
type Materializer struct {
	dir   string
	synth Synthesizer
	store RefStore
	group singleflight.Group
}

func NewMaterializer(c Config) *Materializer {
	return &Materializer{
		dir:   c.Dir,
		synth: c.Synthesizer,
		store: c.Store,
	}
}

// Materialize returns the media reference of item, synthesizing it first if needed.
// The reference is a path relative to the media directory.
func (m *Materializer) Materialize(ctx context.Context, item domain.Item) (string, error) {
	if ref := item.MediaRef(); ref != "" {
		return ref, nil
	}

	ref := Ref(item)
	_, err, _ := m.group.Do(ref, func() (any, error) {
		return nil, m.materialize(ctx, item, ref)
	})
	if err != nil {
		slog.WarnContext(ctx, "media: materialize failed",
			"variant", item.Kind().String(),
			"id", item.ItemID(),
			"error", err,
		)
		return "", err
	}

	return ref, nil
}

func (m *Materializer) materialize(ctx context.Context, item domain.Item, ref string) error {
	path := filepath.Join(m.dir, filepath.FromSlash(ref))

	if _, err := os.Stat(path); err != nil {
		if err := m.write(ctx, item, path); err != nil {
			return err
		}
	}

	return m.store.SetMediaRef(ctx, item, ref)
}

// write synthesizes into a temporary file and renames it, so a partial recording is never
// visible under the final name.
func (m *Materializer) write(ctx context.Context, item Audible, path string) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("media: create dir: %w", err)
	}

	f, err := os.CreateTemp(filepath.Dir(path), ".synth-*")
	if err != nil {
		return fmt.Errorf("media: create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()

	if err = m.synth.Synthesize(ctx, item.Text(), f); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("media: close: %w", err)
	}
	if err = os.Rename(f.Name(), path); err != nil {
		return fmt.Errorf("media: rename: %w", err)
	}

	return nil
}

// Ref returns the media reference item is stored under.
func Ref(item domain.Item) string {
	return subdir(item.Kind()) + "/" + SanitizeFilename(item.Filename()) + ".wav"
}

func subdir(v domain.Variant) string {
	switch v {
	case domain.VariantQuestion:
		return "trivia"
	case domain.VariantSong:
		return "songs"
	default:
		return "other"
	}
}

// SanitizeFilename drops characters that are not portable in file names.
func SanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r):
			return -1
		case strings.ContainsRune(`/\:*?"<>|`, r):
			return -1
		default:
			return r
		}
	}, name)

	name = strings.Join(strings.Fields(name), " ")
	if r := []rune(name); len(r) > maxNameLen {
		name = string(r[:maxNameLen])
	}

	return strings.Trim(name, " .")
}
