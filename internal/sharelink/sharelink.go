// Package sharelink turns a scene snapshot into a URL-fragment token and
// back.
//
// token = base64url(gzip(JSON)), no padding, prefixed "s=" inside the
// fragment. The JSON carries a version field that is lifted through an
// explicit migration chain on decode.
package sharelink

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/joeblew999/plat-pyro/internal/scene"
)

// Key is the fragment parameter holding the token.
const Key = "s"

// CurrentVersion is the format version written by Encode.
const CurrentVersion = 1

// maxDecodedBytes bounds decompression of hostile tokens.
const maxDecodedBytes = 8 << 20

// ErrNoState is wrapped by every decode failure. Callers fall back to an
// empty scene.
var ErrNoState = errors.New("no scene state")

var gzipMagic = []byte{0x1f, 0x8b}

type document struct {
	V int `json:"v"`
	scene.Snapshot
}

// Encode returns "s=<token>" for snap.
func Encode(snap scene.Snapshot) (string, error) {
	raw, err := json.Marshal(document{V: CurrentVersion, Snapshot: normalize(snap)})
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	payload, err := compress(raw)
	if err != nil {
		slog.Warn("share link compression failed, writing plain JSON", "error", err)
		payload = raw
	}
	return Key + "=" + base64.RawURLEncoding.EncodeToString(payload), nil
}

// EncodeURL appends the share fragment to base, replacing any fragment it
// already has.
func EncodeURL(base string, snap scene.Snapshot) (string, error) {
	frag, err := Encode(snap)
	if err != nil {
		return "", err
	}
	if i := strings.IndexByte(base, '#'); i >= 0 {
		base = base[:i]
	}
	return base + "#" + frag, nil
}

func compress(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(raw); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses a token. It accepts a bare token, "s=<token>",
// "#s=<token>" or a full URL whose fragment carries the token.
func Decode(input string) (scene.Snapshot, error) {
	token, err := extractToken(input)
	if err != nil {
		return scene.Snapshot{}, err
	}

	payload, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		// Some links get re-padded by chat clients.
		payload, err = base64.URLEncoding.DecodeString(token)
		if err != nil {
			return scene.Snapshot{}, fmt.Errorf("%w: base64: %w", ErrNoState, err)
		}
	}

	raw := payload
	if bytes.HasPrefix(payload, gzipMagic) {
		raw, err = decompress(payload)
		if err != nil {
			return scene.Snapshot{}, fmt.Errorf("%w: gzip: %w", ErrNoState, err)
		}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return scene.Snapshot{}, fmt.Errorf("%w: json: %w", ErrNoState, err)
	}
	if err := migrate(fields); err != nil {
		return scene.Snapshot{}, fmt.Errorf("%w: %w", ErrNoState, err)
	}

	migrated, err := json.Marshal(fields)
	if err != nil {
		return scene.Snapshot{}, fmt.Errorf("%w: json: %w", ErrNoState, err)
	}
	var doc document
	if err := json.Unmarshal(migrated, &doc); err != nil {
		return scene.Snapshot{}, fmt.Errorf("%w: json: %w", ErrNoState, err)
	}
	return normalize(doc.Snapshot), nil
}

func extractToken(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", fmt.Errorf("%w: empty token", ErrNoState)
	}
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return "", fmt.Errorf("%w: url: %w", ErrNoState, err)
		}
		s = u.Fragment
	}
	s = strings.TrimPrefix(s, "#")

	// Padded bare tokens end in "=" but are not query strings.
	if strings.HasPrefix(s, Key+"=") || strings.Contains(s, "&") {
		values, err := url.ParseQuery(s)
		if err != nil {
			return "", fmt.Errorf("%w: fragment: %w", ErrNoState, err)
		}
		s = values.Get(Key)
	}
	if s == "" {
		return "", fmt.Errorf("%w: no %q parameter", ErrNoState, Key)
	}
	return s, nil
}

func decompress(payload []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	raw, err := io.ReadAll(io.LimitReader(zr, maxDecodedBytes+1))
	if err != nil {
		return nil, err
	}
	if len(raw) > maxDecodedBytes {
		return nil, errors.New("decoded scene too large")
	}
	return raw, nil
}

// Load decodes input, falling back to an empty scene on any failure. The
// second result reports whether the token was usable.
func Load(input string, logger *slog.Logger) (scene.Snapshot, bool) {
	snap, err := Decode(input)
	if err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("share link unreadable, starting empty", "error", err)
		return scene.EmptySnapshot(), false
	}
	return snap, true
}

// normalize replaces nil arrays with empty ones so older tokens and
// zero-value snapshots encode and decode the same way.
func normalize(snap scene.Snapshot) scene.Snapshot {
	if snap.Fireworks == nil {
		snap.Fireworks = []scene.FireworkRecord{}
	}
	if snap.Custom == nil {
		snap.Custom = []scene.CustomRecord{}
	}
	if snap.Audiences == nil {
		snap.Audiences = []scene.RectangleRecord{}
	}
	if snap.Measurements == nil {
		snap.Measurements = []scene.MeasurementRecord{}
	}
	if snap.Restricted == nil {
		snap.Restricted = []scene.RectangleRecord{}
	}
	return snap
}
