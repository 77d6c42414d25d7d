package ingest

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/riiali/green-microbench/pkg/sample"
)

// MeterReader reads the plug-meter capture: an NDJSON file with one object
// per line, appended live during the experiment. The default paths match the
// capture shape {"ts": "<RFC3339>", "power_w": <float>}.
//
// The capture is append-ordered, so a timestamp that regresses by more than
// SkewTolerance marks a broken record rather than clock jitter and is
// rejected.
type MeterReader struct {
	// Path is the NDJSON file or http(s) URL to read (required).
	Path string

	// Client is used for URL sources. Nil means http.DefaultClient.
	Client *http.Client

	// TimestampPath and ValuePath are gjson paths into each line.
	// Defaults: "ts" and "power_w".
	TimestampPath string
	ValuePath     string

	// TimestampFormat is one of rfc3339 (default), unix, unix_milli.
	TimestampFormat string

	// SkewTolerance bounds how far a timestamp may regress below the
	// running maximum before the record is rejected (default 2s).
	SkewTolerance time.Duration
}

func (m *MeterReader) Name() string { return "meter" }

// Read implements Reader.
func (m *MeterReader) Read(ctx context.Context) ([]sample.Sample, Stats, error) {
	if m.Path == "" {
		return nil, Stats{}, fmt.Errorf("meter reader: Path is required")
	}

	tsPath := m.TimestampPath
	if tsPath == "" {
		tsPath = "ts"
	}
	valPath := m.ValuePath
	if valPath == "" {
		valPath = "power_w"
	}
	skew := m.SkewTolerance
	if skew <= 0 {
		skew = 2 * time.Second
	}

	f, err := openSource(ctx, m.Client, m.Path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("meter reader: %w", err)
	}
	defer f.Close()

	var (
		stats   Stats
		out     []sample.Sample
		highest time.Time
		line    int
	)

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		line++

		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		if !gjson.Valid(raw) {
			stats.reject(m.Name(), line, "invalid JSON")
			continue
		}

		tsField := gjson.Get(raw, tsPath)
		if !tsField.Exists() {
			stats.reject(m.Name(), line, fmt.Sprintf("missing %q", tsPath))
			continue
		}
		ts, err := parseTimestamp(m.TimestampFormat, tsField)
		if err != nil {
			stats.reject(m.Name(), line, "unparseable timestamp")
			continue
		}
		ts = ts.UTC()

		valField := gjson.Get(raw, valPath)
		if !valField.Exists() {
			stats.reject(m.Name(), line, fmt.Sprintf("missing %q", valPath))
			continue
		}
		watts := valField.Float()
		if !validPower(watts) {
			stats.reject(m.Name(), line, "power out of range")
			continue
		}

		if !highest.IsZero() && highest.Sub(ts) > skew {
			stats.reject(m.Name(), line, "timestamp regressed beyond skew tolerance")
			continue
		}
		if ts.After(highest) {
			highest = ts
		}

		out = append(out, sample.Sample{
			Time:  ts,
			Kind:  sample.KindMeasured,
			Value: watts,
			Unit:  sample.UnitWatts,
		})
		stats.Accepted++
	}
	if err := sc.Err(); err != nil {
		return nil, stats, fmt.Errorf("meter reader: scan: %w", err)
	}

	return out, stats, nil
}
