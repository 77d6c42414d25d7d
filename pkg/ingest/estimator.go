package ingest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/riiali/green-microbench/pkg/sample"
)

// EstimatorReader reads the software power estimator export: a JSON object
// keyed by service name, each value an array of point objects. The default
// paths match the export shape
//
//	{"booking": [{"ts": "<RFC3339>", "power_w": 1.2}, ...], ...}
//
// Points inside one service's array may arrive unordered; ordering is the
// alignment stage's job, so no monotonicity check applies here.
type EstimatorReader struct {
	// Path is the JSON file or http(s) URL to read (required).
	Path string

	// Client is used for URL sources. Nil means http.DefaultClient.
	Client *http.Client

	// TimestampPath and ValuePath are gjson paths into each point object.
	// Defaults: "ts" and "power_w".
	TimestampPath string
	ValuePath     string

	// TimestampFormat is one of rfc3339 (default), unix, unix_milli.
	TimestampFormat string
}

func (e *EstimatorReader) Name() string { return "estimator" }

// Read implements Reader.
func (e *EstimatorReader) Read(ctx context.Context) ([]sample.Sample, Stats, error) {
	if e.Path == "" {
		return nil, Stats{}, fmt.Errorf("estimator reader: Path is required")
	}

	tsPath := e.TimestampPath
	if tsPath == "" {
		tsPath = "ts"
	}
	valPath := e.ValuePath
	if valPath == "" {
		valPath = "power_w"
	}

	raw, err := readSource(ctx, e.Client, e.Path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("estimator reader: %w", err)
	}
	if !gjson.ValidBytes(raw) {
		return nil, Stats{}, fmt.Errorf("estimator reader: %s: invalid JSON", e.Path)
	}

	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, Stats{}, fmt.Errorf("estimator reader: %s: top level must be an object keyed by service", e.Path)
	}

	var (
		stats Stats
		out   []sample.Sample
		n     int
	)

	root.ForEach(func(key, value gjson.Result) bool {
		if ctx.Err() != nil {
			return false
		}
		service := key.String()

		value.ForEach(func(_, point gjson.Result) bool {
			n++

			if service == "" {
				stats.reject(e.Name(), n, "empty service name")
				return true
			}
			if service == sample.SystemService {
				stats.reject(e.Name(), n, fmt.Sprintf("service name %q is reserved", service))
				return true
			}

			tsField := point.Get(tsPath)
			if !tsField.Exists() {
				stats.reject(e.Name(), n, fmt.Sprintf("missing %q", tsPath))
				return true
			}
			ts, err := parseTimestamp(e.TimestampFormat, tsField)
			if err != nil {
				stats.reject(e.Name(), n, "unparseable timestamp")
				return true
			}

			valField := point.Get(valPath)
			if !valField.Exists() {
				stats.reject(e.Name(), n, fmt.Sprintf("missing %q", valPath))
				return true
			}
			watts := valField.Float()
			if !validPower(watts) {
				stats.reject(e.Name(), n, "power out of range")
				return true
			}

			out = append(out, sample.Sample{
				Time:    ts.UTC(),
				Kind:    sample.KindEstimate,
				Service: service,
				Value:   watts,
				Unit:    sample.UnitWatts,
			})
			stats.Accepted++
			return true
		})
		return true
	})
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}

	return out, stats, nil
}
