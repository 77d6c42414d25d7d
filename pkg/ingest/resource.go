package ingest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/riiali/green-microbench/pkg/sample"
)

// ResourceReader reads the container resource monitor export: the JSON body
// of a Prometheus range query over per-container CPU usage, as written by
// the collection layer. The expected shape is
//
//	{"data": {"result": [
//	  {"metric": {"service": "booking"}, "values": [[1767543092, "0.41"], ...]},
//	  ...
//	]}}
//
// A bare {"result": [...]} top level is accepted too. Values are CPU cores;
// the unit conversion to a power-equivalent weight happens at alignment.
type ResourceReader struct {
	// Path is the JSON file or http(s) URL to read (required).
	Path string

	// Client is used for URL sources. Nil means http.DefaultClient.
	Client *http.Client

	// ServiceLabel is the metric label holding the service name
	// (default "service").
	ServiceLabel string
}

func (r *ResourceReader) Name() string { return "resource" }

// Read implements Reader.
func (r *ResourceReader) Read(ctx context.Context) ([]sample.Sample, Stats, error) {
	if r.Path == "" {
		return nil, Stats{}, fmt.Errorf("resource reader: Path is required")
	}

	label := r.ServiceLabel
	if label == "" {
		label = "service"
	}

	raw, err := readSource(ctx, r.Client, r.Path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("resource reader: %w", err)
	}
	if !gjson.ValidBytes(raw) {
		return nil, Stats{}, fmt.Errorf("resource reader: %s: invalid JSON", r.Path)
	}

	result := gjson.GetBytes(raw, "data.result")
	if !result.Exists() {
		result = gjson.GetBytes(raw, "result")
	}
	if !result.IsArray() {
		return nil, Stats{}, fmt.Errorf("resource reader: %s: no result array", r.Path)
	}

	var (
		stats Stats
		out   []sample.Sample
		n     int
	)

	result.ForEach(func(_, series gjson.Result) bool {
		if ctx.Err() != nil {
			return false
		}
		service := series.Get("metric." + label).String()

		series.Get("values").ForEach(func(_, pair gjson.Result) bool {
			n++

			if service == "" {
				stats.reject(r.Name(), n, fmt.Sprintf("series missing %q label", label))
				return true
			}
			if service == sample.SystemService {
				stats.reject(r.Name(), n, fmt.Sprintf("service name %q is reserved", service))
				return true
			}

			arr := pair.Array()
			if len(arr) != 2 {
				stats.reject(r.Name(), n, "value pair is not [ts, value]")
				return true
			}

			sec := arr[0].Float()
			if sec <= 0 {
				stats.reject(r.Name(), n, "unparseable timestamp")
				return true
			}
			ts := time.Unix(int64(sec), 0).UTC()

			cores := arr[1].Float()
			if !validPower(cores) {
				stats.reject(r.Name(), n, "cpu usage out of range")
				return true
			}

			out = append(out, sample.Sample{
				Time:    ts,
				Kind:    sample.KindResource,
				Service: service,
				Value:   cores,
				Unit:    sample.UnitCores,
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
