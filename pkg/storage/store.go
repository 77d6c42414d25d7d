package storage

import (
	"context"

	"github.com/riiali/green-microbench/pkg/report"
)

// Store persists run reports keyed by run ID. Put also moves the "latest"
// pointer, so Latest always returns the most recently stored report.
type Store interface {
	Put(ctx context.Context, r *report.Report) error
	Get(ctx context.Context, runID string) (*report.Report, bool, error)
	Latest(ctx context.Context) (*report.Report, bool, error)
}
