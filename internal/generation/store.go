package generation

import (
	"context"

	"ai-fitness-coach/internal/plan"
)

// Store is the durable per-user generation record: status, input snapshot
// and accumulated stage outputs.
//
// Reads return nil without error when the user has no record. Every write
// bumps Version. CompareAndSwap is the only write used while a run is in
// flight; it succeeds only when the stored record still has the expected
// version and the same run ID.
type Store interface {
	GetStatus(ctx context.Context, userID string) (*Status, error)
	// SetStatus overwrites the status unconditionally, keeping input and data.
	SetStatus(ctx context.Context, status Status) error
	// DeleteStatus removes the whole record. Deleting nothing is not an error.
	DeleteStatus(ctx context.Context, userID string) error
	GetAccumulatedData(ctx context.Context, userID string) (*plan.Accumulated, error)
	GetInputSnapshot(ctx context.Context, userID string) (*plan.Input, error)

	// CreateIfIdle starts a new run unless one is generating. It stores the
	// status, the input snapshot and an accumulator holding only the input,
	// all at once. When a run is generating it returns that status and false.
	CreateIfIdle(ctx context.Context, status Status, input plan.Input) (Status, bool, error)

	// CompareAndSwap replaces the status, and the accumulator when data is
	// not nil, in one write. On a version or run mismatch it returns the
	// current status and false; when the record is gone it returns nil and false.
	CompareAndSwap(ctx context.Context, userID string, expectedVersion int64, status Status, data *plan.Accumulated) (*Status, bool, error)
}
