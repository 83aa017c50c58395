package application

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"jira-mcp-server/internal/domain"
)

// maxBulkSize is the hard ceiling on one bulk operation. Oversized batches
// are rejected before any remote call is issued.
const maxBulkSize = 50

// bulkOp performs the operation for one key.
type bulkOp func(ctx context.Context, key string) error

// runBulk executes op once per key with bounded concurrency and fail-soft
// semantics: one key's failure never stops the others. The report lists
// every deduplicated input key exactly once, in input order, as either a
// success or a classified failure. Cancellation mid-flight abandons the
// batch and surfaces Cancelled instead of a partial report.
func (d *Dispatcher) runBulk(ctx context.Context, keys []string, op bulkOp) (*domain.BulkReport, error) {
	deduped := dedupeKeys(keys)
	if len(deduped) > maxBulkSize {
		return nil, domain.NewToolError(domain.KindBatchTooLarge,
			"batch of %d issues exceeds the limit of %d", len(deduped), maxBulkSize)
	}

	results := make([]error, len(deduped))

	var g errgroup.Group
	g.SetLimit(d.maxConcurrency)
	for i, key := range deduped {
		i, key := i, key
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = err
				return nil
			}
			results[i] = op(ctx, key)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, domain.NewToolError(domain.KindCancelled, "bulk operation cancelled: %v", err)
	}

	report := &domain.BulkReport{}
	for i, key := range deduped {
		if err := results[i]; err != nil {
			report.Failed = append(report.Failed, domain.BulkFailure{
				Key:    key,
				Kind:   domain.KindOf(err),
				Reason: failureReason(err),
			})
		} else {
			report.Succeeded = append(report.Succeeded, key)
		}
	}
	return report, nil
}

// dedupeKeys removes repeated keys, keeping first occurrence order.
func dedupeKeys(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out
}

// failureReason extracts the message without repeating the kind, which the
// report renders separately.
func failureReason(err error) string {
	var te *domain.ToolError
	if errors.As(err, &te) {
		return te.Message
	}
	return err.Error()
}
