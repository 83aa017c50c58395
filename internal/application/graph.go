package application

import (
	"context"

	"golang.org/x/sync/errgroup"

	"jira-mcp-server/internal/domain"
	"jira-mcp-server/internal/infrastructure"
)

// buildRelationshipGraph assembles the one-hop relationship view around a
// seed issue: its declared links, each resolved to the linked issue's
// current summary and status with bounded concurrency. A linked issue that
// cannot be fetched degrades to an unavailable placeholder rather than
// failing the whole graph; only a seed fetch failure or cancellation is an
// error. An issue with no links yields an empty graph.
func (d *Dispatcher) buildRelationshipGraph(ctx context.Context, issueKey string) (*domain.RelationshipGraph, error) {
	seed, err := d.client.GetIssueLinks(ctx, issueKey)
	if err != nil {
		return nil, err
	}

	type linkRef struct {
		direction string
		key       string
	}
	var refs []linkRef
	for _, link := range seed.Fields.IssueLinks {
		if link.InwardIssue != nil && link.InwardIssue.Key != "" {
			refs = append(refs, linkRef{direction: link.Type.Inward, key: link.InwardIssue.Key})
		}
		if link.OutwardIssue != nil && link.OutwardIssue.Key != "" {
			refs = append(refs, linkRef{direction: link.Type.Outward, key: link.OutwardIssue.Key})
		}
	}

	relationships := make([]domain.Relationship, len(refs))

	var g errgroup.Group
	g.SetLimit(d.maxConcurrency)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			linked, err := d.client.GetIssue(ctx, ref.key, &infrastructure.GetIssueOptions{
				Fields: []string{"summary", "status"},
			})
			if err != nil {
				relationships[i] = domain.Relationship{
					Direction:   ref.direction,
					Key:         ref.key,
					Unavailable: true,
				}
				return nil
			}
			relationships[i] = domain.Relationship{
				Direction: ref.direction,
				Key:       ref.key,
				Summary:   linked.Fields.Summary,
				Status:    linked.Fields.Status.Name,
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, domain.NewToolError(domain.KindCancelled, "relationship lookup cancelled: %v", err)
	}

	return &domain.RelationshipGraph{Seed: seed, Relationships: relationships}, nil
}
