package application

import (
	"context"
	"fmt"
	"time"

	"jira-mcp-server/internal/domain"
)

// registerCollaborationTools registers comment, worklog, link and history
// tools.
func (d *Dispatcher) registerCollaborationTools() {
	d.register(domain.ToolDefinition{
		Name:        "add_comment",
		Description: "Add a comment to an issue",
		InputSchema: objectSchema(map[string]interface{}{
			"issue_key": stringProp("Issue key, e.g. PROJ-123"),
			"body":      stringProp("Comment text"),
		}, "issue_key", "body"),
	}, d.handleAddComment)

	d.register(domain.ToolDefinition{
		Name:        "get_comments",
		Description: "List the comments on an issue",
		InputSchema: objectSchema(map[string]interface{}{
			"issue_key": stringProp("Issue key, e.g. PROJ-123"),
		}, "issue_key"),
	}, d.handleGetComments)

	d.register(domain.ToolDefinition{
		Name:        "add_worklog",
		Description: "Log time spent on an issue; time_spent accepts d/h/m units, e.g. '3h', '1h 30m', '2d'",
		InputSchema: objectSchema(map[string]interface{}{
			"issue_key":  stringProp("Issue key, e.g. PROJ-123"),
			"time_spent": stringProp("Time spent, e.g. '3h', '30m', '1h 30m'"),
			"comment":    stringProp("Optional description of the work"),
			"started":    stringProp("Optional start time in ISO-8601 format; defaults to now"),
		}, "issue_key", "time_spent"),
	}, d.handleAddWorklog)

	d.register(domain.ToolDefinition{
		Name:        "link_issues",
		Description: "Create a link between two issues, e.g. blocks or relates to",
		InputSchema: objectSchema(map[string]interface{}{
			"inward_issue":  stringProp("Key of the inward issue"),
			"outward_issue": stringProp("Key of the outward issue"),
			"link_type":     stringProp("Link type name, e.g. 'Blocks' or 'Relates'"),
		}, "inward_issue", "outward_issue", "link_type"),
	}, d.handleLinkIssues)

	d.register(domain.ToolDefinition{
		Name:        "get_related_issues",
		Description: "Show every issue linked to the given issue with its current summary and status",
		InputSchema: objectSchema(map[string]interface{}{
			"issue_key": stringProp("Issue key, e.g. PROJ-123"),
		}, "issue_key"),
	}, d.handleGetRelatedIssues)

	d.register(domain.ToolDefinition{
		Name:        "get_issue_history",
		Description: "Show an issue's change history in chronological order",
		InputSchema: objectSchema(map[string]interface{}{
			"issue_key": stringProp("Issue key, e.g. PROJ-123"),
		}, "issue_key"),
	}, d.handleGetIssueHistory)
}

func (d *Dispatcher) handleAddComment(ctx context.Context, args map[string]interface{}) (*domain.ToolResponse, error) {
	issueKey, err := getStringParam(args, "issue_key", true)
	if err != nil {
		return nil, err
	}
	body, err := getStringParam(args, "body", true)
	if err != nil {
		return nil, err
	}

	comment, err := d.client.AddComment(ctx, issueKey, body)
	if err != nil {
		return nil, err
	}
	return domain.NewTextResponse(
		fmt.Sprintf("Added comment %s to %s", comment.ID, issueKey)), nil
}

func (d *Dispatcher) handleGetComments(ctx context.Context, args map[string]interface{}) (*domain.ToolResponse, error) {
	issueKey, err := getStringParam(args, "issue_key", true)
	if err != nil {
		return nil, err
	}

	page, err := d.client.GetComments(ctx, issueKey)
	if err != nil {
		return nil, err
	}
	return domain.NewTextResponse(domain.FormatComments(issueKey, page)), nil
}

func (d *Dispatcher) handleAddWorklog(ctx context.Context, args map[string]interface{}) (*domain.ToolResponse, error) {
	issueKey, err := getStringParam(args, "issue_key", true)
	if err != nil {
		return nil, err
	}
	timeSpent, err := getStringParam(args, "time_spent", true)
	if err != nil {
		return nil, err
	}
	comment, err := getStringParam(args, "comment", false)
	if err != nil {
		return nil, err
	}
	started, err := getStringParam(args, "started", false)
	if err != nil {
		return nil, err
	}

	seconds, err := domain.ParseDuration(timeSpent)
	if err != nil {
		return nil, err
	}
	if started == "" {
		started = time.Now().UTC().Format("2006-01-02T15:04:05.000-0700")
	}

	worklog, err := d.client.AddWorklog(ctx, issueKey, &domain.WorklogCreate{
		TimeSpentSeconds: seconds,
		Started:          started,
		Comment:          comment,
	})
	if err != nil {
		return nil, err
	}
	return domain.NewTextResponse(domain.FormatWorklog(issueKey, worklog)), nil
}

func (d *Dispatcher) handleLinkIssues(ctx context.Context, args map[string]interface{}) (*domain.ToolResponse, error) {
	inward, err := getStringParam(args, "inward_issue", true)
	if err != nil {
		return nil, err
	}
	outward, err := getStringParam(args, "outward_issue", true)
	if err != nil {
		return nil, err
	}
	linkType, err := getStringParam(args, "link_type", true)
	if err != nil {
		return nil, err
	}

	err = d.client.LinkIssues(ctx, &domain.LinkCreate{
		Type:         domain.NameRef{Name: linkType},
		InwardIssue:  domain.KeyRef{Key: inward},
		OutwardIssue: domain.KeyRef{Key: outward},
	})
	if err != nil {
		return nil, err
	}
	return domain.NewTextResponse(
		fmt.Sprintf("Linked %s to %s (%s)", inward, outward, linkType)), nil
}

func (d *Dispatcher) handleGetRelatedIssues(ctx context.Context, args map[string]interface{}) (*domain.ToolResponse, error) {
	issueKey, err := getStringParam(args, "issue_key", true)
	if err != nil {
		return nil, err
	}

	graph, err := d.buildRelationshipGraph(ctx, issueKey)
	if err != nil {
		return nil, err
	}
	return domain.NewTextResponse(domain.FormatRelationshipGraph(graph)), nil
}

func (d *Dispatcher) handleGetIssueHistory(ctx context.Context, args map[string]interface{}) (*domain.ToolResponse, error) {
	issueKey, err := getStringParam(args, "issue_key", true)
	if err != nil {
		return nil, err
	}

	entries, err := d.client.GetChangelog(ctx, issueKey)
	if err != nil {
		return nil, err
	}
	return domain.NewTextResponse(domain.FormatChangelog(issueKey, entries)), nil
}
