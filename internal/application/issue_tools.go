package application

import (
	"context"
	"fmt"
	"strings"

	"jira-mcp-server/internal/domain"
	"jira-mcp-server/internal/infrastructure"
)

// registerIssueTools registers issue retrieval, creation, update, search
// and workflow tools.
func (d *Dispatcher) registerIssueTools() {
	d.register(domain.ToolDefinition{
		Name:        "get_issue",
		Description: "Get full details of a Jira issue by key, including status, assignee, description, subtasks and available transitions",
		InputSchema: objectSchema(map[string]interface{}{
			"issue_key": stringProp("Issue key, e.g. PROJ-123"),
			"fields":    stringProp("Optional comma-separated list of fields to return"),
		}, "issue_key"),
	}, d.handleGetIssue)

	d.register(domain.ToolDefinition{
		Name:        "create_issue",
		Description: "Create a new Jira issue in a project",
		InputSchema: objectSchema(map[string]interface{}{
			"project_key": stringProp("Project key, e.g. PROJ"),
			"summary":     stringProp("Issue summary"),
			"description": stringProp("Issue description"),
			"issue_type":  stringProp("Issue type name (default: Task)"),
			"priority":    stringProp("Optional priority name"),
			"assignee":    stringProp("Optional assignee account id"),
		}, "project_key", "summary", "description"),
	}, d.handleCreateIssue)

	d.register(domain.ToolDefinition{
		Name:        "create_child_issue",
		Description: "Create a child issue under an existing parent issue",
		InputSchema: objectSchema(map[string]interface{}{
			"parent_issue_key": stringProp("Key of the parent issue"),
			"summary":          stringProp("Child issue summary"),
			"description":      stringProp("Child issue description"),
			"issue_type":       stringProp("Issue type name (default: Sub-task)"),
		}, "parent_issue_key", "summary", "description"),
	}, d.handleCreateChildIssue)

	d.register(domain.ToolDefinition{
		Name:        "update_issue",
		Description: "Update fields of an existing issue; at least one field must be provided",
		InputSchema: objectSchema(map[string]interface{}{
			"issue_key":   stringProp("Issue key, e.g. PROJ-123"),
			"summary":     stringProp("New summary"),
			"description": stringProp("New description"),
			"priority":    stringProp("New priority name"),
			"assignee":    stringProp("New assignee account id"),
		}, "issue_key"),
	}, d.handleUpdateIssue)

	d.register(domain.ToolDefinition{
		Name:        "list_issue_types",
		Description: "List the issue types available in a project",
		InputSchema: objectSchema(map[string]interface{}{
			"project_key": stringProp("Project key, e.g. PROJ"),
		}, "project_key"),
	}, d.handleListIssueTypes)

	d.register(domain.ToolDefinition{
		Name:        "search_issues",
		Description: "Search issues with a JQL query",
		InputSchema: objectSchema(map[string]interface{}{
			"jql":         stringProp("JQL query, e.g. 'project = PROJ AND status = \"In Progress\"'"),
			"max_results": intProp("Maximum issues to return (default 30, max 100)"),
		}, "jql"),
	}, d.handleSearchIssues)

	d.register(domain.ToolDefinition{
		Name:        "transition_issue",
		Description: "Move an issue through a workflow transition by transition name",
		InputSchema: objectSchema(map[string]interface{}{
			"issue_key":       stringProp("Issue key, e.g. PROJ-123"),
			"transition_name": stringProp("Name of the transition, e.g. 'In Progress'"),
		}, "issue_key", "transition_name"),
	}, d.handleTransitionIssue)

	d.register(domain.ToolDefinition{
		Name:        "list_project_statuses",
		Description: "List a project's statuses grouped by issue type",
		InputSchema: objectSchema(map[string]interface{}{
			"project_key": stringProp("Project key, e.g. PROJ"),
		}, "project_key"),
	}, d.handleListProjectStatuses)
}

func (d *Dispatcher) handleGetIssue(ctx context.Context, args map[string]interface{}) (*domain.ToolResponse, error) {
	issueKey, err := getStringParam(args, "issue_key", true)
	if err != nil {
		return nil, err
	}
	fieldsCSV, err := getStringParam(args, "fields", false)
	if err != nil {
		return nil, err
	}

	opts := &infrastructure.GetIssueOptions{Expand: []string{"transitions"}}
	if fieldsCSV != "" {
		for _, field := range strings.Split(fieldsCSV, ",") {
			if field = strings.TrimSpace(field); field != "" {
				opts.Fields = append(opts.Fields, field)
			}
		}
	}

	issue, err := d.client.GetIssue(ctx, issueKey, opts)
	if err != nil {
		return nil, err
	}
	return domain.NewTextResponse(domain.FormatIssue(issue)), nil
}

func (d *Dispatcher) handleCreateIssue(ctx context.Context, args map[string]interface{}) (*domain.ToolResponse, error) {
	projectKey, err := getStringParam(args, "project_key", true)
	if err != nil {
		return nil, err
	}
	summary, err := getStringParam(args, "summary", true)
	if err != nil {
		return nil, err
	}
	description, err := getStringParam(args, "description", true)
	if err != nil {
		return nil, err
	}
	issueType, err := getStringParam(args, "issue_type", false)
	if err != nil {
		return nil, err
	}
	if issueType == "" {
		issueType = "Task"
	}
	priority, err := getStringParam(args, "priority", false)
	if err != nil {
		return nil, err
	}
	assignee, err := getStringParam(args, "assignee", false)
	if err != nil {
		return nil, err
	}

	create := &domain.IssueCreate{
		Fields: domain.IssueCreateFields{
			Project:     domain.ProjectRef{Key: projectKey},
			Summary:     summary,
			Description: description,
			IssueType:   domain.IssueTypeRef{Name: issueType},
		},
	}
	if priority != "" {
		create.Fields.Priority = &domain.NameRef{Name: priority}
	}
	if assignee != "" {
		create.Fields.Assignee = &domain.UserRef{AccountID: assignee}
	}

	created, err := d.client.CreateIssue(ctx, create)
	if err != nil {
		return nil, err
	}
	return domain.NewTextResponse(fmt.Sprintf("Created issue %s: %s", created.Key, summary)), nil
}

func (d *Dispatcher) handleCreateChildIssue(ctx context.Context, args map[string]interface{}) (*domain.ToolResponse, error) {
	parentKey, err := getStringParam(args, "parent_issue_key", true)
	if err != nil {
		return nil, err
	}
	summary, err := getStringParam(args, "summary", true)
	if err != nil {
		return nil, err
	}
	description, err := getStringParam(args, "description", true)
	if err != nil {
		return nil, err
	}
	issueType, err := getStringParam(args, "issue_type", false)
	if err != nil {
		return nil, err
	}
	if issueType == "" {
		issueType = "Sub-task"
	}

	// The child inherits the parent's project.
	parent, err := d.client.GetIssue(ctx, parentKey, &infrastructure.GetIssueOptions{
		Fields: []string{"project"},
	})
	if err != nil {
		return nil, err
	}

	create := &domain.IssueCreate{
		Fields: domain.IssueCreateFields{
			Project:     domain.ProjectRef{Key: parent.Fields.Project.Key},
			Summary:     summary,
			Description: description,
			IssueType:   domain.IssueTypeRef{Name: issueType},
			Parent:      &domain.KeyRef{Key: parentKey},
		},
	}

	created, err := d.client.CreateIssue(ctx, create)
	if err != nil {
		return nil, err
	}
	return domain.NewTextResponse(
		fmt.Sprintf("Created child issue %s under %s: %s", created.Key, parentKey, summary)), nil
}

func (d *Dispatcher) handleUpdateIssue(ctx context.Context, args map[string]interface{}) (*domain.ToolResponse, error) {
	issueKey, err := getStringParam(args, "issue_key", true)
	if err != nil {
		return nil, err
	}
	summary, err := getStringParam(args, "summary", false)
	if err != nil {
		return nil, err
	}
	description, err := getStringParam(args, "description", false)
	if err != nil {
		return nil, err
	}
	priority, err := getStringParam(args, "priority", false)
	if err != nil {
		return nil, err
	}
	assignee, err := getStringParam(args, "assignee", false)
	if err != nil {
		return nil, err
	}

	update := &domain.IssueUpdate{
		Fields: domain.IssueUpdateFields{
			Summary:     summary,
			Description: description,
		},
	}
	if priority != "" {
		update.Fields.Priority = &domain.NameRef{Name: priority}
	}
	if assignee != "" {
		update.Fields.Assignee = &domain.UserRef{AccountID: assignee}
	}
	if update.Fields.Empty() {
		return nil, domain.NewToolError(domain.KindInvalidArguments,
			"at least one of summary, description, priority or assignee is required")
	}

	if err := d.client.UpdateIssue(ctx, issueKey, update); err != nil {
		return nil, err
	}

	var changed []string
	if summary != "" {
		changed = append(changed, "summary")
	}
	if description != "" {
		changed = append(changed, "description")
	}
	if priority != "" {
		changed = append(changed, "priority")
	}
	if assignee != "" {
		changed = append(changed, "assignee")
	}
	return domain.NewTextResponse(
		fmt.Sprintf("Updated %s (%s)", issueKey, strings.Join(changed, ", "))), nil
}

func (d *Dispatcher) handleListIssueTypes(ctx context.Context, args map[string]interface{}) (*domain.ToolResponse, error) {
	projectKey, err := getStringParam(args, "project_key", true)
	if err != nil {
		return nil, err
	}

	types, err := d.client.GetProjectIssueTypes(ctx, projectKey)
	if err != nil {
		return nil, err
	}
	return domain.NewTextResponse(domain.FormatIssueTypes(projectKey, types)), nil
}

const (
	defaultSearchResults = 30
	maxSearchResults     = 100
)

func (d *Dispatcher) handleSearchIssues(ctx context.Context, args map[string]interface{}) (*domain.ToolResponse, error) {
	jql, err := getStringParam(args, "jql", true)
	if err != nil {
		return nil, err
	}
	maxResults, set, err := getIntParam(args, "max_results", false)
	if err != nil {
		return nil, err
	}
	switch {
	case !set:
		maxResults = defaultSearchResults
	case maxResults <= 0:
		return nil, domain.InvalidArgument("max_results", "must be greater than zero")
	case maxResults > maxSearchResults:
		maxResults = maxSearchResults
	}

	results, err := d.client.SearchIssues(ctx, jql, &infrastructure.SearchOptions{
		MaxResults: maxResults,
	})
	if err != nil {
		return nil, err
	}
	return domain.NewTextResponse(domain.FormatSearchResults(results)), nil
}

func (d *Dispatcher) handleTransitionIssue(ctx context.Context, args map[string]interface{}) (*domain.ToolResponse, error) {
	issueKey, err := getStringParam(args, "issue_key", true)
	if err != nil {
		return nil, err
	}
	transitionName, err := getStringParam(args, "transition_name", true)
	if err != nil {
		return nil, err
	}

	transitions, err := d.client.GetTransitions(ctx, issueKey)
	if err != nil {
		return nil, err
	}

	var target *domain.Transition
	for i := range transitions {
		if strings.EqualFold(transitions[i].Name, transitionName) {
			target = &transitions[i]
			break
		}
	}
	if target == nil {
		names := make([]string, 0, len(transitions))
		for _, t := range transitions {
			names = append(names, t.Name)
		}
		return nil, domain.NewToolError(domain.KindRemoteValidationRejected,
			"no transition named %q on %s; available: %s",
			transitionName, issueKey, strings.Join(names, ", "))
	}

	if err := d.client.TransitionIssue(ctx, issueKey, target.ID.String()); err != nil {
		return nil, err
	}
	return domain.NewTextResponse(
		fmt.Sprintf("Transitioned %s to %s via %q", issueKey, target.To.Name, target.Name)), nil
}

func (d *Dispatcher) handleListProjectStatuses(ctx context.Context, args map[string]interface{}) (*domain.ToolResponse, error) {
	projectKey, err := getStringParam(args, "project_key", true)
	if err != nil {
		return nil, err
	}

	groups, err := d.client.GetProjectStatuses(ctx, projectKey)
	if err != nil {
		return nil, err
	}
	return domain.NewTextResponse(domain.FormatProjectStatuses(projectKey, groups)), nil
}
