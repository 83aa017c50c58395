package domain

import (
	"fmt"
	"strings"
	"time"
)

// The formatter converts raw Jira entities into flattened, labeled text for
// a language model. It is total over well-formed entities: sparse data
// (missing assignee, empty dates) renders as a readable placeholder or is
// omitted, never raised as an error.

// FormatIssue renders a full issue view.
func FormatIssue(issue *Issue) string {
	f := issue.Fields

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", issue.Key, orUnknown(f.Summary, "No summary"))
	fmt.Fprintf(&b, "Status: %s\n", orUnknown(f.Status.Name, "Unknown"))
	fmt.Fprintf(&b, "Type: %s\n", orUnknown(f.IssueType.Name, "Unknown"))
	if f.Priority != nil && f.Priority.Name != "" {
		fmt.Fprintf(&b, "Priority: %s\n", f.Priority.Name)
	}
	fmt.Fprintf(&b, "Assignee: %s\n", displayName(f.Assignee, "Unassigned"))
	if f.Reporter != nil {
		fmt.Fprintf(&b, "Reporter: %s\n", displayName(f.Reporter, "Unknown"))
	}
	if f.Project.Key != "" {
		fmt.Fprintf(&b, "Project: %s (%s)\n", orUnknown(f.Project.Name, f.Project.Key), f.Project.Key)
	}
	if f.Created != "" {
		fmt.Fprintf(&b, "Created: %s\n", formatTimestamp(f.Created))
	}
	if f.Updated != "" {
		fmt.Fprintf(&b, "Updated: %s\n", formatTimestamp(f.Updated))
	}
	if f.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", f.Description)
	}

	if f.Parent != nil {
		fmt.Fprintf(&b, "Parent: %s: %s\n", f.Parent.Key, orUnknown(f.Parent.Fields.Summary, "No summary"))
	}
	if len(f.Subtasks) > 0 {
		b.WriteString("Subtasks:\n")
		for _, st := range f.Subtasks {
			fmt.Fprintf(&b, "  - %s: %s (%s)\n", st.Key,
				orUnknown(st.Fields.Summary, "No summary"),
				orUnknown(st.Fields.Status.Name, "Unknown"))
		}
	}
	if len(issue.Transitions) > 0 {
		names := make([]string, 0, len(issue.Transitions))
		for _, t := range issue.Transitions {
			names = append(names, t.Name)
		}
		fmt.Fprintf(&b, "Available transitions: %s\n", strings.Join(names, ", "))
	}

	return strings.TrimRight(b.String(), "\n")
}

// FormatSearchResults renders one page of search results with a pagination
// summary.
func FormatSearchResults(results *SearchResults) string {
	if len(results.Issues) == 0 {
		return "No issues found matching the search criteria."
	}

	var b strings.Builder
	if results.Total > len(results.Issues) {
		fmt.Fprintf(&b, "Search results: showing %d of %d issues\n\n", len(results.Issues), results.Total)
	} else {
		fmt.Fprintf(&b, "Search results: %d issue(s) found\n\n", len(results.Issues))
	}

	for i := range results.Issues {
		b.WriteString(FormatIssue(&results.Issues[i]))
		if i < len(results.Issues)-1 {
			b.WriteString("\n" + strings.Repeat("-", 40) + "\n")
		}
	}

	if remaining := results.Total - (results.StartAt + len(results.Issues)); remaining > 0 {
		fmt.Fprintf(&b, "\n\n%d more issue(s) available; refine the JQL query or raise max_results.", remaining)
	}

	return b.String()
}

// FormatSprint renders a sprint header.
func FormatSprint(sprint *Sprint) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sprint %d: %s\n", sprint.ID, orUnknown(sprint.Name, "Unnamed"))
	fmt.Fprintf(&b, "State: %s\n", orUnknown(sprint.State, "Unknown"))
	if sprint.Goal != "" {
		fmt.Fprintf(&b, "Goal: %s\n", sprint.Goal)
	}
	if sprint.StartDate != "" {
		fmt.Fprintf(&b, "Start: %s\n", formatTimestamp(sprint.StartDate))
	}
	if sprint.EndDate != "" {
		fmt.Fprintf(&b, "End: %s\n", formatTimestamp(sprint.EndDate))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatSprintWithIssues renders a sprint followed by its issue list.
func FormatSprintWithIssues(sprint *Sprint, issues []Issue) string {
	var b strings.Builder
	b.WriteString(FormatSprint(sprint))

	if len(issues) == 0 {
		b.WriteString("\n\nNo issues in this sprint.")
		return b.String()
	}

	fmt.Fprintf(&b, "\n\nIssues in sprint (%d total):\n", len(issues))
	for _, issue := range issues {
		fmt.Fprintf(&b, "  - %s: %s [%s, %s]\n", issue.Key,
			orUnknown(issue.Fields.Summary, "No summary"),
			orUnknown(issue.Fields.Status.Name, "Unknown"),
			displayName(issue.Fields.Assignee, "Unassigned"))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatSprintList renders sprint summaries for a board.
func FormatSprintList(boardID int, state string, sprints []Sprint) string {
	if len(sprints) == 0 {
		if state != "" {
			return fmt.Sprintf("No sprints found for board %d with state %q", boardID, state)
		}
		return fmt.Sprintf("No sprints found for board %d", boardID)
	}

	var b strings.Builder
	if state != "" {
		fmt.Fprintf(&b, "Sprints for board %d (%s):\n\n", boardID, state)
	} else {
		fmt.Fprintf(&b, "Sprints for board %d:\n\n", boardID)
	}
	for i := range sprints {
		b.WriteString(FormatSprint(&sprints[i]))
		if i < len(sprints)-1 {
			b.WriteString("\n" + strings.Repeat("-", 30) + "\n")
		}
	}
	return b.String()
}

// FormatBoards renders the board listing.
func FormatBoards(boards []Board) string {
	if len(boards) == 0 {
		return "No boards found."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Boards (%d):\n", len(boards))
	for _, board := range boards {
		fmt.Fprintf(&b, "  - %d: %s (%s)", board.ID, board.Name, orUnknown(board.Type, "unknown"))
		if board.Location.ProjectKey != "" {
			fmt.Fprintf(&b, " project %s", board.Location.ProjectKey)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatIssueTypes renders the issue types of a project.
func FormatIssueTypes(projectKey string, types []IssueType) string {
	if len(types) == 0 {
		return fmt.Sprintf("No issue types found for project %s", projectKey)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Issue types for project %s:\n", projectKey)
	for _, t := range types {
		label := t.Name
		if t.Subtask {
			label += " (subtask)"
		}
		fmt.Fprintf(&b, "  - %s", label)
		if t.Description != "" {
			fmt.Fprintf(&b, ": %s", t.Description)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatProjectStatuses renders statuses grouped by issue type.
func FormatProjectStatuses(projectKey string, groups []ProjectStatuses) string {
	if len(groups) == 0 {
		return fmt.Sprintf("No statuses found for project %s", projectKey)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Statuses for project %s:\n", projectKey)
	for _, group := range groups {
		fmt.Fprintf(&b, "  %s:\n", orUnknown(group.Name, "Unknown type"))
		for _, status := range group.Statuses {
			fmt.Fprintf(&b, "    - %s\n", status.Name)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatComment renders a single comment.
func FormatComment(comment *Comment) string {
	header := displayName(comment.Author, "Unknown")
	if comment.Created != "" {
		header += " (" + formatTimestamp(comment.Created) + ")"
	}
	body := orUnknown(comment.Body, "No content")
	return header + "\n" + body
}

// FormatComments renders the comment listing for an issue.
func FormatComments(issueKey string, page *CommentPage) string {
	if len(page.Comments) == 0 {
		return fmt.Sprintf("No comments on %s", issueKey)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Comments on %s (%d):\n\n", issueKey, len(page.Comments))
	for i := range page.Comments {
		b.WriteString(FormatComment(&page.Comments[i]))
		if i < len(page.Comments)-1 {
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

// FormatWorklog renders a created worklog entry.
func FormatWorklog(issueKey string, worklog *Worklog) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Logged %s on %s", FormatSeconds(worklog.TimeSpentSeconds), issueKey)
	if worklog.ID != "" {
		fmt.Fprintf(&b, " (worklog %s)", worklog.ID)
	}
	if worklog.Started != "" {
		fmt.Fprintf(&b, "\nStarted: %s", formatTimestamp(worklog.Started))
	}
	if worklog.Comment != "" {
		fmt.Fprintf(&b, "\nComment: %s", worklog.Comment)
	}
	return b.String()
}

// FormatChangelog renders issue history, oldest first.
func FormatChangelog(issueKey string, entries []ChangelogEntry) string {
	if len(entries) == 0 {
		return fmt.Sprintf("No history recorded for %s", issueKey)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "History for %s (%d events):\n\n", issueKey, len(entries))
	for i, entry := range entries {
		fmt.Fprintf(&b, "%s (%s)\n", displayName(entry.Author, "Unknown"), formatTimestamp(entry.Created))
		for _, item := range entry.Items {
			switch {
			case item.FromString != "" && item.ToString != "":
				fmt.Fprintf(&b, "  - %s: %s -> %s\n", item.Field, item.FromString, item.ToString)
			case item.ToString != "":
				fmt.Fprintf(&b, "  - %s set to %s\n", item.Field, item.ToString)
			case item.FromString != "":
				fmt.Fprintf(&b, "  - %s cleared (was %s)\n", item.Field, item.FromString)
			default:
				fmt.Fprintf(&b, "  - %s changed\n", item.Field)
			}
		}
		if i < len(entries)-1 {
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Relationship is one edge of a one-hop relationship graph.
type Relationship struct {
	Direction string // directional label, e.g. "blocks", "is blocked by"
	Key       string
	Summary   string
	Status    string

	// Unavailable marks a linked issue that could not be fetched
	// (deleted or inaccessible).
	Unavailable bool
}

// RelationshipGraph is the one-hop relationship view around a seed issue.
type RelationshipGraph struct {
	Seed          *Issue
	Relationships []Relationship
}

// FormatRelationshipGraph renders the relationship view.
func FormatRelationshipGraph(graph *RelationshipGraph) string {
	if len(graph.Relationships) == 0 {
		return fmt.Sprintf("No related issues found for %s", graph.Seed.Key)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Related issues for %s: %s\n\n", graph.Seed.Key,
		orUnknown(graph.Seed.Fields.Summary, "No summary"))
	for _, rel := range graph.Relationships {
		if rel.Unavailable {
			fmt.Fprintf(&b, "  - %s %s (issue unavailable)\n", rel.Direction, rel.Key)
			continue
		}
		fmt.Fprintf(&b, "  - %s %s: %s (%s)\n", rel.Direction, rel.Key,
			orUnknown(rel.Summary, "No summary"), orUnknown(rel.Status, "Unknown"))
	}
	fmt.Fprintf(&b, "\n%d related issue(s) found", len(graph.Relationships))
	return b.String()
}

// BulkFailure records one item that failed within a bulk operation.
type BulkFailure struct {
	Key    string
	Kind   Kind
	Reason string
}

// BulkReport accounts for every item of a bulk operation: each input key
// appears exactly once, in input order, in Succeeded or Failed.
type BulkReport struct {
	Succeeded []string
	Failed    []BulkFailure
}

// FormatBulkReport renders the per-item outcome of a bulk operation.
func FormatBulkReport(action string, report *BulkReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d succeeded, %d failed\n", action, len(report.Succeeded), len(report.Failed))
	if len(report.Succeeded) > 0 {
		fmt.Fprintf(&b, "Succeeded: %s\n", strings.Join(report.Succeeded, ", "))
	}
	for _, failure := range report.Failed {
		fmt.Fprintf(&b, "Failed: %s (%s: %s)\n", failure.Key, failure.Kind, failure.Reason)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatSeconds renders a second count as a compact duration ("1h 30m").
func FormatSeconds(seconds int64) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	if seconds < secondsPerHour {
		if rem := seconds % 60; rem > 0 {
			return fmt.Sprintf("%dm %ds", seconds/60, rem)
		}
		return fmt.Sprintf("%dm", seconds/60)
	}
	hours := seconds / secondsPerHour
	minutes := (seconds % secondsPerHour) / 60
	if minutes > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dh", hours)
}

// formatTimestamp normalizes a Jira timestamp for display, falling back to
// the raw string when it does not parse.
func formatTimestamp(value string) string {
	layouts := []string{
		"2006-01-02T15:04:05.000-0700",
		time.RFC3339,
		time.RFC3339Nano,
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC().Format("2006-01-02 15:04:05 UTC")
		}
	}
	return value
}

func displayName(u *User, fallback string) string {
	if u == nil || u.DisplayName == "" {
		return fallback
	}
	return u.DisplayName
}

func orUnknown(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
