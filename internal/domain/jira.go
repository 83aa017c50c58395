package domain

import (
	"encoding/json"
	"fmt"
)

// FlexibleID unmarshals both string and numeric identifiers. Jira Cloud is
// inconsistent about which one an endpoint returns.
type FlexibleID string

// UnmarshalJSON accepts either a JSON string or a JSON number.
func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexibleID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexibleID(n.String())
		return nil
	}

	return fmt.Errorf("id must be a string or number")
}

// String returns the string representation of the ID.
func (f FlexibleID) String() string {
	return string(f)
}

// Issue represents a Jira issue. Transitions and Changelog are only
// populated when the corresponding expand was requested.
type Issue struct {
	ID          FlexibleID   `json:"id"`
	Key         string       `json:"key"`
	Fields      IssueFields  `json:"fields"`
	Transitions []Transition `json:"transitions,omitempty"`
	Changelog   *Changelog   `json:"changelog,omitempty"`
}

// IssueFields carries the standard fields of an issue as named attributes
// and everything else (project-configurable custom fields) in Custom.
type IssueFields struct {
	Summary     string      `json:"summary"`
	Description string      `json:"description,omitempty"`
	IssueType   IssueType   `json:"issuetype"`
	Project     Project     `json:"project"`
	Status      Status      `json:"status"`
	Priority    *Priority   `json:"priority,omitempty"`
	Assignee    *User       `json:"assignee,omitempty"`
	Reporter    *User       `json:"reporter,omitempty"`
	Parent      *IssueStub  `json:"parent,omitempty"`
	Subtasks    []IssueStub `json:"subtasks,omitempty"`
	IssueLinks  []IssueLink `json:"issuelinks,omitempty"`
	Created     string      `json:"created,omitempty"`
	Updated     string      `json:"updated,omitempty"`

	// Custom holds fields the schema cannot enumerate statically
	// (customfield_* and anything added by project configuration).
	Custom map[string]json.RawMessage `json:"-"`
}

// issueFieldsAlias avoids UnmarshalJSON recursion.
type issueFieldsAlias IssueFields

// knownIssueFieldKeys lists the JSON keys mapped to named attributes;
// everything else lands in Custom.
var knownIssueFieldKeys = map[string]bool{
	"summary": true, "description": true, "issuetype": true, "project": true,
	"status": true, "priority": true, "assignee": true, "reporter": true,
	"parent": true, "subtasks": true, "issuelinks": true,
	"created": true, "updated": true,
}

// UnmarshalJSON decodes the named attributes and retains unknown fields.
func (fl *IssueFields) UnmarshalJSON(data []byte) error {
	var alias issueFieldsAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range raw {
		if knownIssueFieldKeys[key] {
			delete(raw, key)
		}
	}
	if len(raw) > 0 {
		alias.Custom = raw
	}

	*fl = IssueFields(alias)
	return nil
}

// IssueStub is the reduced issue shape Jira embeds in parent, subtask and
// link references.
type IssueStub struct {
	ID     FlexibleID `json:"id,omitempty"`
	Key    string     `json:"key"`
	Fields struct {
		Summary string `json:"summary"`
		Status  Status `json:"status"`
	} `json:"fields"`
}

// IssueType represents a Jira issue type (Bug, Story, Task, Sub-task).
type IssueType struct {
	ID          FlexibleID `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Subtask     bool       `json:"subtask,omitempty"`
}

// Project represents a Jira project.
type Project struct {
	ID   FlexibleID `json:"id"`
	Key  string     `json:"key"`
	Name string     `json:"name"`
}

// Status represents an issue status (Open, In Progress, Done).
type Status struct {
	ID   FlexibleID `json:"id"`
	Name string     `json:"name"`
}

// Priority represents an issue priority.
type Priority struct {
	ID   FlexibleID `json:"id"`
	Name string     `json:"name"`
}

// User represents a Jira user.
type User struct {
	AccountID    string `json:"accountId,omitempty"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress,omitempty"`
}

// Transition is a workflow transition currently available on an issue.
type Transition struct {
	ID   FlexibleID `json:"id"`
	Name string     `json:"name"`
	To   Status     `json:"to"`
}

// TransitionList is the transitions endpoint response.
type TransitionList struct {
	Transitions []Transition `json:"transitions"`
}

// SearchResults represents one page of a JQL search.
type SearchResults struct {
	Issues     []Issue `json:"issues"`
	Total      int     `json:"total"`
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
}

// ProjectStatuses groups the statuses available for one issue type of a
// project, as returned by the project statuses endpoint.
type ProjectStatuses struct {
	Name     string   `json:"name"`
	Statuses []Status `json:"statuses"`
}

// Board represents an agile board.
type Board struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Location struct {
		ProjectKey  string `json:"projectKey,omitempty"`
		ProjectName string `json:"projectName,omitempty"`
	} `json:"location"`
}

// BoardList is one page of boards from the agile API.
type BoardList struct {
	Values []Board `json:"values"`
	IsLast bool    `json:"isLast"`
}

// Sprint represents a sprint owned by a board. State is one of "future",
// "active" or "closed"; the remote system guarantees at most one active
// sprint per board.
type Sprint struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	State     string `json:"state"`
	BoardID   int    `json:"originBoardId,omitempty"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
	Goal      string `json:"goal,omitempty"`
}

// SprintList is one page of sprints from the agile API.
type SprintList struct {
	Values []Sprint `json:"values"`
	IsLast bool     `json:"isLast"`
}

// Comment represents a comment on an issue.
type Comment struct {
	ID      FlexibleID `json:"id"`
	Author  *User      `json:"author,omitempty"`
	Body    string     `json:"body"`
	Created string     `json:"created,omitempty"`
}

// CommentPage is the comment listing response.
type CommentPage struct {
	Comments []Comment `json:"comments"`
	Total    int       `json:"total"`
}

// Worklog represents a time record on an issue.
type Worklog struct {
	ID               FlexibleID `json:"id"`
	Author           *User      `json:"author,omitempty"`
	TimeSpentSeconds int64      `json:"timeSpentSeconds"`
	Started          string     `json:"started,omitempty"`
	Comment          string     `json:"comment,omitempty"`
}

// IssueLink is one directional link as Jira reports it: exactly one of
// InwardIssue or OutwardIssue is set, depending on which endpoint the
// seed issue occupies.
type IssueLink struct {
	ID           FlexibleID    `json:"id,omitempty"`
	Type         IssueLinkType `json:"type"`
	InwardIssue  *IssueStub    `json:"inwardIssue,omitempty"`
	OutwardIssue *IssueStub    `json:"outwardIssue,omitempty"`
}

// IssueLinkType names a link relationship and its two directional labels
// ("blocks" / "is blocked by").
type IssueLinkType struct {
	Name    string `json:"name"`
	Inward  string `json:"inward"`
	Outward string `json:"outward"`
}

// Changelog is the issue history container.
type Changelog struct {
	Histories []ChangelogEntry `json:"histories"`
}

// ChangelogEntry is one append-only history event.
type ChangelogEntry struct {
	Author  *User           `json:"author,omitempty"`
	Created string          `json:"created"`
	Items   []ChangelogItem `json:"items"`
}

// ChangelogItem is a single field change within a history event.
type ChangelogItem struct {
	Field      string `json:"field"`
	FromString string `json:"fromString,omitempty"`
	ToString   string `json:"toString,omitempty"`
}

// IssueCreate is the request body for creating an issue.
type IssueCreate struct {
	Fields IssueCreateFields `json:"fields"`
}

// IssueCreateFields contains the writable fields of a new issue.
type IssueCreateFields struct {
	Project     ProjectRef   `json:"project"`
	Summary     string       `json:"summary"`
	Description string       `json:"description,omitempty"`
	IssueType   IssueTypeRef `json:"issuetype"`
	Priority    *NameRef     `json:"priority,omitempty"`
	Assignee    *UserRef     `json:"assignee,omitempty"`
	Parent      *KeyRef      `json:"parent,omitempty"`
}

// IssueUpdate is the request body for updating an issue. Only non-empty
// fields are sent.
type IssueUpdate struct {
	Fields IssueUpdateFields `json:"fields"`
}

// IssueUpdateFields contains the fields that can change on update.
type IssueUpdateFields struct {
	Summary     string   `json:"summary,omitempty"`
	Description string   `json:"description,omitempty"`
	Priority    *NameRef `json:"priority,omitempty"`
	Assignee    *UserRef `json:"assignee,omitempty"`
}

// Empty reports whether the update carries no field changes.
func (f IssueUpdateFields) Empty() bool {
	return f.Summary == "" && f.Description == "" && f.Priority == nil && f.Assignee == nil
}

// IssueTypeRef references an issue type by id or name.
type IssueTypeRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// ProjectRef references a project by id or key.
type ProjectRef struct {
	ID  string `json:"id,omitempty"`
	Key string `json:"key,omitempty"`
}

// UserRef references a user for assignment.
type UserRef struct {
	AccountID string `json:"accountId,omitempty"`
	Name      string `json:"name,omitempty"`
}

// NameRef references an entity by display name (priorities, link types).
type NameRef struct {
	Name string `json:"name"`
}

// KeyRef references an issue by key.
type KeyRef struct {
	Key string `json:"key"`
}

// TransitionRequest is the request body for a workflow transition.
type TransitionRequest struct {
	Transition struct {
		ID string `json:"id"`
	} `json:"transition"`
}

// CommentCreate is the request body for adding a comment.
type CommentCreate struct {
	Body string `json:"body"`
}

// WorklogCreate is the request body for adding a worklog. The duration is
// sent as an absolute second count so the remote work-day configuration
// cannot reinterpret it.
type WorklogCreate struct {
	TimeSpentSeconds int64  `json:"timeSpentSeconds"`
	Started          string `json:"started,omitempty"`
	Comment          string `json:"comment,omitempty"`
}

// LinkCreate is the request body for linking two issues.
type LinkCreate struct {
	Type         NameRef `json:"type"`
	InwardIssue  KeyRef  `json:"inwardIssue"`
	OutwardIssue KeyRef  `json:"outwardIssue"`
}

// SprintMove is the request body for assigning issues to a sprint.
type SprintMove struct {
	Issues []string `json:"issues"`
}
