package application

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jira-mcp-server/internal/domain"
	"jira-mcp-server/internal/infrastructure"
)

func newTestDispatcher(t *testing.T, handler http.Handler) *Dispatcher {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := infrastructure.NewJiraClient(server.URL, server.Client()).
		WithRetryPolicy(1, time.Millisecond)
	return NewDispatcher(client, NewStructuredLogger(), 4)
}

func responseText(t *testing.T, resp *domain.ToolResponse) string {
	t.Helper()
	require.NotNil(t, resp)
	require.Len(t, resp.Content, 1)
	return resp.Content[0].Text
}

func TestListToolsStableOrder(t *testing.T) {
	d := newTestDispatcher(t, http.NotFoundHandler())

	tools := d.ListTools()
	require.Len(t, tools, 19)

	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name
		assert.NotEmpty(t, tool.Description)
		assert.Equal(t, "object", tool.InputSchema.Type)
	}

	assert.Equal(t, []string{
		"get_issue", "create_issue", "create_child_issue", "update_issue",
		"list_issue_types", "search_issues", "transition_issue", "list_project_statuses",
		"list_sprints", "get_sprint", "get_active_sprint", "move_issues_to_sprint", "get_boards",
		"add_comment", "get_comments", "add_worklog", "link_issues",
		"get_related_issues", "get_issue_history",
	}, names)
}

func TestDispatchUnknownTool(t *testing.T) {
	var calls atomic.Int32
	d := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))

	resp := d.Dispatch(context.Background(), &domain.ToolRequest{Name: "delete_everything"})

	assert.True(t, resp.IsError)
	assert.Contains(t, responseText(t, resp), "UnknownTool")
	assert.Zero(t, calls.Load(), "no remote call for an unknown tool")
}

func TestDispatchRejectsMissingArgument(t *testing.T) {
	var calls atomic.Int32
	d := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))

	resp := d.Dispatch(context.Background(), &domain.ToolRequest{
		Name:      "get_issue",
		Arguments: map[string]interface{}{},
	})

	assert.True(t, resp.IsError)
	text := responseText(t, resp)
	assert.Contains(t, text, "InvalidArguments")
	assert.Contains(t, text, `"issue_key"`)
	assert.Zero(t, calls.Load(), "validation failures must not reach the remote")
}

func TestDispatchRejectsWrongType(t *testing.T) {
	var calls atomic.Int32
	d := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))

	resp := d.Dispatch(context.Background(), &domain.ToolRequest{
		Name: "move_issues_to_sprint",
		Arguments: map[string]interface{}{
			"sprint_id": float64(7),
			"issues":    "PROJ-1",
		},
	})

	assert.True(t, resp.IsError)
	text := responseText(t, resp)
	assert.Contains(t, text, "InvalidArguments")
	assert.Contains(t, text, `"issues"`)
	assert.Zero(t, calls.Load())
}

func TestDispatchIgnoresExtraArguments(t *testing.T) {
	d := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id": "1", "key": "PROJ-1",
			"fields": map[string]interface{}{"summary": "A summary"},
		})
	}))

	resp := d.Dispatch(context.Background(), &domain.ToolRequest{
		Name: "get_issue",
		Arguments: map[string]interface{}{
			"issue_key":  "PROJ-1",
			"unexpected": true,
		},
	})

	assert.False(t, resp.IsError)
	assert.Contains(t, responseText(t, resp), "PROJ-1: A summary")
}

func TestGetIssueEndToEnd(t *testing.T) {
	d := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/api/2/issue/PROJ-1", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id": "1", "key": "PROJ-1",
			"fields": map[string]interface{}{
				"summary": "Fix login",
				"status":  map[string]interface{}{"name": "Open"},
			},
		})
	}))

	resp := d.Dispatch(context.Background(), &domain.ToolRequest{
		Name:      "get_issue",
		Arguments: map[string]interface{}{"issue_key": "PROJ-1"},
	})

	assert.False(t, resp.IsError)
	text := responseText(t, resp)
	assert.Contains(t, text, "PROJ-1: Fix login")
	assert.Contains(t, text, "Assignee: Unassigned")
}

func TestGetIssueNotFound(t *testing.T) {
	d := newTestDispatcher(t, http.NotFoundHandler())

	resp := d.Dispatch(context.Background(), &domain.ToolRequest{
		Name:      "get_issue",
		Arguments: map[string]interface{}{"issue_key": "PROJ-404"},
	})

	assert.True(t, resp.IsError)
	assert.Contains(t, responseText(t, resp), "RemoteNotFound")
}

func TestUpdateIssueRequiresAField(t *testing.T) {
	var calls atomic.Int32
	d := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))

	resp := d.Dispatch(context.Background(), &domain.ToolRequest{
		Name:      "update_issue",
		Arguments: map[string]interface{}{"issue_key": "PROJ-1"},
	})

	assert.True(t, resp.IsError)
	assert.Contains(t, responseText(t, resp), "InvalidArguments")
	assert.Zero(t, calls.Load())
}

func TestTransitionIssueResolvesByName(t *testing.T) {
	var transitioned struct {
		Transition struct {
			ID string `json:"id"`
		} `json:"transition"`
	}
	d := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(map[string]interface{}{
				"transitions": []map[string]interface{}{
					{"id": "11", "name": "To Do", "to": map[string]interface{}{"name": "To Do"}},
					{"id": "21", "name": "In Progress", "to": map[string]interface{}{"name": "In Progress"}},
				},
			})
		case http.MethodPost:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&transitioned))
			w.WriteHeader(http.StatusNoContent)
		}
	}))

	resp := d.Dispatch(context.Background(), &domain.ToolRequest{
		Name: "transition_issue",
		Arguments: map[string]interface{}{
			"issue_key":       "PROJ-1",
			"transition_name": "in progress",
		},
	})

	assert.False(t, resp.IsError)
	assert.Equal(t, "21", transitioned.Transition.ID)
	assert.Contains(t, responseText(t, resp), "In Progress")
}

func TestTransitionIssueUnknownNameListsAvailable(t *testing.T) {
	d := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"transitions": []map[string]interface{}{
				{"id": "11", "name": "To Do"},
				{"id": "31", "name": "Done"},
			},
		})
	}))

	resp := d.Dispatch(context.Background(), &domain.ToolRequest{
		Name: "transition_issue",
		Arguments: map[string]interface{}{
			"issue_key":       "PROJ-1",
			"transition_name": "Reopen",
		},
	})

	assert.True(t, resp.IsError)
	text := responseText(t, resp)
	assert.Contains(t, text, "RemoteValidationRejected")
	assert.Contains(t, text, "To Do, Done")
}

func TestSearchIssuesCapsMaxResults(t *testing.T) {
	d := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("maxResults"))
		json.NewEncoder(w).Encode(map[string]interface{}{"total": 0, "issues": []interface{}{}})
	}))

	resp := d.Dispatch(context.Background(), &domain.ToolRequest{
		Name: "search_issues",
		Arguments: map[string]interface{}{
			"jql":         "project = PROJ",
			"max_results": float64(500),
		},
	})

	assert.False(t, resp.IsError)
	assert.Contains(t, responseText(t, resp), "No issues found")
}

func TestListSprintsResolvesBoardFromProject(t *testing.T) {
	d := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/agile/1.0/board":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"values": []map[string]interface{}{
					{"id": 1, "name": "Other board", "type": "scrum",
						"location": map[string]interface{}{"projectKey": "OTHER"}},
					{"id": 3, "name": "PROJ board", "type": "scrum",
						"location": map[string]interface{}{"projectKey": "PROJ"}},
				},
			})
		case "/rest/agile/1.0/board/3/sprint":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"values": []map[string]interface{}{
					{"id": 7, "name": "Sprint 7", "state": "active"},
				},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	resp := d.Dispatch(context.Background(), &domain.ToolRequest{
		Name:      "list_sprints",
		Arguments: map[string]interface{}{"project_key": "PROJ"},
	})

	assert.False(t, resp.IsError)
	text := responseText(t, resp)
	assert.Contains(t, text, "Sprints for board 3")
	assert.Contains(t, text, "Sprint 7")
}

func TestListSprintsRequiresBoardOrProject(t *testing.T) {
	var calls atomic.Int32
	d := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))

	resp := d.Dispatch(context.Background(), &domain.ToolRequest{
		Name:      "list_sprints",
		Arguments: map[string]interface{}{},
	})

	assert.True(t, resp.IsError)
	assert.Contains(t, responseText(t, resp), "InvalidArguments")
	assert.Zero(t, calls.Load())
}

func TestMoveIssuesToSprintMixedOutcome(t *testing.T) {
	var mu sync.Mutex
	moved := map[string]bool{}
	d := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body domain.SprintMove
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Issues, 1)

		if body.Issues[0] == "BAD-1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		mu.Lock()
		moved[body.Issues[0]] = true
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))

	resp := d.Dispatch(context.Background(), &domain.ToolRequest{
		Name: "move_issues_to_sprint",
		Arguments: map[string]interface{}{
			"sprint_id": float64(7),
			"issues":    []interface{}{"A-1", "A-2", "BAD-1"},
		},
	})

	assert.False(t, resp.IsError)
	text := responseText(t, resp)
	assert.Contains(t, text, "2 succeeded, 1 failed")
	assert.Contains(t, text, "Succeeded: A-1, A-2")
	assert.Contains(t, text, "Failed: BAD-1 (RemoteNotFound")
	assert.True(t, moved["A-1"])
	assert.True(t, moved["A-2"])
}

func TestMoveIssuesToSprintBatchTooLarge(t *testing.T) {
	var calls atomic.Int32
	d := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))

	issues := make([]interface{}, 51)
	for i := range issues {
		issues[i] = fmt.Sprintf("PROJ-%d", i+1)
	}

	resp := d.Dispatch(context.Background(), &domain.ToolRequest{
		Name: "move_issues_to_sprint",
		Arguments: map[string]interface{}{
			"sprint_id": float64(7),
			"issues":    issues,
		},
	})

	assert.True(t, resp.IsError)
	assert.Contains(t, responseText(t, resp), "BatchTooLarge")
	assert.Zero(t, calls.Load(), "oversized batches must issue zero remote calls")
}

func TestAddWorklogRejectsBadDuration(t *testing.T) {
	var calls atomic.Int32
	d := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))

	resp := d.Dispatch(context.Background(), &domain.ToolRequest{
		Name: "add_worklog",
		Arguments: map[string]interface{}{
			"issue_key":  "PROJ-1",
			"time_spent": "1x",
		},
	})

	assert.True(t, resp.IsError)
	assert.Contains(t, responseText(t, resp), "InvalidDurationFormat")
	assert.Zero(t, calls.Load())
}

func TestAddWorklogPostsSeconds(t *testing.T) {
	var posted domain.WorklogCreate
	d := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/api/2/issue/PROJ-1/worklog", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":               "42",
			"timeSpentSeconds": posted.TimeSpentSeconds,
		})
	}))

	resp := d.Dispatch(context.Background(), &domain.ToolRequest{
		Name: "add_worklog",
		Arguments: map[string]interface{}{
			"issue_key":  "PROJ-1",
			"time_spent": "1h 30m",
			"comment":    "pairing session",
		},
	})

	assert.False(t, resp.IsError)
	assert.Equal(t, int64(5400), posted.TimeSpentSeconds)
	assert.Equal(t, "pairing session", posted.Comment)
	assert.NotEmpty(t, posted.Started, "started defaults to now")
	assert.Contains(t, responseText(t, resp), "Logged 1h 30m on PROJ-1")
}

func TestConcurrentInvocationsStayIndependent(t *testing.T) {
	d := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/rest/api/2/issue/")
		time.Sleep(5 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id": "1", "key": key,
			"fields": map[string]interface{}{"summary": "Summary of " + key},
		})
	}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		key := fmt.Sprintf("PROJ-%d", i+1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := d.Dispatch(context.Background(), &domain.ToolRequest{
				Name:      "get_issue",
				Arguments: map[string]interface{}{"issue_key": key},
			})
			if !assert.False(t, resp.IsError) {
				return
			}
			text := resp.Content[0].Text
			assert.Contains(t, text, key+": Summary of "+key)
		}()
	}
	wg.Wait()
}

func TestDispatchRecoversFromHandlerPanic(t *testing.T) {
	d := newTestDispatcher(t, http.NotFoundHandler())
	d.register(domain.ToolDefinition{
		Name:        "faulty_tool",
		Description: "panics on invocation",
		InputSchema: objectSchema(map[string]interface{}{}),
	}, func(ctx context.Context, args map[string]interface{}) (*domain.ToolResponse, error) {
		panic("nil map write")
	})

	resp := d.Dispatch(context.Background(), &domain.ToolRequest{Name: "faulty_tool"})

	require.NotNil(t, resp, "a panicking handler must still yield a response")
	assert.True(t, resp.IsError)
	text := responseText(t, resp)
	assert.Contains(t, text, "RemoteUnavailable")
	assert.Contains(t, text, "faulty_tool")
}

func TestDispatchCancelledContext(t *testing.T) {
	d := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp := d.Dispatch(ctx, &domain.ToolRequest{
		Name:      "get_issue",
		Arguments: map[string]interface{}{"issue_key": "PROJ-1"},
	})

	assert.True(t, resp.IsError)
	assert.Contains(t, responseText(t, resp), "Cancelled")
}
