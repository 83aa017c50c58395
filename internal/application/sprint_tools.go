package application

import (
	"context"
	"fmt"
	"strings"

	"jira-mcp-server/internal/domain"
)

// registerSprintTools registers board and sprint tools.
func (d *Dispatcher) registerSprintTools() {
	d.register(domain.ToolDefinition{
		Name:        "list_sprints",
		Description: "List the sprints of a board, optionally filtered by state",
		InputSchema: objectSchema(map[string]interface{}{
			"board_id":    intProp("Board id; either board_id or project_key is required"),
			"project_key": stringProp("Project key to resolve the board from"),
			"state":       stringProp("Optional sprint state filter: future, active or closed"),
		}),
	}, d.handleListSprints)

	d.register(domain.ToolDefinition{
		Name:        "get_sprint",
		Description: "Get a sprint's details together with its issues",
		InputSchema: objectSchema(map[string]interface{}{
			"sprint_id": intProp("Sprint id"),
		}, "sprint_id"),
	}, d.handleGetSprint)

	d.register(domain.ToolDefinition{
		Name:        "get_active_sprint",
		Description: "Get the currently active sprint of a board with its issues",
		InputSchema: objectSchema(map[string]interface{}{
			"board_id":    intProp("Board id; either board_id or project_key is required"),
			"project_key": stringProp("Project key to resolve the board from"),
		}),
	}, d.handleGetActiveSprint)

	d.register(domain.ToolDefinition{
		Name:        "move_issues_to_sprint",
		Description: "Move up to 50 issues into a sprint, reporting success or failure per issue",
		InputSchema: objectSchema(map[string]interface{}{
			"sprint_id": intProp("Target sprint id"),
			"issues":    stringArrayProp("Issue keys to move"),
		}, "sprint_id", "issues"),
	}, d.handleMoveIssuesToSprint)

	d.register(domain.ToolDefinition{
		Name:        "get_boards",
		Description: "List all agile boards visible to the configured account",
		InputSchema: objectSchema(map[string]interface{}{}),
	}, d.handleGetBoards)
}

// resolveBoardID returns the board to operate on: board_id when given,
// otherwise a board resolved from project_key by location match with a
// name-contains fallback.
func (d *Dispatcher) resolveBoardID(ctx context.Context, args map[string]interface{}) (int, error) {
	boardID, set, err := getIntParam(args, "board_id", false)
	if err != nil {
		return 0, err
	}
	if set {
		if boardID <= 0 {
			return 0, domain.InvalidArgument("board_id", "must be a positive integer")
		}
		return boardID, nil
	}

	projectKey, err := getStringParam(args, "project_key", false)
	if err != nil {
		return 0, err
	}
	if projectKey == "" {
		return 0, domain.NewToolError(domain.KindInvalidArguments,
			"either board_id or project_key is required")
	}

	boards, err := d.client.GetBoards(ctx)
	if err != nil {
		return 0, err
	}
	for _, board := range boards {
		if strings.EqualFold(board.Location.ProjectKey, projectKey) {
			return board.ID, nil
		}
	}
	for _, board := range boards {
		if strings.Contains(strings.ToLower(board.Name), strings.ToLower(projectKey)) {
			return board.ID, nil
		}
	}
	return 0, domain.NewToolError(domain.KindRemoteNotFound,
		"no board found for project %s", projectKey)
}

func (d *Dispatcher) handleListSprints(ctx context.Context, args map[string]interface{}) (*domain.ToolResponse, error) {
	state, err := getStringParam(args, "state", false)
	if err != nil {
		return nil, err
	}
	switch state {
	case "", "future", "active", "closed":
	default:
		return nil, domain.InvalidArgument("state", "must be one of future, active or closed")
	}

	boardID, err := d.resolveBoardID(ctx, args)
	if err != nil {
		return nil, err
	}

	sprints, err := d.client.GetBoardSprints(ctx, boardID, state)
	if err != nil {
		return nil, err
	}
	return domain.NewTextResponse(domain.FormatSprintList(boardID, state, sprints)), nil
}

func (d *Dispatcher) handleGetSprint(ctx context.Context, args map[string]interface{}) (*domain.ToolResponse, error) {
	sprintID, _, err := getIntParam(args, "sprint_id", true)
	if err != nil {
		return nil, err
	}
	if sprintID <= 0 {
		return nil, domain.InvalidArgument("sprint_id", "must be a positive integer")
	}

	sprint, err := d.client.GetSprint(ctx, sprintID)
	if err != nil {
		return nil, err
	}
	issues, err := d.client.GetSprintIssues(ctx, sprintID)
	if err != nil {
		return nil, err
	}
	return domain.NewTextResponse(domain.FormatSprintWithIssues(sprint, issues)), nil
}

func (d *Dispatcher) handleGetActiveSprint(ctx context.Context, args map[string]interface{}) (*domain.ToolResponse, error) {
	boardID, err := d.resolveBoardID(ctx, args)
	if err != nil {
		return nil, err
	}

	sprints, err := d.client.GetBoardSprints(ctx, boardID, "active")
	if err != nil {
		return nil, err
	}
	if len(sprints) == 0 {
		return domain.NewTextResponse(fmt.Sprintf("No active sprint on board %d", boardID)), nil
	}

	// A board has at most one active sprint.
	sprint := &sprints[0]
	issues, err := d.client.GetSprintIssues(ctx, sprint.ID)
	if err != nil {
		return nil, err
	}
	return domain.NewTextResponse(domain.FormatSprintWithIssues(sprint, issues)), nil
}

func (d *Dispatcher) handleMoveIssuesToSprint(ctx context.Context, args map[string]interface{}) (*domain.ToolResponse, error) {
	sprintID, _, err := getIntParam(args, "sprint_id", true)
	if err != nil {
		return nil, err
	}
	if sprintID <= 0 {
		return nil, domain.InvalidArgument("sprint_id", "must be a positive integer")
	}
	issues, err := getStringSliceParam(args, "issues", true)
	if err != nil {
		return nil, err
	}

	// One call per issue keeps each item's outcome independent.
	report, err := d.runBulk(ctx, issues, func(ctx context.Context, key string) error {
		return d.client.MoveIssuesToSprint(ctx, sprintID, []string{key})
	})
	if err != nil {
		return nil, err
	}

	action := fmt.Sprintf("Moved issues to sprint %d", sprintID)
	return domain.NewTextResponse(domain.FormatBulkReport(action, report)), nil
}

func (d *Dispatcher) handleGetBoards(ctx context.Context, args map[string]interface{}) (*domain.ToolResponse, error) {
	boards, err := d.client.GetBoards(ctx)
	if err != nil {
		return nil, err
	}
	return domain.NewTextResponse(domain.FormatBoards(boards)), nil
}
