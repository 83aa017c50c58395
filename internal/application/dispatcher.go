package application

import (
	"context"

	"jira-mcp-server/internal/domain"
	"jira-mcp-server/internal/infrastructure"
)

// toolHandler executes one validated tool invocation. A nil error means the
// response carries the result; a non-nil error is classified and rendered
// into an error response by the dispatcher.
type toolHandler func(ctx context.Context, args map[string]interface{}) (*domain.ToolResponse, error)

type toolEntry struct {
	definition domain.ToolDefinition
	handler    toolHandler
}

// Dispatcher owns the fixed tool registry and runs invocations. It is
// stateless across invocations: nothing is remembered between calls, and
// any number of invocations may be in flight concurrently.
type Dispatcher struct {
	client         *infrastructure.JiraClient
	logger         *StructuredLogger
	maxConcurrency int

	tools map[string]toolEntry
	order []string
}

// NewDispatcher creates a dispatcher with every tool registered.
// maxConcurrency bounds the fan-out of bulk and relationship operations
// within a single invocation.
func NewDispatcher(client *infrastructure.JiraClient, logger *StructuredLogger, maxConcurrency int) *Dispatcher {
	if maxConcurrency <= 0 {
		maxConcurrency = 8
	}
	d := &Dispatcher{
		client:         client,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		tools:          make(map[string]toolEntry),
	}

	d.registerIssueTools()
	d.registerSprintTools()
	d.registerCollaborationTools()
	return d
}

// register adds one tool. Registration order defines the tools/list order.
func (d *Dispatcher) register(def domain.ToolDefinition, handler toolHandler) {
	d.tools[def.Name] = toolEntry{definition: def, handler: handler}
	d.order = append(d.order, def.Name)
}

// ListTools returns the tool definitions in registration order.
func (d *Dispatcher) ListTools() []domain.ToolDefinition {
	defs := make([]domain.ToolDefinition, 0, len(d.order))
	for _, name := range d.order {
		defs = append(defs, d.tools[name].definition)
	}
	return defs
}

// Dispatch runs one tool invocation. It always returns exactly one
// ToolResponse: successes carry the formatted result, failures carry the
// classified error kind in the text. It never panics a fault through to the
// transport unstructured.
func (d *Dispatcher) Dispatch(ctx context.Context, req *domain.ToolRequest) *domain.ToolResponse {
	entry, ok := d.tools[req.Name]
	if !ok {
		d.logger.LogInfo("rejected unknown tool", map[string]interface{}{"tool": req.Name})
		return domain.NewFailureResponse(
			domain.NewToolError(domain.KindUnknownTool, "no tool named %q", req.Name))
	}

	args := req.Arguments
	if args == nil {
		args = map[string]interface{}{}
	}

	resp, err := d.runHandler(ctx, req.Name, entry.handler, args)
	if err != nil {
		d.logger.LogError("tool invocation failed", err, map[string]interface{}{
			"tool": req.Name,
			"kind": string(domain.KindOf(err)),
		})
		return domain.NewFailureResponse(err)
	}
	if resp == nil {
		return domain.NewFailureResponse(
			domain.NewToolError(domain.KindRemoteUnavailable, "tool %q produced no response", req.Name))
	}

	d.logger.LogInfo("tool invocation completed", map[string]interface{}{"tool": req.Name})
	return resp
}

// runHandler executes one handler, converting a panic into a classified
// error so a faulty handler can never take down the process or leave the
// invocation without a response.
func (d *Dispatcher) runHandler(ctx context.Context, name string, handler toolHandler, args map[string]interface{}) (resp *domain.ToolResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = domain.NewToolError(domain.KindRemoteUnavailable,
				"tool %q failed unexpectedly: %v", name, r)
		}
	}()
	return handler(ctx, args)
}

// Schema construction helpers.

func objectSchema(properties map[string]interface{}, required ...string) domain.JSONSchema {
	return domain.JSONSchema{Type: "object", Properties: properties, Required: required}
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func intProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "integer", "description": description}
}

func stringArrayProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"items":       map[string]interface{}{"type": "string"},
		"description": description,
	}
}
