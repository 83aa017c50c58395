package application

import (
	"context"
	"encoding/json"
	"fmt"

	"jira-mcp-server/internal/domain"
)

// ServerName and ServerVersion identify the server during the MCP
// handshake.
const (
	ServerName      = "jira-mcp-server"
	ServerVersion   = "1.0.0"
	protocolVersion = "2024-11-05"
)

// Server runs the MCP protocol over a transport: the initialize handshake,
// tools/list and tools/call. Each tools/call runs in its own goroutine so
// slow invocations never block the others.
type Server struct {
	transport  domain.Transport
	dispatcher *Dispatcher
	logger     *StructuredLogger
}

// NewServer creates an MCP server.
func NewServer(transport domain.Transport, dispatcher *Dispatcher, logger *StructuredLogger) *Server {
	return &Server{
		transport:  transport,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Start launches the transport and the request loop.
func (s *Server) Start(ctx context.Context) error {
	if err := s.transport.Start(ctx); err != nil {
		s.logger.LogError("failed to start transport", err, nil)
		return fmt.Errorf("failed to start transport: %w", err)
	}

	s.logger.LogInfo("server started", map[string]interface{}{
		"name":    ServerName,
		"version": ServerVersion,
	})

	go s.processRequests(ctx)
	return nil
}

// processRequests consumes incoming requests until the context is done or
// the transport closes its channel.
func (s *Server) processRequests(ctx context.Context) {
	reqChan := s.transport.Receive()

	for {
		select {
		case <-ctx.Done():
			s.logger.LogInfo("server shutting down", nil)
			return
		case req, ok := <-reqChan:
			if !ok {
				return
			}
			s.handleRequest(ctx, req)
		}
	}
}

// handleRequest routes one JSON-RPC request to its method handler.
func (s *Server) handleRequest(ctx context.Context, req *domain.Request) {
	s.logger.LogInfo("received request", map[string]interface{}{
		"method":     req.Method,
		"request_id": req.ID,
	})

	switch req.Method {
	case "initialize":
		s.send(s.handleInitialize(req))
	case "tools/list":
		s.send(s.handleToolsList(req))
	case "tools/call":
		// Invocations run concurrently; the dispatcher is stateless and
		// every path produces exactly one response.
		go s.handleToolsCall(ctx, req)
	default:
		s.send(domain.NewErrorResponse(req.ID, domain.MethodNotFound,
			"Method not found", fmt.Sprintf("unknown method: %s", req.Method)))
	}
}

// handleInitialize answers the MCP handshake with server capabilities.
func (s *Server) handleInitialize(req *domain.Request) *domain.Response {
	result := map[string]interface{}{
		"protocolVersion": protocolVersion,
		"capabilities": map[string]interface{}{
			"tools": map[string]interface{}{},
		},
		"serverInfo": map[string]interface{}{
			"name":    ServerName,
			"version": ServerVersion,
		},
	}
	return domain.NewResultResponse(req.ID, result)
}

// handleToolsList returns the full tool registry.
func (s *Server) handleToolsList(req *domain.Request) *domain.Response {
	return domain.NewResultResponse(req.ID, map[string]interface{}{
		"tools": s.dispatcher.ListTools(),
	})
}

// handleToolsCall parses and dispatches one tool invocation.
func (s *Server) handleToolsCall(ctx context.Context, req *domain.Request) {
	toolReq, err := parseToolRequest(req.Params)
	if err != nil {
		s.send(domain.NewErrorResponse(req.ID, domain.InvalidParams, "Invalid params", err.Error()))
		return
	}

	toolResp := s.dispatcher.Dispatch(ctx, toolReq)
	s.send(domain.NewResultResponse(req.ID, toolResp))
}

// parseToolRequest converts the raw params value into a ToolRequest.
func parseToolRequest(params interface{}) (*domain.ToolRequest, error) {
	if params == nil {
		return nil, fmt.Errorf("params is required for tools/call")
	}

	jsonData, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}
	var toolReq domain.ToolRequest
	if err := json.Unmarshal(jsonData, &toolReq); err != nil {
		return nil, fmt.Errorf("failed to parse tool request: %w", err)
	}

	if toolReq.Name == "" {
		return nil, fmt.Errorf("tool name is required")
	}
	if toolReq.Arguments == nil {
		toolReq.Arguments = make(map[string]interface{})
	}
	return &toolReq, nil
}

func (s *Server) send(response *domain.Response) {
	if err := s.transport.Send(response); err != nil {
		s.logger.LogError("failed to send response", err, map[string]interface{}{
			"request_id": response.ID,
		})
	}
}

// Close gracefully shuts down the server.
func (s *Server) Close() error {
	s.logger.LogInfo("closing server", nil)
	return s.transport.Close()
}
