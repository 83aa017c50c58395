package application

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jira-mcp-server/internal/domain"
	"jira-mcp-server/internal/infrastructure"
)

// startTestServer wires a full server over an in-memory stdio transport
// backed by a fake Jira API. Returns a writer for client requests and a
// scanner over server responses.
func startTestServer(t *testing.T, handler http.Handler) (io.Writer, *bufio.Scanner) {
	t.Helper()

	apiServer := httptest.NewServer(handler)
	t.Cleanup(apiServer.Close)

	client := infrastructure.NewJiraClient(apiServer.URL, apiServer.Client()).
		WithRetryPolicy(1, time.Millisecond)
	logger := NewStructuredLogger()
	dispatcher := NewDispatcher(client, logger, 4)

	inReader, inWriter := io.Pipe()
	outReader, outWriter := io.Pipe()
	transport := domain.NewStdioTransportWithIO(inReader, outWriter)

	server := NewServer(transport, dispatcher, logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, server.Start(ctx))
	t.Cleanup(func() { server.Close() })

	return inWriter, bufio.NewScanner(outReader)
}

func sendRequest(t *testing.T, w io.Writer, req map[string]interface{}) {
	t.Helper()
	data, err := json.Marshal(req)
	require.NoError(t, err)
	_, err = fmt.Fprintf(w, "%s\n", data)
	require.NoError(t, err)
}

func readResponse(t *testing.T, scanner *bufio.Scanner) *domain.Response {
	t.Helper()
	require.True(t, scanner.Scan(), "expected a response line")
	var resp domain.Response
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
	return &resp
}

func TestServerInitializeHandshake(t *testing.T) {
	in, out := startTestServer(t, http.NotFoundHandler())

	sendRequest(t, in, map[string]interface{}{
		"jsonrpc": "2.0", "id": 1, "method": "initialize",
	})
	resp := readResponse(t, out)

	require.Nil(t, resp.Error)
	result, ok := resp.Result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "2024-11-05", result["protocolVersion"])

	info, ok := result["serverInfo"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, ServerName, info["name"])
}

func TestServerToolsList(t *testing.T) {
	in, out := startTestServer(t, http.NotFoundHandler())

	sendRequest(t, in, map[string]interface{}{
		"jsonrpc": "2.0", "id": 2, "method": "tools/list",
	})
	resp := readResponse(t, out)

	require.Nil(t, resp.Error)
	result, ok := resp.Result.(map[string]interface{})
	require.True(t, ok)
	tools, ok := result["tools"].([]interface{})
	require.True(t, ok)
	assert.Len(t, tools, 19)
}

func TestServerToolsCall(t *testing.T) {
	in, out := startTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id": "1", "key": "PROJ-1",
			"fields": map[string]interface{}{"summary": "From the server"},
		})
	}))

	sendRequest(t, in, map[string]interface{}{
		"jsonrpc": "2.0", "id": 3, "method": "tools/call",
		"params": map[string]interface{}{
			"name":      "get_issue",
			"arguments": map[string]interface{}{"issue_key": "PROJ-1"},
		},
	})
	resp := readResponse(t, out)

	require.Nil(t, resp.Error)
	data, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var toolResp domain.ToolResponse
	require.NoError(t, json.Unmarshal(data, &toolResp))

	assert.False(t, toolResp.IsError)
	require.Len(t, toolResp.Content, 1)
	assert.Contains(t, toolResp.Content[0].Text, "PROJ-1: From the server")
}

func TestServerToolsCallFailureStaysStructured(t *testing.T) {
	in, out := startTestServer(t, http.NotFoundHandler())

	sendRequest(t, in, map[string]interface{}{
		"jsonrpc": "2.0", "id": 4, "method": "tools/call",
		"params": map[string]interface{}{
			"name":      "get_issue",
			"arguments": map[string]interface{}{"issue_key": "PROJ-404"},
		},
	})
	resp := readResponse(t, out)

	// Remote failures surface as a tool response, not a JSON-RPC error.
	require.Nil(t, resp.Error)
	data, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var toolResp domain.ToolResponse
	require.NoError(t, json.Unmarshal(data, &toolResp))

	assert.True(t, toolResp.IsError)
	assert.Contains(t, toolResp.Content[0].Text, "RemoteNotFound")
}

func TestServerUnknownMethod(t *testing.T) {
	in, out := startTestServer(t, http.NotFoundHandler())

	sendRequest(t, in, map[string]interface{}{
		"jsonrpc": "2.0", "id": 5, "method": "resources/list",
	})
	resp := readResponse(t, out)

	require.NotNil(t, resp.Error)
	assert.Equal(t, domain.MethodNotFound, resp.Error.Code)
}

func TestServerToolsCallMissingParams(t *testing.T) {
	in, out := startTestServer(t, http.NotFoundHandler())

	sendRequest(t, in, map[string]interface{}{
		"jsonrpc": "2.0", "id": 6, "method": "tools/call",
	})
	resp := readResponse(t, out)

	require.NotNil(t, resp.Error)
	assert.Equal(t, domain.InvalidParams, resp.Error.Code)
}

func TestParseToolRequest(t *testing.T) {
	req, err := parseToolRequest(map[string]interface{}{
		"name": "get_issue",
	})
	require.NoError(t, err)
	assert.Equal(t, "get_issue", req.Name)
	assert.NotNil(t, req.Arguments)

	_, err = parseToolRequest(map[string]interface{}{})
	assert.Error(t, err)

	_, err = parseToolRequest(nil)
	assert.Error(t, err)
}
