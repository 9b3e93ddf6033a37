package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/omr-grader-mcp/internal/config"
	"github.com/ironsheep/omr-grader-mcp/internal/omr"
)

// testConfig lays one 3-question zone over the whole page.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Layout.Zones = 1
	cfg.Layout.RowsPerZone = 3
	cfg.Zones.Strategy = config.StrategyTemplate
	cfg.Zones.Fallback = []config.TemplateRect{{X1: 0, Y1: 0, X2: 1, Y2: 1}}
	require.NoError(t, cfg.Validate())
	return cfg
}

func newTestServer(t *testing.T, key omr.AnswerKey) *Server {
	t.Helper()
	s, err := New(testConfig(t), key, nil)
	require.NoError(t, err)
	return s
}

// createTestImageFile writes a white 100x300 PNG sheet and returns its path.
func createTestImageFile(t *testing.T, name string) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 100, 300))
	for y := 0; y < 300; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, color.White)
		}
	}

	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func callTool(t *testing.T, s *Server, name string, args interface{}) *MCPResponse {
	t.Helper()
	params, err := json.Marshal(map[string]interface{}{"name": name, "arguments": args})
	require.NoError(t, err)
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: params})
	require.NotNil(t, resp)
	return resp
}

// toolText decodes the JSON text payload of a successful tool response.
func toolText(t *testing.T, resp *MCPResponse, v interface{}) {
	t.Helper()
	require.Nil(t, resp.Error, "unexpected error: %+v", resp.Error)
	result, ok := resp.Result.(map[string]interface{})
	require.True(t, ok)
	content := result["content"].([]map[string]interface{})
	require.Len(t, content, 1)
	require.NoError(t, json.Unmarshal([]byte(content[0]["text"].(string)), v))
}

func TestHandleRequest_Initialize(t *testing.T) {
	s := newTestServer(t, nil)
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "initialize"})

	require.NotNil(t, resp)
	require.Nil(t, resp.Error)
	assert.Equal(t, 1, resp.ID)

	result := resp.Result.(map[string]interface{})
	assert.Equal(t, "2024-11-05", result["protocolVersion"])
	info := result["serverInfo"].(map[string]interface{})
	assert.Equal(t, "omr-grader-mcp", info["name"])
}

func TestHandleRequest_Ping(t *testing.T) {
	s := newTestServer(t, nil)
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: "ping-1", Method: "ping"})

	require.NotNil(t, resp)
	assert.Nil(t, resp.Error)
	assert.Equal(t, "ping-1", resp.ID)
}

func TestHandleRequest_NotificationsInitialized(t *testing.T) {
	s := newTestServer(t, nil)
	assert.Nil(t, s.handleRequest(&MCPRequest{JSONRPC: "2.0", Method: "notifications/initialized"}))
}

func TestHandleRequest_MethodNotFound(t *testing.T) {
	s := newTestServer(t, nil)
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "nonexistent/method"})

	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32601, resp.Error.Code)
}

func TestHandleRequest_ToolsList(t *testing.T) {
	s := newTestServer(t, nil)
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/list"})

	require.Nil(t, resp.Error)
	tools := resp.Result.(map[string]interface{})["tools"].([]Tool)
	assert.Len(t, tools, 6)
}

func TestServe(t *testing.T) {
	s := newTestServer(t, nil)
	in := strings.NewReader(strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		``,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`not json`,
		`{"jsonrpc":"2.0","id":2,"method":"ping"}`,
	}, "\n"))
	var out bytes.Buffer

	require.NoError(t, s.Serve(in, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)

	var parseErr MCPResponse
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &parseErr))
	require.NotNil(t, parseErr.Error)
	assert.Equal(t, -32700, parseErr.Error.Code)

	var pong MCPResponse
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &pong))
	assert.EqualValues(t, 2, pong.ID)
}

func TestServe_ErrorPaths(t *testing.T) {
	s := newTestServer(t, nil)
	in := strings.NewReader(strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,`,
		`{"jsonrpc":"1.0","id":2,"method":"ping"}`,
		`{"jsonrpc":"2.0","id":3}`,
		`{"jsonrpc":"2.0","method":"notifications/cancelled"}`,
		`{"jsonrpc":"2.0","id":4,"method":"resources/list"}`,
	}, "\n"))
	var out bytes.Buffer

	require.NoError(t, s.Serve(in, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4, "the notification must not be answered")

	tests := []struct {
		id   interface{}
		code int
	}{
		{nil, -32700},
		{float64(2), -32600},
		{float64(3), -32600},
		{float64(4), -32601},
	}
	for i, tt := range tests {
		var resp MCPResponse
		require.NoError(t, json.Unmarshal([]byte(lines[i]), &resp))
		require.NotNil(t, resp.Error, "line %d", i)
		assert.Equal(t, tt.code, resp.Error.Code, "line %d", i)
		assert.Equal(t, tt.id, resp.ID, "line %d", i)
	}
	assert.Contains(t, lines[0], `"id":null`)
}

func TestMCPResponse_Marshal(t *testing.T) {
	resp := MCPResponse{
		JSONRPC: "2.0",
		ID:      7,
		Error:   &MCPError{Code: -32000, Message: "Tool execution failed", Data: "zone detection failure"},
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded MCPResponse
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.NotNil(t, decoded.Error)
	assert.Equal(t, -32000, decoded.Error.Code)
	assert.Nil(t, decoded.Result)
}
