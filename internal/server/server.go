package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/ironsheep/omr-grader-mcp/internal/config"
	"github.com/ironsheep/omr-grader-mcp/internal/imaging"
	"github.com/ironsheep/omr-grader-mcp/internal/omr"
	"github.com/ironsheep/omr-grader-mcp/internal/zones"
)

// Version is reported in the initialize handshake.
var Version = "0.1.0"

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeToolFailed     = -32000
)

// maxLine bounds one request line. Inline detections for a dense sheet stay
// well below it.
const maxLine = 1 << 20

// Server answers MCP requests for one grading configuration. Sheets are
// decoded once and cached by path.
type Server struct {
	cfg   *config.Config
	key   omr.AnswerKey // default key, may be nil
	cache *imaging.ImageCache
	zones *zones.Detector
	log   *zap.Logger
}

// MCPRequest is one JSON-RPC request or notification. A notification has
// no ID and never gets a response.
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// New builds a server. key is the answer key used when a grading call does
// not supply one; it may be nil.
func New(cfg *config.Config, key omr.AnswerKey, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	zd, err := zones.NewDetector(cfg, log)
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:   cfg,
		key:   key,
		cache: imaging.NewImageCache(),
		zones: zd,
		log:   log.Named("mcp"),
	}, nil
}

// Run serves stdin/stdout until stdin closes.
func (s *Server) Run() error {
	return s.Serve(os.Stdin, os.Stdout)
}

// Serve reads one request per line from r and writes one response line per
// request to w. Malformed lines get a parse error with a null id.
func (s *Server) Serve(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.log.Warn("unparseable request", zap.Error(err))
			s.reply(enc, s.errorResponse(nil, codeParseError, "Parse error", err.Error()))
			continue
		}
		s.reply(enc, s.handleRequest(&req))
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading requests: %w", err)
	}
	return nil
}

func (s *Server) reply(enc *json.Encoder, resp *MCPResponse) {
	if resp == nil {
		return
	}
	if err := enc.Encode(resp); err != nil {
		s.log.Error("failed to write response", zap.Any("id", resp.ID), zap.Error(err))
	}
}

func (s *Server) handleRequest(req *MCPRequest) *MCPResponse {
	s.log.Debug("request", zap.String("method", req.Method), zap.Any("id", req.ID))

	if req.JSONRPC != "2.0" || req.Method == "" {
		if req.ID == nil {
			return nil
		}
		return s.errorResponse(req.ID, codeInvalidRequest, "Invalid Request", `want jsonrpc "2.0" and a method`)
	}
	if req.ID == nil {
		// notifications/initialized and friends need no answer
		return nil
	}

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(req)
	case "ping":
		return &MCPResponse{JSONRPC: "2.0", ID: req.ID, Result: map[string]interface{}{}}
	default:
		return s.errorResponse(req.ID, codeMethodNotFound, "Method not found", req.Method)
	}
}

func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "omr-grader-mcp",
				"version": Version,
			},
		},
	}
}
