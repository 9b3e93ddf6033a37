package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ironsheep/omr-grader-mcp/internal/config"
	"github.com/ironsheep/omr-grader-mcp/internal/detector"
	"github.com/ironsheep/omr-grader-mcp/internal/grid"
	"github.com/ironsheep/omr-grader-mcp/internal/imaging"
	"github.com/ironsheep/omr-grader-mcp/internal/omr"
	"github.com/ironsheep/omr-grader-mcp/internal/overlay"
	"github.com/ironsheep/omr-grader-mcp/internal/pipeline"
	"github.com/ironsheep/omr-grader-mcp/internal/zones"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "omr_grade_sheet").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with codeToolFailed.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		return s.errorResponse(req.ID, codeToolFailed, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Applies default values for optional parameters
//  3. Loads the sheet from cache
//  4. Runs the zone detector, grid mapper or full grading pipeline
//  5. Returns the result or error
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "omr_sheet_info":
		return s.handleSheetInfo(args)
	case "omr_detect_zones":
		return s.handleDetectZones(args)
	case "omr_grid":
		return s.handleGrid(args)
	case "omr_crop_zone":
		return s.handleCropZone(args)
	case "omr_grade_sheet":
		return s.handleGradeSheet(args)
	case "omr_render_overlay":
		return s.handleRenderOverlay(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func unmarshalArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		return fmt.Errorf("missing arguments")
	}
	return json.Unmarshal(args, v)
}

// === Sheet Information ===

type sheetArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleSheetInfo(args json.RawMessage) (interface{}, error) {
	var a sheetArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadSheetInfo(s.cache, a.Path)
}

// === Layout ===

type detectZonesArgs struct {
	Path     string          `json:"path"`
	Strategy config.Strategy `json:"strategy"`
}

func (s *Server) handleDetectZones(args json.RawMessage) (interface{}, error) {
	var a detectZonesArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	zd := s.zones
	if a.Strategy != "" && a.Strategy != s.cfg.Zones.Strategy {
		cfg := *s.cfg
		cfg.Zones.Strategy = a.Strategy
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if zd, err = zones.NewDetector(&cfg, s.log); err != nil {
			return nil, err
		}
	}
	return zd.Detect(img)
}

type gridArgs struct {
	Path string `json:"path"`
	Zone *int   `json:"zone"`
}

type gridResult struct {
	Zones []omr.Zone `json:"zones"`
	Cells []omr.Cell `json:"cells"`
}

func (s *Server) handleGrid(args json.RawMessage) (interface{}, error) {
	var a gridArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	zr, err := s.zones.Detect(img)
	if err != nil {
		return nil, err
	}

	selected := zr.Zones
	if a.Zone != nil {
		z, err := zoneAt(zr.Zones, *a.Zone)
		if err != nil {
			return nil, err
		}
		selected = []omr.Zone{z}
	}
	cells, err := grid.MapAll(selected, s.cfg.Layout.Options)
	if err != nil {
		return nil, err
	}
	return &gridResult{Zones: selected, Cells: cells}, nil
}

type cropZoneArgs struct {
	Path  string  `json:"path"`
	Zone  int     `json:"zone"`
	Scale float64 `json:"scale"`
}

func (s *Server) handleCropZone(args json.RawMessage) (interface{}, error) {
	var a cropZoneArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	zr, err := s.zones.Detect(img)
	if err != nil {
		return nil, err
	}
	z, err := zoneAt(zr.Zones, a.Zone)
	if err != nil {
		return nil, err
	}
	return imaging.CropZone(img, z.Rect, a.Scale)
}

func zoneAt(zs []omr.Zone, index int) (omr.Zone, error) {
	if index < 0 || index >= len(zs) {
		return omr.Zone{}, fmt.Errorf("zone %d out of range (sheet has %d zones)", index, len(zs))
	}
	return zs[index], nil
}

// === Grading ===

type gradeArgs struct {
	Path          string            `json:"path"`
	AnswerKey     map[string]string `json:"answer_key"`
	AnswerKeyPath string            `json:"answer_key_path"`
	Detections    json.RawMessage   `json:"detections"`
}

func (s *Server) handleGradeSheet(args json.RawMessage) (interface{}, error) {
	var a gradeArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	return s.grade(a)
}

type overlayArgs struct {
	gradeArgs
	GridColor string `json:"grid_color"`
	Badges    *bool  `json:"badges"`
}

func (s *Server) handleRenderOverlay(args json.RawMessage) (interface{}, error) {
	var a overlayArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	res, err := s.grade(a.gradeArgs)
	if err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	opts := overlay.Options{GridColor: a.GridColor, Badges: true}
	if a.Badges != nil {
		opts.Badges = *a.Badges
	}
	return overlay.Encode(overlay.Render(img, overlay.FromResult(res, s.cfg), opts))
}

// grade runs the full pipeline for one cached sheet.
func (s *Server) grade(a gradeArgs) (*pipeline.Result, error) {
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	key, err := s.answerKey(a)
	if err != nil {
		return nil, err
	}

	var det detector.MarkDetector
	if len(a.Detections) > 0 && string(a.Detections) != "null" {
		dets, err := detector.ParseJSON(a.Detections)
		if err != nil {
			return nil, err
		}
		det = detector.Static(dets)
	} else if det, err = detector.New(s.cfg.Detector); err != nil {
		return nil, err
	}

	p, err := pipeline.New(s.cfg, key, det, s.log)
	if err != nil {
		return nil, err
	}
	return p.GradeImage(context.Background(), a.Path, img)
}

func (s *Server) answerKey(a gradeArgs) (omr.AnswerKey, error) {
	switch {
	case len(a.AnswerKey) > 0:
		return config.AnswerKeyFromMap(a.AnswerKey)
	case a.AnswerKeyPath != "":
		return config.LoadAnswerKey(a.AnswerKeyPath)
	case s.key != nil:
		return s.key, nil
	default:
		return nil, fmt.Errorf("no answer key: pass answer_key or answer_key_path, or start the server with --key")
	}
}
