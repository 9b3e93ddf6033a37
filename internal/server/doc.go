// Package server implements the MCP (Model Context Protocol) server for the
// answer-sheet grader.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Logs go to stderr through zap so they never corrupt the response stream.
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Sheet Information:
//   - omr_sheet_info: Load a sheet and get metadata
//
// Layout:
//   - omr_detect_zones: Find the answer blocks and their question ranges
//   - omr_grid: Question/option cells of every zone
//   - omr_crop_zone: Extract one zone as PNG
//
// Grading:
//   - omr_grade_sheet: Full pipeline, returns the grade report and warnings
//   - omr_render_overlay: Debug image of a graded sheet
//
// Grading tools take detections inline or read the configured sidecar file
// next to the image. The answer key comes from the call or, failing that,
// from the key the server was started with.
//
// # Image Caching
//
// Sheets are cached by path and reused across tool calls, so inspecting one
// sheet through several tools decodes it once. The cache persists for the
// lifetime of the server process.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string, which names the failure class (image load,
//     zone detection, detector)
//
// # Usage
//
//	srv, err := server.New(cfg, key, logger)
//	if err != nil {
//	    return err
//	}
//	return srv.Run()
package server
