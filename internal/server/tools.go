package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

var pathProperty = map[string]interface{}{
	"type":        "string",
	"description": "Absolute path to the scanned answer sheet",
}

var answerKeyProperties = map[string]interface{}{
	"answer_key": map[string]interface{}{
		"type":                 "object",
		"description":          "Question number to correct option, e.g. {\"1\": \"A\", \"2\": \"C\"}. Defaults to the server's key.",
		"additionalProperties": map[string]interface{}{"type": "string"},
	},
	"answer_key_path": map[string]interface{}{
		"type":        "string",
		"description": "Path to a YAML or JSON answer key file. Used when answer_key is omitted.",
	},
	"detections": map[string]interface{}{
		"type":        "array",
		"description": "Detector output for this sheet. If omitted, the configured sidecar file next to the image is read.",
		"items": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"box": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "number"},
					"description": "[x1, y1, x2, y2] in pixels",
				},
				"confidence": map[string]interface{}{"type": "number"},
				"class_id":   map[string]interface{}{"type": "integer"},
			},
			"required": []string{"box", "confidence", "class_id"},
		},
	},
}

// withPath returns an object schema with path plus the given properties.
func withPath(props map[string]interface{}, required ...string) map[string]interface{} {
	all := map[string]interface{}{"path": pathProperty}
	for k, v := range props {
		all[k] = v
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": all,
		"required":   append([]string{"path"}, required...),
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Sheet Information
		{
			Name:        "omr_sheet_info",
			Description: "Load a scanned answer sheet and return its dimensions and format. The image is cached for later calls.",
			InputSchema: withPath(nil),
		},

		// Layout
		{
			Name:        "omr_detect_zones",
			Description: "Find the answer blocks on a sheet. Returns each zone's rectangle and question range, and whether the fallback template was used.",
			InputSchema: withPath(map[string]interface{}{
				"strategy": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"contour", "projection", "cluster", "template"},
					"description": "Override the configured detection strategy",
				},
			}),
		},
		{
			Name:        "omr_grid",
			Description: "Return the question/option cell grid of every zone in absolute pixel coordinates.",
			InputSchema: withPath(map[string]interface{}{
				"zone": map[string]interface{}{
					"type":        "integer",
					"description": "Only return cells of this zone index (0-based)",
				},
			}),
		},
		{
			Name:        "omr_crop_zone",
			Description: "Crop one detected zone and return it as base64-encoded PNG for close inspection.",
			InputSchema: withPath(map[string]interface{}{
				"zone": map[string]interface{}{
					"type":        "integer",
					"description": "Zone index (0-based)",
				},
				"scale": map[string]interface{}{
					"type":        "number",
					"description": "Optional scale factor. Default 1.0",
					"default":     1.0,
				},
			}, "zone"),
		},

		// Grading
		{
			Name:        "omr_grade_sheet",
			Description: "Grade a sheet: assign detections to questions, resolve multiple marks, and score against the answer key.",
			InputSchema: withPath(answerKeyProperties),
		},
		{
			Name:        "omr_render_overlay",
			Description: "Grade a sheet and return a debug image with zones, grid, detections and per-question status as base64-encoded PNG.",
			InputSchema: withPath(merge(answerKeyProperties, map[string]interface{}{
				"grid_color": map[string]interface{}{
					"type":        "string",
					"description": "Cell grid color as #rrggbb",
				},
				"badges": map[string]interface{}{
					"type":        "boolean",
					"description": "Label each question row with its status (default true)",
					"default":     true,
				},
			})),
		},
	}
}

func merge(maps ...map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
