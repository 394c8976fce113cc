// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/evanschultz/boardsync/internal/adapters/server/common"
	"github.com/evanschultz/boardsync/internal/domain"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter exposing the board tools.
func NewHandler(cfg Config, board common.BoardService) (*Handler, error) {
	if board == nil {
		return nil, fmt.Errorf("board service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerReadTools(mcpSrv, board)
	registerMutationTools(mcpSrv, board)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "boardsync"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(cfg.EndpointPath, "/") {
		cfg.EndpointPath = "/" + cfg.EndpointPath
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// groupByValues lists the accepted grouping modes.
func groupByValues() []string {
	modes := domain.GroupingModes()
	out := make([]string, 0, len(modes))
	for _, mode := range modes {
		out = append(out, string(mode))
	}
	return out
}

// fieldValues lists the editable field names.
func fieldValues() []string {
	fields := domain.Fields()
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		out = append(out, string(field))
	}
	return out
}

// actorFrom reads optional attribution arguments.
func actorFrom(req mcp.CallToolRequest) common.ActorRef {
	return common.ActorRef{
		ActorID:   req.GetString("actor_id", "mcp"),
		ActorType: req.GetString("actor_type", "agent"),
	}
}

// jsonResult encodes one structured tool result.
func jsonResult(tool string, payload any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", tool, err)
	}
	return result, nil
}

// registerReadTools registers board and task reads.
func registerReadTools(srv *mcpserver.MCPServer, board common.BoardService) {
	srv.AddTool(
		mcp.NewTool(
			"boardsync.get_board",
			mcp.WithDescription("Return the grouped board: groups with row counts, flattened rows, tasks and the selection."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			view, err := board.Board(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("get_board", view)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"boardsync.get_task",
			mcp.WithDescription("Return one task with its pending local edits."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			view, err := board.Task(ctx, taskID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("get_task", view)
		},
	)
}

// registerMutationTools registers optimistic board edits.
func registerMutationTools(srv *mcpserver.MCPServer, board common.BoardService) {
	srv.AddTool(
		mcp.NewTool(
			"boardsync.update_field",
			mcp.WithDescription("Edit one task field optimistically. value is JSON: a string, null, a number of minutes, a percentage, an RFC3339 date or a list of ids."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
			mcp.WithString("field", mcp.Required(), mcp.Description("Field name"), mcp.Enum(fieldValues()...)),
			mcp.WithString("value", mcp.Required(), mcp.Description("JSON-encoded field value")),
			mcp.WithString("actor_id", mcp.Description("Caller identity for attribution")),
			mcp.WithString("actor_type", mcp.Description("user, agent or system"), mcp.Enum("user", "agent", "system")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			field, err := req.RequireString("field")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			raw, err := req.RequireString("value")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			if !json.Valid([]byte(raw)) {
				// A bare word is taken as a string value.
				encoded, _ := json.Marshal(raw)
				raw = string(encoded)
			}
			view, err := board.UpdateField(ctx, common.UpdateFieldRequest{
				TaskID:   taskID,
				Field:    field,
				Value:    json.RawMessage(raw),
				ActorRef: actorFrom(req),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("update_field", view)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"boardsync.move_task",
			mcp.WithDescription("Reorder one task within its group, onto another task or to the end of the group."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task to move")),
			mcp.WithString("target_task_id", mcp.Description("Task whose slot the moved task takes")),
			mcp.WithBoolean("end", mcp.Description("Move to the end of the group instead")),
			mcp.WithString("actor_id", mcp.Description("Caller identity for attribution")),
			mcp.WithString("actor_type", mcp.Description("user, agent or system"), mcp.Enum("user", "agent", "system")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			result, err := board.MoveTask(ctx, common.MoveTaskRequest{
				TaskID:       taskID,
				TargetTaskID: req.GetString("target_task_id", ""),
				End:          req.GetBool("end", false),
				ActorRef:     actorFrom(req),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("move_task", result)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"boardsync.set_grouping",
			mcp.WithDescription("Switch the board grouping mode and return the regrouped board."),
			mcp.WithString("group_by", mcp.Required(), mcp.Description("Grouping mode"), mcp.Enum(groupByValues()...)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			groupBy, err := req.RequireString("group_by")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			view, err := board.SetGrouping(ctx, common.SetGroupingRequest{GroupBy: groupBy})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("set_grouping", view)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"boardsync.toggle_group",
			mcp.WithDescription("Collapse or expand one group. Without collapsed the current state flips."),
			mcp.WithString("group_id", mcp.Required(), mcp.Description("Group identifier")),
			mcp.WithBoolean("collapsed", mcp.Description("Explicit collapsed state")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			groupID, err := req.RequireString("group_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			in := common.ToggleGroupRequest{GroupID: groupID}
			if _, ok := req.GetArguments()["collapsed"]; ok {
				collapsed := req.GetBool("collapsed", false)
				in.Collapsed = &collapsed
			}
			view, err := board.ToggleGroup(ctx, in)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("toggle_group", view)
		},
	)
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, common.ErrInvalidRequest):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, common.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, common.ErrConflict):
		return mcp.NewToolResultError("conflict: " + err.Error())
	case errors.Is(err, common.ErrUnavailable):
		return mcp.NewToolResultError("service_unavailable: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}
