package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/lease-lens/internal/core/domain"
	"github.com/kirillkom/lease-lens/internal/core/ports"
	"github.com/kirillkom/lease-lens/internal/core/usecase"
)

const defaultPollInterval = 200 * time.Millisecond

// Server exposes the workflow as MCP tools so an assistant can review a lease
// over stdio.
type Server struct {
	workflows    ports.WorkflowService
	uploader     ports.DocumentUploader
	previewer    ports.DocumentPreviewer
	pollInterval time.Duration
}

func NewServer(workflows ports.WorkflowService, uploader ports.DocumentUploader, previewer ports.DocumentPreviewer) *Server {
	return &Server{
		workflows:    workflows,
		uploader:     uploader,
		previewer:    previewer,
		pollInterval: defaultPollInterval,
	}
}

type workflowResult struct {
	domain.WorkflowRecord
	AvailableEvents []domain.WorkflowEvent `json:"available_events"`
	View            *domain.ResultView     `json:"view,omitempty"`
}

// MCPServer builds the tool registry.
func (s *Server) MCPServer(version string) *server.MCPServer {
	srv := server.NewMCPServer("lease-lens", version, server.WithToolCapabilities(true))

	srv.AddTool(mcp.NewTool("create_workflow",
		mcp.WithDescription("Create an idle lease review workflow and return its id."),
	), s.createWorkflow)

	srv.AddTool(mcp.NewTool("analyze_pdf",
		mcp.WithDescription("Upload a local lease PDF into a workflow and wait for the clause analysis."),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("Workflow id from create_workflow")),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the PDF on the server host")),
		mcp.WithBoolean("wait", mcp.Description("Wait until the analysis finishes (default true)")),
	), s.analyzePDF)

	srv.AddTool(mcp.NewTool("get_workflow",
		mcp.WithDescription("Return the workflow state and the presented analysis."),
		mcp.WithString("workflow_id", mcp.Required()),
	), s.getWorkflow)

	srv.AddTool(mcp.NewTool("toggle_clause",
		mcp.WithDescription("Expand or collapse the explanation of one clause."),
		mcp.WithString("workflow_id", mcp.Required()),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("Zero-based clause index")),
	), s.toggleClause)

	srv.AddTool(mcp.NewTool("retry_analysis",
		mcp.WithDescription("Re-run analysis of the current document after a failure."),
		mcp.WithString("workflow_id", mcp.Required()),
	), s.retryAnalysis)

	srv.AddTool(mcp.NewTool("reset_workflow",
		mcp.WithDescription("Discard the document and analysis and return to idle."),
		mcp.WithString("workflow_id", mcp.Required()),
	), s.resetWorkflow)

	srv.AddTool(mcp.NewTool("preview_page",
		mcp.WithDescription("Navigate the document preview and return the text of the current page."),
		mcp.WithString("workflow_id", mcp.Required()),
		mcp.WithString("action", mcp.Description("next, prev, goto, zoom_in, zoom_out or zoom; omit to read the current page")),
		mcp.WithNumber("page", mcp.Description("Target page for goto")),
		mcp.WithNumber("zoom", mcp.Description("Zoom factor for zoom")),
	), s.previewPage)

	return srv
}

// ServeStdio blocks serving tools over stdin/stdout.
func (s *Server) ServeStdio(version string) error {
	return server.ServeStdio(s.MCPServer(version))
}

func (s *Server) createWorkflow(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	w, err := s.workflows.Create(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return workflowText(w)
}

func (s *Server) analyzePDF(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("open %s: %v", path, err)), nil
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("stat %s: %v", path, err)), nil
	}

	w, err := s.uploader.Upload(ctx, id, domain.ChannelPicker, []domain.UploadCandidate{{
		Name:    filepath.Base(path),
		Size:    info.Size(),
		Content: f,
	}})
	if err != nil {
		return toolError(err), nil
	}
	if req.GetBool("wait", true) {
		if w, err = s.awaitSettled(ctx, id); err != nil {
			return toolError(err), nil
		}
	}
	return workflowText(w)
}

// awaitSettled polls until the workflow leaves Analyzing.
func (s *Server) awaitSettled(ctx context.Context, id string) (*domain.Workflow, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		w, err := s.workflows.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if w.State() != domain.StateAnalyzing {
			return w, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Server) getWorkflow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	w, err := s.workflows.Get(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return workflowText(w)
}

func (s *Server) toggleClause(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	index, err := req.RequireInt("index")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	w, err := s.workflows.ToggleClause(ctx, id, index)
	if err != nil {
		return toolError(err), nil
	}
	return workflowText(w)
}

func (s *Server) retryAnalysis(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	w, err := s.workflows.Retry(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return workflowText(w)
}

func (s *Server) resetWorkflow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	w, err := s.workflows.Reset(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return workflowText(w)
}

func (s *Server) previewPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var view *domain.PreviewView
	if action := req.GetString("action", ""); action != "" {
		view, err = s.previewer.Apply(ctx, id, domain.PreviewCommand{
			Action: domain.PreviewAction(action),
			Page:   req.GetInt("page", 0),
			Zoom:   req.GetFloat("zoom", 0),
		})
	} else {
		view, err = s.previewer.View(ctx, id)
	}
	if err != nil {
		return toolError(err), nil
	}
	return jsonText(view)
}

func workflowText(w *domain.Workflow) (*mcp.CallToolResult, error) {
	return jsonText(workflowResult{
		WorkflowRecord:  w.Record(),
		AvailableEvents: domain.AvailableEvents(w.State()),
		View:            usecase.PresentWorkflow(w),
	})
}

func jsonText(payload any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}

// toolError reports domain failures to the model instead of failing the
// protocol call.
func toolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(err.Error())
}
