package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/isdmx/runbox/config"
	"github.com/isdmx/runbox/sandbox"
)

// ToolName is the name of the code execution tool
const ToolName = "execute_code"

// MCPServer represents the MCP server
type MCPServer struct {
	config      *config.Config
	logger      *zap.Logger
	sandboxExec sandbox.SandboxExecutor
	mcpServer   *server.MCPServer
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, sandboxExec sandbox.SandboxExecutor) (*MCPServer, error) {
	s := &MCPServer{
		config:      cfg,
		logger:      logger,
		sandboxExec: sandboxExec,
	}

	// Log configuration parameters on startup
	logger.Info("configuration loaded",
		zap.String("server.transport", s.config.Server.Transport),
		zap.Int("server.http_port", s.config.Server.HTTPPort),
		zap.String("sandbox.backend", s.config.Sandbox.Backend),
		zap.String("sandbox.image", s.config.Sandbox.Image),
		zap.Strings("sandbox.allowed_images", s.config.Sandbox.AllowedImages),
		zap.String("sandbox.interpreter", s.config.Sandbox.Interpreter),
		zap.String("sandbox.results_dir", s.config.Sandbox.ResultsDir),
		zap.String("sandbox.staging_mode", s.config.Sandbox.StagingMode),
		zap.Int("sandbox.timeout_sec", s.config.Sandbox.TimeoutSec),
		zap.Int("sandbox.memory_mb", s.config.Sandbox.MemoryMB),
		zap.Bool("sandbox.network_enabled", s.config.Sandbox.NetworkEnabled),
	)

	if s.config.Sandbox.Image == "" {
		logger.Warn("sandbox.image is empty; every call must pass an image")
	}

	s.mcpServer = server.NewMCPServer("runbox", "A sandboxed code executor",
		server.WithToolCapabilities(false),
	)

	s.registerExecuteCodeTool()

	return s, nil
}

// registerExecuteCodeTool registers the execute_code tool
func (s *MCPServer) registerExecuteCodeTool() {
	tool := mcp.Tool{
		Name: ToolName,
		Description: "Executes Python code in an isolated container and saves any generated files " +
			"(e.g., plots, data) into the results folder. Returns the console output and the list of files created.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "A string containing the Python code to be executed.",
				},
				"image": map[string]any{
					"type":        "string",
					"description": "Container image to run the code in (optional, defaults to the configured image)",
				},
				"timeout_sec": map[string]any{
					"type":        "number",
					"description": "Execution timeout in seconds (optional, capped by the server timeout)",
				},
			},
			Required: []string{"code"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleExecuteCode)
}

// handleExecuteCode handles the execute_code tool. Executor errors and failed
// runs become error results rather than protocol errors so the caller can read the report.
func (s *MCPServer) handleExecuteCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return nil, fmt.Errorf("code parameter is required: %w", err)
	}

	req := sandbox.ExecutionRequest{
		Code:  code,
		Image: request.GetString("image", s.config.Sandbox.Image),
	}
	req.Timeout = s.requestTimeout(request.GetFloat("timeout_sec", 0))

	s.logger.Info("code execution requested",
		zap.String("image", req.Image),
		zap.Int("code_len", len(code)),
		zap.Duration("timeout", req.Timeout))

	outcome, err := s.sandboxExec.Execute(ctx, req)
	if err != nil {
		var envErr *sandbox.EnvironmentError
		switch {
		case errors.Is(err, sandbox.ErrInvalidRequest):
			s.logger.Warn("invalid execution request", zap.Error(err))
		case errors.As(err, &envErr):
			s.logger.Error("sandbox environment failure", zap.String("op", envErr.Op), zap.Error(err))
		default:
			s.logger.Error("sandbox execution failed", zap.Error(err))
		}
		return mcp.NewToolResultError(sandbox.RenderError(err)), nil
	}

	s.logger.Info("code execution completed",
		zap.String("run_id", outcome.RunID),
		zap.Bool("succeeded", outcome.Succeeded),
		zap.Int("exit_code", outcome.ExitCode),
		zap.Int("produced_files", len(outcome.ProducedFiles)))

	report := sandbox.RenderReport(outcome)
	if !outcome.Succeeded {
		return mcp.NewToolResultError(report), nil
	}
	return mcp.NewToolResultText(report), nil
}

// requestTimeout converts timeout_sec, capping it at the configured timeout
// before the conversion so huge values cannot overflow time.Duration.
// Zero means no per-call timeout.
func (s *MCPServer) requestTimeout(timeoutSec float64) time.Duration {
	if timeoutSec <= 0 || math.IsNaN(timeoutSec) {
		return 0
	}
	if limit := s.config.GetTimeout(); limit > 0 && timeoutSec >= limit.Seconds() {
		return limit
	}
	if timeoutSec >= math.MaxInt64/float64(time.Second) {
		return 0
	}
	return time.Duration(timeoutSec * float64(time.Second))
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// Handler returns the HTTP handler serving the streamable MCP endpoint and metrics
func (s *MCPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/mcp", server.NewStreamableHTTPServer(s.mcpServer))
	if path := s.config.Server.MetricsPath; path != "" {
		mux.Handle(path, promhttp.Handler())
	}
	return mux
}

// ServeHTTP starts the server on HTTP
func (s *MCPServer) ServeHTTP() error {
	port := s.config.Server.HTTPPort
	s.logger.Info("starting MCP server on HTTP",
		zap.Int("port", port),
		zap.String("metrics_path", s.config.Server.MetricsPath))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return httpServer.ListenAndServe()
}

// GetMCPServer returns the underlying MCP server for fx
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
