package mcpserver

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/runbox/config"
	"github.com/isdmx/runbox/sandbox"
)

// MockSandboxExecutor implements sandbox.SandboxExecutor for testing
type MockSandboxExecutor struct {
	executeResult sandbox.ExecutionOutcome
	executeError  error
	lastRequest   sandbox.ExecutionRequest
}

func (m *MockSandboxExecutor) Execute(_ context.Context, req sandbox.ExecutionRequest) (sandbox.ExecutionOutcome, error) { //nolint:gocritic // Mock implementation requires full parameter signature
	m.lastRequest = req
	return m.executeResult, m.executeError
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Transport:   "http",
			HTTPPort:    8080,
			MetricsPath: "/metrics",
		},
		Sandbox: config.SandboxConfig{
			Backend:          "docker",
			Image:            "my-fenics-image:latest",
			Interpreter:      "python3",
			ResultsDir:       "results",
			ScriptName:       "_temp_script.py",
			ContainerWorkdir: "/app",
			StagingMode:      "isolated",
			TimeoutSec:       30,
		},
		Logging: config.LoggingConfig{
			Mode:  "production",
			Level: "info",
		},
	}
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = ToolName
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])
	return text.Text
}

func TestNewMCPServer(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cfg := testConfig()
	mockExecutor := &MockSandboxExecutor{}

	server, err := New(cfg, logger, mockExecutor)
	require.NoError(t, err)
	require.NotNil(t, server)
	assert.Equal(t, cfg, server.config)
	assert.Equal(t, logger, server.logger)
	assert.Equal(t, mockExecutor, server.sandboxExec)
	assert.NotNil(t, server.GetMCPServer())
}

func TestHandleExecuteCode(t *testing.T) {
	t.Run("SuccessWithFiles", func(t *testing.T) {
		mockExecutor := &MockSandboxExecutor{
			executeResult: sandbox.ExecutionOutcome{
				Succeeded:     true,
				ConsoleText:   "2\n",
				ProducedFiles: []string{"plot.png"},
				OutputDir:     "/work/results/run-1",
			},
		}
		server, err := New(testConfig(), zaptest.NewLogger(t), mockExecutor)
		require.NoError(t, err)

		result, err := server.handleExecuteCode(context.Background(), callRequest(map[string]any{"code": "print(1+1)"}))
		require.NoError(t, err)
		assert.False(t, result.IsError)

		text := resultText(t, result)
		assert.Contains(t, text, "Execution Successful.")
		assert.Contains(t, text, "plot.png")

		assert.Equal(t, "print(1+1)", mockExecutor.lastRequest.Code)
		assert.Equal(t, "my-fenics-image:latest", mockExecutor.lastRequest.Image)
		assert.Zero(t, mockExecutor.lastRequest.Timeout)
	})

	t.Run("ImageAndTimeoutOverride", func(t *testing.T) {
		mockExecutor := &MockSandboxExecutor{executeResult: sandbox.ExecutionOutcome{Succeeded: true}}
		server, err := New(testConfig(), zaptest.NewLogger(t), mockExecutor)
		require.NoError(t, err)

		_, err = server.handleExecuteCode(context.Background(), callRequest(map[string]any{
			"code":        "print(1)",
			"image":       "python:3.12-slim",
			"timeout_sec": 2.5,
		}))
		require.NoError(t, err)
		assert.Equal(t, "python:3.12-slim", mockExecutor.lastRequest.Image)
		assert.Equal(t, 2500*time.Millisecond, mockExecutor.lastRequest.Timeout)
	})

	t.Run("TimeoutCappedByServerTimeout", func(t *testing.T) {
		for _, timeoutSec := range []float64{30, 120, 1e300} {
			mockExecutor := &MockSandboxExecutor{executeResult: sandbox.ExecutionOutcome{Succeeded: true}}
			server, err := New(testConfig(), zaptest.NewLogger(t), mockExecutor)
			require.NoError(t, err)

			result, err := server.handleExecuteCode(context.Background(), callRequest(map[string]any{
				"code":        "print(1)",
				"timeout_sec": timeoutSec,
			}))
			require.NoError(t, err)
			assert.False(t, result.IsError)
			assert.Equal(t, 30*time.Second, mockExecutor.lastRequest.Timeout, "timeout_sec=%v", timeoutSec)
		}
	})

	t.Run("NonPositiveTimeoutIsIgnored", func(t *testing.T) {
		for _, timeoutSec := range []float64{0, -5} {
			mockExecutor := &MockSandboxExecutor{executeResult: sandbox.ExecutionOutcome{Succeeded: true}}
			server, err := New(testConfig(), zaptest.NewLogger(t), mockExecutor)
			require.NoError(t, err)

			_, err = server.handleExecuteCode(context.Background(), callRequest(map[string]any{
				"code":        "print(1)",
				"timeout_sec": timeoutSec,
			}))
			require.NoError(t, err)
			assert.Zero(t, mockExecutor.lastRequest.Timeout)
		}
	})

	t.Run("FailedRunIsErrorResult", func(t *testing.T) {
		mockExecutor := &MockSandboxExecutor{
			executeResult: sandbox.ExecutionOutcome{ExitCode: 1, ConsoleText: "NameError: name 'x' is not defined"},
		}
		server, err := New(testConfig(), zaptest.NewLogger(t), mockExecutor)
		require.NoError(t, err)

		result, err := server.handleExecuteCode(context.Background(), callRequest(map[string]any{"code": "x"}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Contains(t, resultText(t, result), "Execution Failed (Exit Code 1)")
	})

	t.Run("ConfigurationErrorIsReported", func(t *testing.T) {
		mockExecutor := &MockSandboxExecutor{
			executeError: fmt.Errorf("%w: image name is not configured", sandbox.ErrInvalidRequest),
		}
		cfg := testConfig()
		cfg.Sandbox.Image = ""
		server, err := New(cfg, zaptest.NewLogger(t), mockExecutor)
		require.NoError(t, err)

		result, err := server.handleExecuteCode(context.Background(), callRequest(map[string]any{"code": "print(1)"}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Equal(t, "Error: invalid execution request: image name is not configured", resultText(t, result))
	})

	t.Run("EnvironmentErrorIsReported", func(t *testing.T) {
		mockExecutor := &MockSandboxExecutor{
			executeError: &sandbox.EnvironmentError{Op: sandbox.OpLaunch, Err: fmt.Errorf("docker not found")},
		}
		server, err := New(testConfig(), zaptest.NewLogger(t), mockExecutor)
		require.NoError(t, err)

		result, err := server.handleExecuteCode(context.Background(), callRequest(map[string]any{"code": "print(1)"}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Contains(t, resultText(t, result), "sandbox launch failed")
	})

	t.Run("MissingCode", func(t *testing.T) {
		server, err := New(testConfig(), zaptest.NewLogger(t), &MockSandboxExecutor{})
		require.NoError(t, err)

		_, err = server.handleExecuteCode(context.Background(), callRequest(map[string]any{}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "code parameter is required")
	})
}

func TestRequestTimeoutWithoutServerLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Sandbox.TimeoutSec = 0
	server, err := New(cfg, zaptest.NewLogger(t), &MockSandboxExecutor{})
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, server.requestTimeout(90))
	assert.Zero(t, server.requestTimeout(1e300))
	assert.Zero(t, server.requestTimeout(math.NaN()))
}

func TestHTTPHandlerServesMetrics(t *testing.T) {
	server, err := New(testConfig(), zaptest.NewLogger(t), &MockSandboxExecutor{})
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "go_goroutines")
}
