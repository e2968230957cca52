// Package sandbox runs untrusted code snippets in throwaway containers.
//
// An invocation stages the code as a script file in a host directory,
// bind-mounts that directory into a fresh auto-removed container, waits for
// the interpreter to exit, lists the files the code left behind and removes
// the script again on every path. Docker and Podman are supported through
// their CLIs; a local backend runs the interpreter on the host for development.
//
// Failures of the executed code are data: they come back in ExecutionOutcome.
// Only ErrInvalidRequest and *EnvironmentError are returned as errors.
//
// Usage:
//
//	executor, err := sandbox.NewExecutor(logger, cfg, nil)
//	outcome, err := executor.Execute(ctx, sandbox.ExecutionRequest{
//	    Image: "my-fenics-image:latest",
//	    Code:  "print(1+1)",
//	})
//	fmt.Println(sandbox.RenderReport(outcome))
package sandbox
