// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package exposes the sandbox executor to orchestrating agents
// as the execute_code tool, using the mark3labs/mcp-go library for the
// protocol. Tool results carry the plain-text execution report.
//
// The server supports stdio and streamable HTTP transports; over HTTP the
// Prometheus metrics are served next to the MCP endpoint.
//
// Usage:
//
//	server, err := mcpserver.New(config, logger, sandboxExecutor)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = server.ServeStdio() // or server.ServeHTTP()
package mcpserver
