// Package main is the entry point for the runbox MCP server.
//
// The runbox server exposes a single execute_code tool over the Model Context
// Protocol. Each call writes the submitted program into a staging directory
// under the results folder, runs it inside a throwaway container with that
// directory mounted as the working directory, and reports the console output
// together with the files the program produced. Both stdio and HTTP transports
// are supported; the HTTP transport also serves Prometheus metrics.
//
// The application uses Uber's fx framework for dependency injection and lifecycle
// management, with zap for structured logging and viper for configuration.
package main
