// Package logger builds the zap loggers used by the server and the CLI.
//
// Output always goes to stderr; stdout carries the MCP stdio protocol or the
// CLI report. ForRun attaches the run id and backend to every record emitted
// while a program executes.
package logger
