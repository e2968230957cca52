// Package main is the runbox command-line client. It runs a single program
// through the configured sandbox backend and prints the execution report.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/isdmx/runbox/sandbox"
)

// Exit statuses
const (
	exitOK          = 0
	exitRunFailed   = 1
	exitEnvironment = 2
)

// errRunFailed is returned after the report of an unsuccessful run has been printed.
var errRunFailed = errors.New("execution did not succeed")

// Global flags.
var configFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "runbox",
		Short: "Run untrusted programs in a throwaway container",
		Long: `runbox writes a program into a staging directory under the results folder,
runs it inside a container with that directory mounted as the working directory,
and reports the console output together with the files the program created.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (default ./config.yaml)")

	root.AddCommand(newExecCmd())

	return root
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errRunFailed):
		return exitRunFailed
	default:
		return exitEnvironment
	}
}

func main() {
	root := newRootCmd()
	err := root.Execute()
	if err != nil && !errors.Is(err, errRunFailed) {
		fmt.Fprintln(os.Stderr, sandbox.RenderError(err))
	}
	os.Exit(exitCode(err))
}
