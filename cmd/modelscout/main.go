package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	service "github.com/okian/modelscout/internal/app"
)

// Exit codes for different failure modes.
const (
	ExitSuccess  = 0
	ExitError    = 1
	ExitUsage    = 2
	ExitNoResult = 3
)

// NoResultError reports a recommend run that ranked nothing.
type NoResultError struct {
	Warning string
}

func (e *NoResultError) Error() string {
	if e.Warning == "" {
		return "no recommendations"
	}
	return "no recommendations: " + e.Warning
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and maps the outcome onto an exit code.
func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.Execute()
	if err == nil {
		return ExitSuccess
	}
	fmt.Fprintln(stderr, err)

	var noResult *NoResultError
	switch {
	case errors.As(err, &noResult):
		return ExitNoResult
	case errors.Is(err, errUsage), errors.Is(err, service.ErrInvalidRequest):
		return ExitUsage
	default:
		return ExitError
	}
}
