package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"
)

const (
	ExitSuccess           = 0
	ExitFailure           = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
)

const (
	CommandFetch = "fetch"
	CommandPurge = "purge"
)

// Invocation is the parsed command line. Empty fields leave the value from
// the config file, the environment or the defaults in place.
type Invocation struct {
	Command     string
	ConfigPath  string
	Repository  string
	Remote      string
	Excludes    []string
	LogLevel    string
	LogFile     string
	Pretty      bool
	MetricsFile string
	Coordinates []string
}

type InvocationError struct {
	ExitCode int
	Message  string
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

const usageHeader = `usage: snapshots <command> [flags] COORDINATES...

commands:
  fetch   download artifacts into the local repository, purging older snapshot revisions
  purge   purge older revisions of timestamped snapshots already in the local repository

coordinates: groupId:artifactId[:extension[:classifier]]:version

flags:
`

// ParseInvocation parses command line arguments, excluding the program name.
func ParseInvocation(args []string) (Invocation, error) {
	if len(args) == 0 {
		return Invocation{}, invalidInvocationf("missing command\n\n%s", usage(newFlagSet(&Invocation{})))
	}

	inv := Invocation{Command: args[0]}
	fs := newFlagSet(&inv)

	switch inv.Command {
	case CommandFetch, CommandPurge:
	case "help", "-h", "--help":
		return Invocation{}, &InvocationError{ExitCode: ExitSuccess, Message: usage(fs)}
	default:
		return Invocation{}, invalidInvocationf("unknown command %q\n\n%s", inv.Command, usage(fs))
	}

	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return Invocation{}, &InvocationError{ExitCode: ExitSuccess, Message: usage(fs)}
		}
		return Invocation{}, invalidInvocationf("%s: %v", inv.Command, err)
	}

	inv.Coordinates = fs.Args()
	if len(inv.Coordinates) == 0 {
		return Invocation{}, invalidInvocationf("%s: no coordinates given", inv.Command)
	}
	return inv, nil
}

func newFlagSet(inv *Invocation) *pflag.FlagSet {
	fs := pflag.NewFlagSet("snapshots", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SortFlags = false

	fs.StringVarP(&inv.ConfigPath, "config", "c", "", "config file (yaml, json or toml)")
	fs.StringVarP(&inv.Repository, "repo", "r", "", "local repository directory")
	fs.StringVar(&inv.Remote, "remote", "", "remote repository URL")
	fs.StringSliceVarP(&inv.Excludes, "exclude", "x", nil, "groupId[:artifactId] glob whose snapshots are never purged (repeatable)")
	fs.StringVar(&inv.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.StringVar(&inv.LogFile, "log-file", "", "also write logs to this file, rotated")
	fs.BoolVar(&inv.Pretty, "pretty", false, "human readable console logs")
	fs.StringVar(&inv.MetricsFile, "metrics-file", "", "write Prometheus counters to this file on exit")
	return fs
}

func usage(fs *pflag.FlagSet) string {
	return usageHeader + strings.TrimRight(fs.FlagUsages(), "\n")
}
