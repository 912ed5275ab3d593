// Package flagparse turns command line arguments into a Command plus its
// Options. Each subcommand owns a flag.FlagSet so -h prints only the flags
// that apply to it.
package flagparse

import (
	"flag"
	"fmt"
	"io"
)

// Options holds the parsed flag values for all subcommands. Only the fields
// belonging to the returned Command are meaningful.
type Options struct {
	// Shared by plan and apply.
	ConfigPath string
	Out        string
	Compact    bool
	LogLevel   string
	Metrics    bool

	// Init only.
	Path  string
	Force bool
}

// Usage writes the top level usage text.
func Usage(w io.Writer) {
	fmt.Fprint(w, `netmirror - one-way directory mirroring

Usage:
  netmirror <command> [flags]

Commands:
  plan      Compute and print the mirror plan without touching the destination
  apply     Compute the plan and copy everything it marks ADD or UPDATE
  init      Write a commented sample configuration file
  version   Print the version

Run 'netmirror <command> -h' for command flags.
`)
}

// Parse interprets the command line arguments (excluding the program name).
// It returns the selected command and its options.
func Parse(args []string) (Command, Options, error) {
	if len(args) == 0 {
		return CommandNone, Options{}, fmt.Errorf("no command given")
	}

	cmd, err := ParseCommand(args[0])
	if err != nil {
		return CommandNone, Options{}, err
	}

	var opts Options
	switch cmd {
	case CommandPlan, CommandApply:
		fs := flag.NewFlagSet(cmd.String(), flag.ContinueOnError)
		fs.StringVar(&opts.ConfigPath, "config", "netmirror.yaml", "path to the job configuration file")
		fs.StringVar(&opts.Out, "out", "", "write the plan to a file (.json, .json.gz or .json.zst)")
		fs.BoolVar(&opts.Compact, "compact", false, "print only the plan summary line")
		fs.StringVar(&opts.LogLevel, "log-level", "info", "log level: debug, info, warn or error")
		fs.BoolVar(&opts.Metrics, "metrics", true, "collect and log run metrics")
		if err := fs.Parse(args[1:]); err != nil {
			return CommandNone, Options{}, err
		}
		if fs.NArg() > 0 {
			return CommandNone, Options{}, fmt.Errorf("unexpected argument: %q", fs.Arg(0))
		}

	case CommandInit:
		fs := flag.NewFlagSet("init", flag.ContinueOnError)
		fs.StringVar(&opts.Path, "path", "netmirror.yaml", "where to write the sample configuration")
		fs.BoolVar(&opts.Force, "force", false, "overwrite an existing file")
		if err := fs.Parse(args[1:]); err != nil {
			return CommandNone, Options{}, err
		}
		if fs.NArg() > 0 {
			return CommandNone, Options{}, fmt.Errorf("unexpected argument: %q", fs.Arg(0))
		}

	case CommandVersion:
		if len(args) > 1 {
			return CommandNone, Options{}, fmt.Errorf("version takes no arguments")
		}
	}

	return cmd, opts, nil
}
