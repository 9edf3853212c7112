package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// flags holds the raw, unvalidated command-line surface before
// resolveOptions turns it into a runOptions value (spec.md §6).
type flags struct {
	pid              string
	sid              string
	cycleSeconds     int
	output           string
	includeSubtitles bool
	disableConfig    bool
	configPath       string
	outType          outputType
	loop             bool
	websocketPort    int
}

func newRootCommand(log *slog.Logger) *cobra.Command {
	f := &flags{outType: outputT42}

	cmd := &cobra.Command{
		Use:           "ttxdump <input.ts>",
		Short:         "Decode a DVB teletext service from a recorded MPEG transport stream",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(log, f, args[0])
		},
	}

	cmd.Flags().StringVar(&f.pid, "pid", "", "teletext elementary stream PID (hex or decimal)")
	cmd.Flags().StringVar(&f.sid, "sid", "", "DVB service identifier to resolve a PID from the PAT/PMT")
	cmd.Flags().IntVar(&f.cycleSeconds, "cycle-seconds", 1, "seconds between subpage cycles (minimum 1)")
	cmd.Flags().StringVar(&f.output, "output", "", "output file path (ignored for --output-type stdout)")
	cmd.Flags().BoolVar(&f.includeSubtitles, "include-subtitles", false, "also extract subtitle teletext data units")
	cmd.Flags().BoolVar(&f.disableConfig, "disable-config", false, "ignore the vbit2 config file even if --config is set")
	cmd.Flags().StringVar(&f.configPath, "config", "", "path to a vbit2-style YAML config file")
	cmd.Flags().Var(&f.outType, "output-type", "output format: tti, t42, stdout, websocket")
	cmd.Flags().BoolVar(&f.loop, "loop", false, "rewind and re-decode the input file continuously (streaming sinks only)")
	cmd.Flags().IntVar(&f.websocketPort, "websocket-port", 8080, "listen port for --output-type websocket")

	cmd.MarkFlagsMutuallyExclusive("pid", "sid")

	return cmd
}

// runCommand validates flags, resolves an exit code for any error, and
// calls os.Exit directly. Apart from main's exit on cobra's own argument
// errors, this is the only place in this module that does so (spec.md §7's
// "core packages never reference exit codes" rule).
func runCommand(log *slog.Logger, f *flags, inputPath string) error {
	opts, code, err := resolveOptions(f, inputPath)
	if err != nil {
		log.Error(err.Error())
		os.Exit(code)
	}

	if err := run(log, opts); err != nil {
		log.Error("decode failed", "error", err)
		os.Exit(exitCodeFor(err))
	}
	return nil
}

// resolveOptions parses and validates the raw flags, returning the
// process exit code to use if validation fails.
func resolveOptions(f *flags, inputPath string) (runOptions, int, error) {
	var opts runOptions
	opts.inputPath = inputPath
	opts.cycleSeconds = f.cycleSeconds
	opts.output = f.output
	opts.includeSubtitles = f.includeSubtitles
	opts.disableConfig = f.disableConfig
	opts.configPath = f.configPath
	opts.outType = f.outType
	opts.loop = f.loop
	opts.websocketPort = f.websocketPort

	if f.cycleSeconds < 1 {
		return opts, exitInvalidArguments, fmt.Errorf("--cycle-seconds must be >= 1, got %d", f.cycleSeconds)
	}
	if f.pid == "" && f.sid == "" {
		return opts, exitInvalidArguments, fmt.Errorf("exactly one of --pid or --sid is required")
	}
	if f.outType == outputTTI && f.loop {
		return opts, exitInvalidArguments, fmt.Errorf("--loop is not supported with --output-type tti")
	}

	if f.pid != "" {
		pid, err := strconv.ParseUint(f.pid, 0, 16)
		if err != nil {
			return opts, exitInvalidPID, fmt.Errorf("invalid --pid %q: %w", f.pid, err)
		}
		v := uint16(pid)
		opts.pid = &v
	}
	if f.sid != "" {
		sid, err := strconv.ParseUint(f.sid, 0, 16)
		if err != nil {
			return opts, exitInvalidSID, fmt.Errorf("invalid --sid %q: %w", f.sid, err)
		}
		v := uint16(sid)
		opts.sid = &v
	}

	return opts, exitSuccess, nil
}
