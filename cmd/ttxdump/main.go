// Command ttxdump decodes a DVB teletext service from a recorded MPEG
// transport stream file into one of several output formats (spec.md §6).
package main

import (
	"log/slog"
	"os"
)

func main() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cmd := newRootCommand(log)
	if err := cmd.Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(exitInvalidArguments)
	}
}
