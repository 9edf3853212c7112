package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/ttxfromts/ttxcore/internal/config"
	"github.com/ttxfromts/ttxcore/internal/dataunit"
	"github.com/ttxfromts/ttxcore/internal/pes"
	"github.com/ttxfromts/ttxcore/internal/psi"
	"github.com/ttxfromts/ttxcore/internal/sink"
	"github.com/ttxfromts/ttxcore/internal/teletext"
	"github.com/ttxfromts/ttxcore/internal/tsreader"
)

// runOptions is the fully validated, exit-code-free view of the CLI
// invocation that run() consumes.
type runOptions struct {
	inputPath        string
	pid              *uint16
	sid              *uint16
	cycleSeconds     int
	output           string
	includeSubtitles bool
	disableConfig    bool
	configPath       string
	outType          outputType
	loop             bool
	websocketPort    int
}

// errUnreadableInput covers both "file could not be opened/read" and "input
// never produced a single valid TS packet" — spec.md §7 maps both to exit 4.
var errUnreadableInput = errors.New("input is not readable or is not a valid transport stream")

// errNoPacketsDecoded fires when the selected PID never yielded a single
// teletext packet — spec.md §7 folds this into the same exit 4 class as an
// unreadable input, since both mean "nothing could be decoded".
var errNoPacketsDecoded = errors.New("selected PID produced no teletext packets")

const readChunkSize = 64 * 1024

// run wires the decode pipeline end to end and returns a plain error;
// runCommand maps it to a process exit code via exitCodeFor.
func run(log *slog.Logger, opts runOptions) error {
	cfgPath := opts.configPath
	if opts.disableConfig {
		cfgPath = ""
	}
	cfg, err := config.Load(cfgPath,
		config.WithIncludeSubtitles(opts.includeSubtitles),
		config.WithCycleSeconds(opts.cycleSeconds),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidConfig, err)
	}
	if cfg.ServiceName != "" {
		log.Info("loaded config", "service_name", cfg.ServiceName)
	}

	f, err := os.Open(opts.inputPath)
	if err != nil {
		return fmt.Errorf("%w: %v", errUnreadableInput, err)
	}
	defer f.Close()

	pid, err := resolveTargetPID(f, opts)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	out, err := openOutput(opts)
	if err != nil {
		return err
	}
	if out != nil {
		defer out.Close()
	}

	s, srv, err := buildSink(gctx, g, log, opts, out)
	if err != nil {
		return err
	}
	if srv != nil {
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		defer func() {
			_ = srv.Shutdown(context.Background())
		}()
	}

	decoder := teletext.NewServiceDecoder()
	decoded, err := decodeLoop(f, pid, cfg.IncludeSubtitles, opts.loop, decoder, s, log)
	if err != nil {
		return err
	}
	if decoded == 0 {
		return errNoPacketsDecoded
	}

	if pageSink, ok := s.(sink.PageSink); ok {
		if err := pageSink.WriteService(decoder.Flush()); err != nil {
			return fmt.Errorf("writing service: %w", err)
		}
	}
	if packetSink, ok := s.(sink.PacketSink); ok {
		if err := packetSink.Close(); err != nil {
			return fmt.Errorf("closing sink: %w", err)
		}
	}

	if srv != nil {
		_ = srv.Shutdown(context.Background())
	}
	cancel()
	return g.Wait()
}

// errInvalidConfig wraps a malformed/unreadable --config file; mapped to
// exit 1 like any other argument problem.
var errInvalidConfig = errors.New("invalid configuration")

// resolveTargetPID returns the teletext elementary stream PID to filter on,
// resolving it from the PAT/PMT via internal/psi when --sid was given, and
// rewinding f back to the start afterward (spec.md §6: ResolvePID never
// rewinds its reader itself).
func resolveTargetPID(f *os.File, opts runOptions) (uint16, error) {
	if opts.pid != nil {
		return *opts.pid, nil
	}

	pid, err := psi.ResolvePID(f, *opts.sid)
	if err != nil {
		return 0, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("%w: %v", errUnreadableInput, err)
	}
	return pid, nil
}

// openOutput resolves --output into a writer, or nil for stdout/websocket
// output types which do not read the flag.
func openOutput(opts runOptions) (*os.File, error) {
	if opts.outType == outputWebSocket || opts.outType == outputStdOut {
		return nil, nil
	}
	if opts.output == "" {
		return nil, nil
	}
	f, err := os.Create(opts.output)
	if err != nil {
		return nil, fmt.Errorf("opening --output: %w", err)
	}
	return f, nil
}

// buildSink constructs the sink named by opts.outType. srv is non-nil only
// for --output-type websocket, and must be started/stopped by the caller.
func buildSink(ctx context.Context, g *errgroup.Group, log *slog.Logger, opts runOptions, out *os.File) (any, *http.Server, error) {
	var w io.Writer = os.Stdout
	if out != nil {
		w = out
	}

	switch opts.outType {
	case outputTTI:
		return sink.NewTTISink(w), nil, nil
	case outputT42:
		return sink.NewT42Sink(w), nil, nil
	case outputStdOut:
		return sink.NewStdOutSink(os.Stdout), nil, nil
	case outputWebSocket:
		wsSink := sink.NewWebSocketSink(ctx, g, log)
		mux := http.NewServeMux()
		mux.Handle("/", wsSink.Handler())
		srv := &http.Server{Addr: fmt.Sprintf(":%d", opts.websocketPort), Handler: mux}
		log.Info("websocket sink listening", "addr", srv.Addr)
		return wsSink, srv, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown output type %q", errInvalidConfig, opts.outType)
	}
}

// decodeLoop pumps f through the tsreader/pes/dataunit pipeline, dispatching
// every extracted RawPacket to decoder and, when s is a PacketSink, to the
// sink immediately. It returns the total number of RawPackets decoded. When
// loop is true and s is a streaming PacketSink, f is rewound and the pass
// repeats indefinitely (spec.md §6: loop mode runs streaming sinks only;
// callers must have already rejected --loop with a page-based sink).
func decodeLoop(f *os.File, pid uint16, includeSubtitles bool, loop bool, decoder *teletext.ServiceDecoder, s any, log *slog.Logger) (int, error) {
	packetSink, _ := s.(sink.PacketSink)
	decoded := 0

	for {
		reader := tsreader.New(pid, false, func(class, message string) {
			log.Warn(message, "class", class)
		})
		assembler := pes.New()
		extractor := dataunit.New(includeSubtitles, dataunit.WarnerFunc(func(class, message string) {
			log.Warn(message, "class", class)
		}))

		dispatch := func(pkts []tsreader.Packet) error {
			for _, pkt := range pkts {
				for _, pesPkt := range assembler.Feed(pkt.PayloadUnitStart, pkt.Payload) {
					for _, raw := range extractor.Extract(pesPkt.StreamID, pesPkt.Data, pesPkt.DataOffset()) {
						decoded++
						decoder.Dispatch(raw)
						if packetSink != nil {
							if err := packetSink.WritePacket(raw); err != nil {
								return fmt.Errorf("writing packet: %w", err)
							}
						}
					}
				}
			}
			return nil
		}

		chunk := make([]byte, readChunkSize)
		for {
			n, readErr := f.Read(chunk)
			if n > 0 {
				if err := dispatch(reader.Push(chunk[:n])); err != nil {
					return decoded, err
				}
			}
			if readErr != nil {
				break
			}
		}
		// Flush drains any packet still held back pending sync confirmation
		// (internal/tsreader.Reader.findSync only commits a packet once a
		// second sync byte is seen 188 bytes later), matching the same
		// Push/Flush pairing internal/psi.ResolvePID uses.
		if err := dispatch(reader.Flush()); err != nil {
			return decoded, err
		}

		if reader.Received == 0 {
			return decoded, errUnreadableInput
		}

		if !loop || packetSink == nil {
			return decoded, nil
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return decoded, fmt.Errorf("%w: %v", errUnreadableInput, err)
		}
	}
}

// exitCodeFor maps a run() error to a process exit code per spec.md §6-§7.
func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, psi.ErrSIDNotFound):
		return exitSIDNotFound
	case errors.Is(err, psi.ErrTeletextPIDNotFound):
		return exitTeletextPIDNotFound
	case errors.Is(err, psi.ErrNotTransportStream):
		return exitUnreadableOrNotTS
	case errors.Is(err, errUnreadableInput):
		return exitUnreadableOrNotTS
	case errors.Is(err, errNoPacketsDecoded):
		return exitUnreadableOrNotTS
	case errors.Is(err, errInvalidConfig):
		return exitInvalidArguments
	default:
		return exitUnspecified
	}
}
