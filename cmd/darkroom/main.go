// Copyright Darkroom Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/mkatychev/darkroom/pkg/config"
	"github.com/mkatychev/darkroom/pkg/cut"
	"github.com/mkatychev/darkroom/pkg/errs"
	"github.com/mkatychev/darkroom/pkg/frame"
	"github.com/mkatychev/darkroom/pkg/jsonval"
	"github.com/mkatychev/darkroom/pkg/logging"
	"github.com/mkatychev/darkroom/pkg/reel"
	"github.com/mkatychev/darkroom/pkg/record"
	"github.com/mkatychev/darkroom/pkg/source"
	"github.com/mkatychev/darkroom/pkg/store"
	"github.com/mkatychev/darkroom/pkg/take"
	"github.com/mkatychev/darkroom/pkg/transport"
	grpcAdapter "github.com/mkatychev/darkroom/pkg/transport/grpc"
	httpAdapter "github.com/mkatychev/darkroom/pkg/transport/http"
	"github.com/mkatychev/darkroom/pkg/vreel"

	// Blank imports register provider implementations via init(). Remove
	// any of these to exclude the backend from the binary.
	_ "github.com/mkatychev/darkroom/pkg/source/fs"
	_ "github.com/mkatychev/darkroom/pkg/source/memory"
	_ "github.com/mkatychev/darkroom/pkg/source/s3"
	_ "github.com/mkatychev/darkroom/pkg/store/file"
	_ "github.com/mkatychev/darkroom/pkg/store/postgres"
	_ "github.com/mkatychev/darkroom/pkg/store/sqlite"
)

// Version is set via ldflags during build.
var Version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "take":
		err = runTake(os.Args[2:])
	case "record":
		err = runRecord(os.Args[2:])
	case "vrecord":
		err = runVRecord(os.Args[2:])
	case "-version", "--version":
		fmt.Printf("darkroom %s\n", Version)
		return
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `darkroom: filmReel contract-test runner

Usage:
  darkroom take <frame...> -c <cut> [-o <file>]
  darkroom record <reel_path> <reel_name> [<merge_cuts...>] [-c <cut>] [-b <dir&reel>...] [-o <dir>] [-r <lo:hi>] [-t <secs>] [-i] [-s] [-d]
  darkroom vrecord <vr.json> [-c <cut>] [-o <dir>] [-t <secs>] [-d]`)
}

// stringList collects a repeatable flag into an ordered slice.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func runTake(args []string) error {
	fs := flag.NewFlagSet("take", flag.ExitOnError)
	var cuts stringList
	fs.Var(&cuts, "c", "cut file to merge into the register (repeatable)")
	out := fs.String("o", "", "write the materialized take to this file")
	timeoutSecs := fs.Int("t", 0, "dispatch timeout in seconds (0 uses the configured default)")
	insecureTLS := fs.Bool("k", false, "skip TLS certificate verification")
	configPath := fs.String("config", "darkroom.yaml", "path to darkroom.yaml")
	debug := fs.Bool("d", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("take: at least one frame file is required")
	}

	cfg := loadConfigOrDefault(*configPath)
	logger := newLogger(cfg, *debug)
	adapter := newCompositeAdapter(logger, *insecureTLS || cfg.Transport.InsecureTLS)
	fallback := fallbackFromConfig(cfg, *insecureTLS)

	reg, err := buildRegister(nil, []string(cuts))
	if err != nil {
		return err
	}

	opts := take.Options{Adapter: adapter, Fallback: fallback, Logger: logger}
	opts.Timeout = resolveTimeout(cfg.Transport.DefaultTimeout, *timeoutSecs)

	var lastOutcome *take.Outcome
	for _, path := range fs.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read frame %q: %w", path, err)
		}
		fn, err := frame.ParseFilename(filepath.Base(path))
		if err != nil {
			return err
		}
		f, err := frame.Parse(data)
		if err != nil {
			return err
		}
		f.Filename = fn

		outcome := take.Execute(context.Background(), f, reg, opts)
		lastOutcome = outcome
		if outcome.Err != nil {
			return fmt.Errorf("take %s: %w", fn.Raw, outcome.Err)
		}
		logger.Info("take passed", "frame", fn.Raw, "attempts", outcome.Attempts)
	}

	if *out != "" && lastOutcome != nil {
		if err := writeTakeFile(*out, lastOutcome); err != nil {
			return err
		}
	}
	return nil
}

func runRecord(args []string) error {
	fs := flag.NewFlagSet("record", flag.ExitOnError)
	var cutFlags, components stringList
	fs.Var(&cutFlags, "c", "cut file to merge into the register (repeatable)")
	fs.Var(&components, "b", "component reel \"<dir>&<reel>\" run as a success-only prelude (repeatable)")
	outDir := fs.String("o", "", "directory to write each Frame's materialized take file")
	rangeSpec := fs.String("r", "", "whole-sequence range \"lo:hi\" to execute (default: unbounded)")
	timeoutSecs := fs.Int("t", 0, "dispatch timeout in seconds (0 uses the configured default)")
	interactive := fs.Bool("i", false, "prompt before each Frame (proceed/skip/abort)")
	silent := fs.Bool("s", false, "suppress per-Frame progress logging")
	debug := fs.Bool("d", false, "enable debug logging")
	insecureTLS := fs.Bool("k", false, "skip TLS certificate verification")
	configPath := fs.String("config", "darkroom.yaml", "path to darkroom.yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("record: usage: record <reel_path> <reel_name> [<merge_cuts...>]")
	}

	reelPath, reelName := fs.Arg(0), fs.Arg(1)
	mergeCuts := fs.Args()[2:]

	cfg := loadConfigOrDefault(*configPath)
	logger := newLogger(cfg, *debug)
	if *silent {
		logger = logging.Nop
	}

	src, err := newReelSource(cfg)
	if err != nil {
		return err
	}

	r, err := reel.Load(context.Background(), src, reelPath, reelName)
	if err != nil {
		return err
	}

	var comps []*reel.Reel
	for _, spec := range components {
		dir, name, err := reel.ParseComponentSpec(spec)
		if err != nil {
			return err
		}
		c, err := reel.Load(context.Background(), src, dir, name)
		if err != nil {
			return err
		}
		comps = append(comps, c)
	}

	reg, err := buildRegister([]*cut.Register{r.BaseCut}, append([]string(cutFlags), mergeCuts...))
	if err != nil {
		return err
	}

	var rng *record.Range
	if *rangeSpec != "" {
		rng, err = parseRange(*rangeSpec)
		if err != nil {
			return err
		}
	}

	adapter := newCompositeAdapter(logger, *insecureTLS || cfg.Transport.InsecureTLS)
	fallback := fallbackFromConfig(cfg, *insecureTLS)
	takeOpts := take.Options{Adapter: adapter, Fallback: fallback, Logger: logger}
	takeOpts.Timeout = resolveTimeout(cfg.Transport.DefaultTimeout, *timeoutSecs)
	if *outDir != "" {
		takeStore, err := store.Providers.New(context.Background(), cfg.TakeStore.Backend, map[string]string{"base_dir": *outDir, "dsn": cfg.TakeStore.DSN})
		if err != nil {
			return err
		}
		defer takeStore.Close(context.Background())
		takeOpts.Store = takeStore
	}

	recordOpts := record.Options{
		Take:       takeOpts,
		Range:      rng,
		Components: comps,
		Logger:     logger,
	}
	if *interactive {
		recordOpts.Interactive = promptInteractive
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rpt := record.Run(ctx, r, reg, recordOpts)
	logger.Info("record finished", "reel", reelName, "ran", len(rpt.Ran), "skipped", len(rpt.Skipped), "passed", rpt.Passed)
	if !rpt.Passed {
		return fmt.Errorf("record %s: %w", reelName, rpt.Err)
	}
	return nil
}

func runVRecord(args []string) error {
	fs := flag.NewFlagSet("vrecord", flag.ExitOnError)
	var cutFlags stringList
	fs.Var(&cutFlags, "c", "cut file to merge into the register (repeatable)")
	outDir := fs.String("o", "", "directory to write each Frame's materialized take file")
	timeoutSecs := fs.Int("t", 0, "dispatch timeout in seconds (0 uses the configured default)")
	debug := fs.Bool("d", false, "enable debug logging")
	insecureTLS := fs.Bool("k", false, "skip TLS certificate verification")
	configPath := fs.String("config", "darkroom.yaml", "path to darkroom.yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("vrecord: usage: vrecord <vr.json>")
	}

	cfg := loadConfigOrDefault(*configPath)
	logger := newLogger(cfg, *debug)
	src, err := newReelSource(cfg)
	if err != nil {
		return err
	}

	dir, name := filepath.Split(fs.Arg(0))
	vr, err := vreel.Load(context.Background(), src, strings.TrimSuffix(dir, "/"), name)
	if err != nil {
		return err
	}

	reg, err := buildRegister(nil, []string(cutFlags))
	if err != nil {
		return err
	}
	if vr.Cut != nil {
		reg = cut.Merge(reg, vr.Cut)
	}

	adapter := newCompositeAdapter(logger, *insecureTLS || cfg.Transport.InsecureTLS)
	fallback := fallbackFromConfig(cfg, *insecureTLS)
	takeOpts := take.Options{Adapter: adapter, Fallback: fallback, Logger: logger}
	takeOpts.Timeout = resolveTimeout(cfg.Transport.DefaultTimeout, *timeoutSecs)
	if *outDir != "" {
		takeStore, err := store.Providers.New(context.Background(), cfg.TakeStore.Backend, map[string]string{"base_dir": *outDir, "dsn": cfg.TakeStore.DSN})
		if err != nil {
			return err
		}
		defer takeStore.Close(context.Background())
		takeOpts.Store = takeStore
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rpt := record.Run(ctx, vr.AsReel(), reg, record.Options{Take: takeOpts, Logger: logger})
	logger.Info("vrecord finished", "virtual_reel", vr.Name, "ran", len(rpt.Ran), "passed", rpt.Passed)
	if !rpt.Passed {
		return fmt.Errorf("vrecord %s: %w", vr.Name, rpt.Err)
	}
	return nil
}

func promptInteractive(entry reel.Entry) record.Decision {
	fmt.Fprintf(os.Stderr, "next: %s (%s) — proceed/skip/abort [p/s/a]? ", entry.Filename.Raw, entry.Filename.String())
	var answer string
	fmt.Scanln(&answer)
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "s", "skip":
		return record.Skip
	case "a", "abort":
		return record.Abort
	default:
		return record.Proceed
	}
}

func loadConfigOrDefault(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Default()
	}
	return cfg
}

func newLogger(cfg *config.Config, debug bool) *logging.Logger {
	level := cfg.Logging.Level
	if debug {
		level = "debug"
	}
	return logging.New(logging.Config{Level: level, Format: cfg.Logging.Format})
}

func newReelSource(cfg *config.Config) (source.ReelSource, error) {
	backend := cfg.Source.Backend
	if backend == "" {
		backend = "fs"
	}
	return source.Providers.New(context.Background(), backend, map[string]string{
		"bucket":   cfg.Source.S3Bucket,
		"prefix":   cfg.Source.S3Prefix,
		"region":   cfg.Source.S3Region,
		"endpoint": "",
	})
}

func fallbackFromConfig(cfg *config.Config, insecureTLS bool) transport.Fallback {
	return transport.Fallback{
		Headers:     cfg.Transport.HeaderFallback,
		InsecureTLS: insecureTLS || cfg.Transport.InsecureTLS,
		ProtoFiles:  cfg.Transport.ProtoFiles,
		ProtoDirs:   cfg.Transport.ProtoDirs,
	}
}

// resolveTimeout picks the dispatch timeout: an explicit "-t" flag wins,
// otherwise the configured default, otherwise nil (take.Execute applies
// its own DefaultTimeout).
func resolveTimeout(cfgDefault time.Duration, flagSecs int) *time.Duration {
	if flagSecs > 0 {
		d := time.Duration(flagSecs) * time.Second
		return &d
	}
	if cfgDefault > 0 {
		d := cfgDefault
		return &d
	}
	return nil
}

// compositeAdapter dispatches a Frame through whichever protocol-specific
// transport.Adapter matches its declared protocol.
type compositeAdapter struct {
	http *httpAdapter.Adapter
	grpc *grpcAdapter.Adapter
}

var _ transport.Adapter = (*compositeAdapter)(nil)

func newCompositeAdapter(logger *logging.Logger, insecureTLS bool) *compositeAdapter {
	return &compositeAdapter{
		http: httpAdapter.New(insecureTLS),
		grpc: grpcAdapter.New(logger),
	}
}

func (c *compositeAdapter) Send(ctx context.Context, protocol frame.Protocol, req frame.Request, fallback transport.Fallback) (*transport.Response, error) {
	switch protocol {
	case frame.HTTP:
		return c.http.Send(ctx, protocol, req, fallback)
	case frame.GRPC:
		return c.grpc.Send(ctx, protocol, req, fallback)
	default:
		return nil, errs.New(errs.Transport, "dispatch", fmt.Errorf("unsupported protocol %q", protocol))
	}
}

// buildRegister performs the standard register build: base cuts (e.g. a
// reel's sibling cut.json), in order, followed by each of sources, which
// may each be a file path or an inline JSON object.
func buildRegister(base []*cut.Register, sources []string) (*cut.Register, error) {
	regs := append([]*cut.Register{}, base...)
	for _, s := range sources {
		reg, err := loadCutSource(s)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	return cut.Merge(regs...), nil
}

func loadCutSource(s string) (*cut.Register, error) {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "{") {
		return cut.FromJSON([]byte(trimmed))
	}
	data, err := os.ReadFile(s)
	if err != nil {
		return nil, fmt.Errorf("read cut source %q: %w", s, err)
	}
	return cut.FromJSON(data)
}

func parseRange(spec string) (*record.Range, error) {
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("range %q must be \"lo:hi\"", spec)
	}
	lo, hi := record.NoBound, record.NoBound
	if parts[0] != "" {
		v, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("range %q: %w", spec, err)
		}
		lo = v
	}
	if parts[1] != "" {
		v, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("range %q: %w", spec, err)
		}
		hi = v
	}
	return &record.Range{Lo: lo, Hi: hi}, nil
}

// writeTakeFile assembles the materialized take envelope (request as sent,
// response as received, outcome metadata) and writes it to path. Built
// incrementally with sjson rather than round-tripped through a Go struct,
// since the pieces already exist as independently marshaled byte slices.
func writeTakeFile(path string, outcome *take.Outcome) error {
	data := []byte(`{}`)

	reqBytes, err := jsonval.Marshal(outcome.Request)
	if err != nil {
		return fmt.Errorf("marshal take request: %w", err)
	}
	data, err = sjson.SetRawBytes(data, "request", reqBytes)
	if err != nil {
		return fmt.Errorf("assemble take file: %w", err)
	}

	respBytes, err := jsonval.Marshal(outcome.Response)
	if err != nil {
		return fmt.Errorf("marshal take response: %w", err)
	}
	data, err = sjson.SetRawBytes(data, "response", respBytes)
	if err != nil {
		return fmt.Errorf("assemble take file: %w", err)
	}

	data, err = sjson.SetBytes(data, "status", outcome.Status)
	if err != nil {
		return fmt.Errorf("assemble take file: %w", err)
	}
	data, err = sjson.SetBytes(data, "passed", outcome.Passed)
	if err != nil {
		return fmt.Errorf("assemble take file: %w", err)
	}
	data, err = sjson.SetBytes(data, "attempts", outcome.Attempts)
	if err != nil {
		return fmt.Errorf("assemble take file: %w", err)
	}
	data, err = sjson.SetBytes(data, "id", uuid.NewString())
	if err != nil {
		return fmt.Errorf("assemble take file: %w", err)
	}

	return os.WriteFile(path, pretty.Pretty(data), 0o644)
}
