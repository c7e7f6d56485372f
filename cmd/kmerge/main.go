package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/KevoDB/kmerge/pkg/common/log"
	"github.com/KevoDB/kmerge/pkg/config"
	"github.com/KevoDB/kmerge/pkg/merge"
	"github.com/KevoDB/kmerge/pkg/source"
	"github.com/KevoDB/kmerge/pkg/stats"
	"github.com/KevoDB/kmerge/pkg/telemetry"
)

// Options holds the command line options
type Options struct {
	ConfigPath  string
	SourceFiles []string
	Arity       int
	LogLevel    string
	CheckOrder  bool
	Interactive bool
	Telemetry   bool
}

func main() {
	opts := parseFlags()

	cfg, err := buildConfig(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := run(context.Background(), cfg, os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags parses command line flags and returns Options
func parseFlags() Options {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "kmerge - merge sorted integer sequences\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: kmerge [options]\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Without options, kmerge merges three built-in example lists and prints the result.\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Options:\n")
		flag.PrintDefaults()
	}

	var opts Options
	flag.StringVar(&opts.ConfigPath, "config", "", "Path to a JSON or YAML run configuration")
	flag.Func("source", "Sequence file to merge (repeatable, .zst and .sz are decompressed)", func(s string) error {
		opts.SourceFiles = append(opts.SourceFiles, s)
		return nil
	})
	flag.IntVar(&opts.Arity, "arity", 0, "Number of sources to require (default from config, 3)")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.BoolVar(&opts.CheckOrder, "check-order", false, "Reject sources that are not sorted")
	flag.BoolVar(&opts.Interactive, "interactive", false, "Step through the merge in an interactive shell")
	flag.BoolVar(&opts.Telemetry, "telemetry", false, "Enable OpenTelemetry export")

	flag.Parse()
	return opts
}

// buildConfig layers defaults, config file, environment and flags, in that order
func buildConfig(opts Options) (*config.Config, error) {
	cfg := config.NewDefaultConfig()
	if opts.ConfigPath != "" {
		var err error
		if cfg, err = config.LoadConfig(opts.ConfigPath); err != nil {
			return nil, err
		}
	}

	cfg.LoadFromEnv()

	if len(opts.SourceFiles) > 0 {
		cfg.SourceFiles = opts.SourceFiles
	}
	if opts.Arity > 0 {
		cfg.Arity = opts.Arity
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	cfg.CheckOrder = cfg.CheckOrder || opts.CheckOrder
	cfg.Interactive = cfg.Interactive || opts.Interactive
	cfg.Telemetry.Enabled = cfg.Telemetry.Enabled || opts.Telemetry

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// run performs one merge. Merged output goes to stdout, diagnostics to stderr.
func run(ctx context.Context, cfg *config.Config, stdin io.ReadCloser, stdout, stderr io.Writer) error {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := log.NewStandardLogger(log.WithOutput(stderr), log.WithLevel(level)).
		WithField("component", telemetry.ComponentDriver)

	tel, err := telemetry.NewWithWriter(cfg.Telemetry, stderr)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Telemetry.ExportTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Telemetry shutdown failed: %v", err)
		}
	}()

	sequences, err := loadSequences(ctx, cfg, tel, logger)
	if err != nil {
		return err
	}

	values := make([][]int, len(sequences))
	for i, seq := range sequences {
		values[i] = seq.Values
	}

	collector := stats.NewAtomicCollector(merge.NewMergeMetrics(tel))
	opts := []merge.Option{
		merge.WithArity(cfg.Arity),
		merge.WithMetrics(collector),
	}
	if cfg.CheckOrder {
		opts = append(opts, merge.WithOrderCheck())
	}

	it, err := merge.New(values, opts...)
	if err != nil {
		return err
	}

	_, span := tel.StartSpan(ctx, "kmerge.run",
		attribute.Int("source_count", it.NumSources()),
		attribute.Int("elements", it.Remaining()),
	)
	defer span.End()

	if cfg.Interactive {
		return runInteractive(it, collector, sequences, stdin, stdout)
	}

	start := time.Now()
	n, err := merge.WriteSequence(stdout, it)
	if err != nil {
		return fmt.Errorf("failed to write merged sequence: %w", err)
	}
	logger.Debug("Merged %d elements from %d sources in %s", n, it.NumSources(), time.Since(start))
	return nil
}

// loadSequences returns the configured inputs, reading files when any are named
func loadSequences(ctx context.Context, cfg *config.Config, tel telemetry.Telemetry, logger log.Logger) ([]source.Sequence, error) {
	if len(cfg.SourceFiles) == 0 {
		seqs := make([]source.Sequence, len(cfg.Sources))
		for i, values := range cfg.Sources {
			seqs[i] = source.NewSequence(fmt.Sprintf("inline-%d", i), values)
		}
		return seqs, nil
	}

	seqs := make([]source.Sequence, 0, len(cfg.SourceFiles))
	for _, path := range cfg.SourceFiles {
		start := time.Now()
		seq, err := source.LoadFile(path)
		status := telemetry.StatusSuccess
		if err != nil {
			status = telemetry.StatusError
		}
		telemetry.RecordDuration(ctx, tel, "kmerge.source.load.duration", start,
			attribute.String(telemetry.AttrComponent, telemetry.ComponentSource),
			attribute.String(telemetry.AttrOperationType, telemetry.OpTypeLoad),
			attribute.String(telemetry.AttrStatus, status),
		)
		if err != nil {
			return nil, err
		}

		if !seq.Sorted() {
			logger.WithField("source", seq.Name).Warn("Source is not sorted, merged output will not be ordered")
		}
		logger.WithFields(map[string]interface{}{
			"source": seq.Name,
			"digest": fmt.Sprintf("%016x", seq.Digest),
		}).Debug("Loaded %d values", len(seq.Values))
		seqs = append(seqs, seq)
	}
	return seqs, nil
}

// joinInts formats values space separated
func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, " ")
}
