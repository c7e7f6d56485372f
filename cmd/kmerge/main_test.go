package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KevoDB/kmerge/pkg/config"
	"github.com/KevoDB/kmerge/pkg/merge"
	"github.com/KevoDB/kmerge/pkg/source"
	"github.com/KevoDB/kmerge/pkg/stats"
	"github.com/KevoDB/kmerge/pkg/telemetry"
)

const demoOutput = "1 2 7 8 10 12 13 14 15 16 35 42 63\n"

func emptyStdin() io.ReadCloser {
	return io.NopCloser(strings.NewReader(""))
}

func TestRunDefaultConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer

	if err := run(context.Background(), config.NewDefaultConfig(), emptyStdin(), &stdout, &stderr); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if stdout.String() != demoOutput {
		t.Errorf("Expected %q, got %q", demoOutput, stdout.String())
	}
}

func TestRunSourceFiles(t *testing.T) {
	dir := t.TempDir()
	files := []struct {
		name   string
		values []int
	}{
		{"a.txt", []int{1, 8, 15, 16, 35}},
		{"b.txt.zst", []int{2, 7, 12, 63}},
		{"c.txt.sz", []int{10, 13, 14, 42}},
	}

	cfg := config.NewDefaultConfig()
	cfg.Sources = nil
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := source.WriteFile(path, f.values); err != nil {
			t.Fatalf("Failed to write %s: %v", f.name, err)
		}
		cfg.SourceFiles = append(cfg.SourceFiles, path)
	}

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), cfg, emptyStdin(), &stdout, &stderr); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if stdout.String() != demoOutput {
		t.Errorf("Expected %q, got %q", demoOutput, stdout.String())
	}
}

func TestRunMissingSourceFile(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.SourceFiles = []string{
		filepath.Join(t.TempDir(), "missing.txt"),
		filepath.Join(t.TempDir(), "missing.txt"),
		filepath.Join(t.TempDir(), "missing.txt"),
	}

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), cfg, emptyStdin(), &stdout, &stderr); err == nil {
		t.Error("Expected an error for missing source files")
	}
	if stdout.Len() != 0 {
		t.Errorf("Expected no output, got %q", stdout.String())
	}
}

func TestRunCheckOrderRejectsUnsorted(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Sources = [][]int{{3, 1}, {2}, {4}}
	cfg.CheckOrder = true

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), cfg, emptyStdin(), &stdout, &stderr)
	if !errors.Is(err, merge.ErrUnsortedSource) {
		t.Fatalf("Expected ErrUnsortedSource, got %v", err)
	}
	if stdout.Len() != 0 {
		t.Errorf("Expected no output, got %q", stdout.String())
	}
}

func TestRunUnsortedFileWarns(t *testing.T) {
	dir := t.TempDir()
	cfg := config.NewDefaultConfig()
	cfg.Sources = nil
	for i, values := range [][]int{{5, 1}, {2}, {3}} {
		path := filepath.Join(dir, string(rune('a'+i))+".txt")
		if err := source.WriteFile(path, values); err != nil {
			t.Fatal(err)
		}
		cfg.SourceFiles = append(cfg.SourceFiles, path)
	}

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), cfg, emptyStdin(), &stdout, &stderr); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(stderr.String(), "Source is not sorted") {
		t.Errorf("Expected an unsorted warning on stderr, got %q", stderr.String())
	}
}

func TestRunWithStdoutTelemetry(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.Exporters = []string{telemetry.ExporterStdout}

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), cfg, emptyStdin(), &stdout, &stderr); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	// Exporter output never mixes with the merged sequence
	if stdout.String() != demoOutput {
		t.Errorf("Expected %q, got %q", demoOutput, stdout.String())
	}
	for _, name := range []string{"kmerge.merge.operations.total", "kmerge.run"} {
		if !strings.Contains(stderr.String(), name) {
			t.Errorf("Expected %s in exporter output", name)
		}
	}
}

func TestBuildConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := buildConfig(Options{})
		if err != nil {
			t.Fatalf("buildConfig failed: %v", err)
		}
		if cfg.Arity != merge.DefaultArity || len(cfg.Sources) != 3 {
			t.Errorf("Unexpected default config: %+v", cfg)
		}
	})

	t.Run("flags override", func(t *testing.T) {
		cfg, err := buildConfig(Options{
			SourceFiles: []string{"a", "b"},
			Arity:       2,
			LogLevel:    "debug",
			CheckOrder:  true,
		})
		if err != nil {
			t.Fatalf("buildConfig failed: %v", err)
		}
		if cfg.Arity != 2 || cfg.LogLevel != "debug" || !cfg.CheckOrder {
			t.Errorf("Flags not applied: %+v", cfg)
		}
	})

	t.Run("arity mismatch", func(t *testing.T) {
		if _, err := buildConfig(Options{Arity: 4}); !errors.Is(err, config.ErrInvalidConfig) {
			t.Errorf("Expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("bad log level", func(t *testing.T) {
		if _, err := buildConfig(Options{LogLevel: "loud"}); err == nil {
			t.Error("Expected error for unknown log level")
		}
	})

	t.Run("config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "run.yaml")
		cfg := config.NewDefaultConfig()
		cfg.Arity = 2
		cfg.Sources = [][]int{{1, 3}, {2}}
		if err := cfg.Save(path); err != nil {
			t.Fatal(err)
		}

		loaded, err := buildConfig(Options{ConfigPath: path})
		if err != nil {
			t.Fatalf("buildConfig failed: %v", err)
		}
		if loaded.Arity != 2 || len(loaded.Sources) != 2 {
			t.Errorf("Config file not applied: %+v", loaded)
		}
	})
}

func newTestShell(sources ...[]int) (*shell, *bytes.Buffer) {
	collector := stats.NewAtomicCollector(nil)
	it, err := merge.New(sources, merge.WithMetrics(collector))
	if err != nil {
		panic(err)
	}
	seqs := make([]source.Sequence, len(sources))
	for i, values := range sources {
		seqs[i] = source.NewSequence("s", values)
	}
	var out bytes.Buffer
	return &shell{it: it, collector: collector, sequences: seqs, out: &out}, &out
}

func TestShellCommands(t *testing.T) {
	sh, out := newTestShell([]int{1, 8}, []int{2, 7}, []int{10})

	steps := []struct {
		line     string
		expected string
	}{
		{"HAS", "true\n"},
		{"next", "1\n"},
		{"NEXT 2", "2 7\n"},
		{".stats", "sources=3 emitted=3 remaining=2 exhausted=false\n" +
			"  source 0 selected 1\n  source 1 selected 2\n  source 2 selected 0\n"},
		{"DRAIN", "8 10\n"},
		{"HAS", "false\n"},
		{"NEXT", "Error: no more elements available\n"},
		{"NEXT x", "Error: invalid count \"x\"\n"},
		{"FROB", "Unknown command: FROB\n"},
		{"", ""},
	}

	for _, step := range steps {
		out.Reset()
		if sh.execute(step.line) {
			t.Fatalf("%q: unexpected exit", step.line)
		}
		if out.String() != step.expected {
			t.Errorf("%q: expected %q, got %q", step.line, step.expected, out.String())
		}
	}

	if !sh.execute(".exit") {
		t.Error("Expected .exit to end the shell")
	}
}

func TestShellNextPastEnd(t *testing.T) {
	sh, out := newTestShell([]int{1}, []int{2}, nil)

	sh.execute("NEXT 5")
	expected := "1 2\nError: no more elements available\n"
	if out.String() != expected {
		t.Errorf("Expected %q, got %q", expected, out.String())
	}
	if sh.emitted != 2 {
		t.Errorf("Expected 2 emitted, got %d", sh.emitted)
	}
}

func TestShellNextHugeCount(t *testing.T) {
	sh, out := newTestShell([]int{1, 4}, []int{2}, []int{3})

	sh.execute("NEXT 100000000000000")
	expected := "1 2 3 4\nError: no more elements available\n"
	if out.String() != expected {
		t.Errorf("Expected %q, got %q", expected, out.String())
	}
	if sh.emitted != 4 {
		t.Errorf("Expected 4 emitted, got %d", sh.emitted)
	}
}

func TestJoinInts(t *testing.T) {
	if got := joinInts([]int{-1, 0, 42}); got != "-1 0 42" {
		t.Errorf("Unexpected join %q", got)
	}
	if got := joinInts(nil); got != "" {
		t.Errorf("Expected empty string, got %q", got)
	}
}
