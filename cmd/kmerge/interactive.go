package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/KevoDB/kmerge/pkg/merge"
	"github.com/KevoDB/kmerge/pkg/source"
	"github.com/KevoDB/kmerge/pkg/stats"
)

// Command completer for readline
var completer = readline.NewPrefixCompleter(
	readline.PcItem(".help"),
	readline.PcItem(".stats"),
	readline.PcItem(".sources"),
	readline.PcItem(".exit"),
	readline.PcItem("HAS"),
	readline.PcItem("NEXT"),
	readline.PcItem("DRAIN"),
)

const helpText = `
Commands:
  .help                   - Show this help message
  .stats                  - Show merge progress
  .sources                - List the sources being merged
  .exit                   - Exit the program

  HAS                     - Report whether more elements remain
  NEXT [n]                - Return the next element (or the next n elements)
  DRAIN                   - Return every remaining element
`

// shell steps a merge iterator one command at a time
type shell struct {
	it        *merge.MergeIterator
	collector *stats.AtomicCollector
	sequences []source.Sequence
	out       io.Writer
	emitted   int
}

// runInteractive starts the interactive stepping mode
func runInteractive(it *merge.MergeIterator, collector *stats.AtomicCollector, sequences []source.Sequence, stdin io.ReadCloser, stdout io.Writer) error {
	fmt.Fprintf(stdout, "kmerge: %d sources, %d elements. Enter .help for usage hints.\n", it.NumSources(), it.Remaining())

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "kmerge> ",
		HistoryFile:     filepath.Join(os.TempDir(), ".kmerge_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer,
		Stdin:           stdin,
		Stdout:          stdout,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	sh := &shell{it: it, collector: collector, sequences: sequences, out: stdout}
	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if len(line) == 0 {
					return nil
				}
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}

		if sh.execute(line) {
			return nil
		}
	}
}

// execute runs a single command line and reports whether the shell should exit
func (s *shell) execute(line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}

	cmd := strings.ToUpper(parts[0])
	if strings.HasPrefix(cmd, ".") {
		switch strings.ToLower(cmd) {
		case ".help":
			fmt.Fprint(s.out, helpText)
		case ".stats":
			fmt.Fprintf(s.out, "sources=%d emitted=%d remaining=%d exhausted=%v\n",
				s.it.NumSources(), s.emitted, s.it.Remaining(), !s.it.HasNext())
			if s.collector != nil {
				for i, n := range s.collector.Selections() {
					fmt.Fprintf(s.out, "  source %d selected %d\n", i, n)
				}
			}
		case ".sources":
			for i, seq := range s.sequences {
				fmt.Fprintf(s.out, "%d: %s (%d values, digest %016x)\n", i, seq.Name, len(seq.Values), seq.Digest)
			}
		case ".exit":
			return true
		default:
			fmt.Fprintf(s.out, "Unknown command: %s\n", parts[0])
		}
		return false
	}

	switch cmd {
	case "HAS":
		fmt.Fprintln(s.out, s.it.HasNext())

	case "NEXT":
		n := 1
		if len(parts) > 1 {
			var err error
			if n, err = strconv.Atoi(parts[1]); err != nil || n < 1 {
				fmt.Fprintf(s.out, "Error: invalid count %q\n", parts[1])
				return false
			}
		}

		values := make([]int, 0, min(n, s.it.Remaining()))
		for i := 0; i < n; i++ {
			v, err := s.it.GetNext()
			if err != nil {
				if len(values) > 0 {
					fmt.Fprintln(s.out, joinInts(values))
				}
				fmt.Fprintf(s.out, "Error: %v\n", err)
				s.emitted += len(values)
				return false
			}
			values = append(values, v)
		}
		s.emitted += len(values)
		fmt.Fprintln(s.out, joinInts(values))

	case "DRAIN":
		values := merge.Drain(s.it)
		s.emitted += len(values)
		fmt.Fprintln(s.out, joinInts(values))

	default:
		fmt.Fprintf(s.out, "Unknown command: %s\n", parts[0])
	}
	return false
}
