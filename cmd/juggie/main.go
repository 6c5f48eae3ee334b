package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"unicode/utf8"

	"github.com/joho/godotenv"

	"github.com/loqalabs/juggie/internal/catalog"
	"github.com/loqalabs/juggie/internal/config"
	"github.com/loqalabs/juggie/internal/protocol"
	"github.com/loqalabs/juggie/internal/runtime"
	"github.com/loqalabs/juggie/internal/session"
	"github.com/loqalabs/juggie/internal/text"
)

var version = "0.1.0-dev"

const usage = `usage: juggie <command> [flags]

commands:
  ask       answer one question and write the audio file
  chunk     split stdin into synthesis chunks
  validate  check a configuration file
  version   print the version`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var code int
	switch os.Args[1] {
	case "ask":
		code = runAsk(ctx, os.Args[2:], os.Stdout, os.Stderr)
	case "chunk":
		code = runChunk(os.Args[2:], os.Stdin, os.Stdout, os.Stderr)
	case "validate":
		code = runValidate(os.Args[2:], os.Stdout, os.Stderr)
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n%s\n", os.Args[1], usage)
		code = 2
	}
	os.Exit(code)
}

func runAsk(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fset := flag.NewFlagSet("ask", flag.ContinueOnError)
	fset.SetOutput(stderr)
	var (
		configPath string
		subject    string
		marks      string
		language   string
		outPath    string
		quiet      bool
	)
	fset.StringVar(&configPath, "config", "", "Path to configuration file")
	fset.StringVar(&subject, "subject", "", "Subject of the question")
	fset.StringVar(&marks, "marks", "5", "Marks value (1, 2, 3, 5 or 8)")
	fset.StringVar(&language, "language", "English", "Output language")
	fset.StringVar(&outPath, "out", "", "Audio output path (defaults to the artifact file name)")
	fset.BoolVar(&quiet, "quiet", false, "Suppress progress output")
	if err := fset.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cliLevel(cfg.Telemetry.SlogLevel())}))

	req, err := catalog.NewRequest(strings.Join(fset.Args(), " "), subject, marks, language)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	var notifier session.Notifier
	if !quiet {
		notifier = progressPrinter(stderr)
	}
	pipeline, err := runtime.BuildPipeline(ctx, cfg, notifier, nil, logger)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer pipeline.Close()

	res, err := pipeline.Orchestrator.Run(ctx, req)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	fmt.Fprintln(stdout, res.Answer)
	fmt.Fprintf(stderr, "%d / %d words, %d part(s)\n", res.WordCount(), res.WordLimit, len(res.Chunks))
	for _, n := range res.Notices {
		fmt.Fprintln(stderr, "notice:", n.Message)
	}
	if res.Audio == nil {
		fmt.Fprintln(stderr, "audio unavailable")
		return 0
	}
	if outPath == "" {
		outPath = res.Audio.FileName
	}
	if err := os.WriteFile(outPath, res.Audio.Data, 0o644); err != nil {
		fmt.Fprintf(stderr, "write audio: %v\n", err)
		return 1
	}
	fmt.Fprintf(stderr, "audio written to %s\n", outPath)
	return 0
}

// cliLevel keeps routine info logs out of the terminal unless debugging.
func cliLevel(level slog.Level) slog.Level {
	if level < slog.LevelWarn && level > slog.LevelDebug {
		return slog.LevelWarn
	}
	return level
}

func progressPrinter(w io.Writer) session.Notifier {
	return session.NotifierFunc(func(_ context.Context, evt protocol.ProgressEvent) {
		prefix := "…"
		switch evt.Level {
		case protocol.LevelWarning:
			prefix = "!"
		case protocol.LevelError:
			prefix = "x"
		}
		fmt.Fprintf(w, "%s %s\n", prefix, evt.Message)
	})
}

func runChunk(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fset := flag.NewFlagSet("chunk", flag.ContinueOnError)
	fset.SetOutput(stderr)
	limit := fset.Int("limit", text.DefaultChunkLimit, "Maximum characters per chunk")
	words := fset.Int("words", 0, "Truncate to this many words before chunking (0 disables)")
	if err := fset.Parse(args); err != nil {
		return 2
	}

	data, err := io.ReadAll(bufio.NewReader(stdin))
	if err != nil {
		fmt.Fprintf(stderr, "read stdin: %v\n", err)
		return 1
	}
	input := string(data)
	if *words > 0 {
		input = text.EnforceWordLimit(input, *words)
	}
	for i, c := range text.Chunk(input, *limit) {
		if i > 0 {
			fmt.Fprintln(stdout)
		}
		fmt.Fprintf(stdout, "--- chunk %d (%d chars) ---\n%s\n", i+1, utf8.RuneCountInString(c), c)
	}
	return 0
}

func runValidate(args []string, stdout, stderr io.Writer) int {
	fset := flag.NewFlagSet("validate", flag.ContinueOnError)
	fset.SetOutput(stderr)
	configPath := fset.String("file", "juggie.yaml", "Path to configuration file")
	if err := fset.Parse(args); err != nil {
		return 2
	}
	if _, err := config.Load(*configPath); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	fmt.Fprintln(stdout, "config valid")
	return 0
}
