package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
)

// ffmpegAssembler concatenates segments with the concat demuxer, copying
// codec frames without re-encoding. Working files live in a per-call temp
// directory that is removed on every exit path.
type ffmpegAssembler struct {
	cmd     []string
	ext     string
	tempDir string
}

func NewFFmpegAssembler(command, format, tempDir string) (Assembler, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse ffmpeg command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("ffmpeg command empty")
	}
	ext := format
	if ext == "" {
		ext = "mp3"
	}
	return &ffmpegAssembler{cmd: args, ext: ext, tempDir: tempDir}, nil
}

func (f *ffmpegAssembler) Assemble(ctx context.Context, segments [][]byte) ([]byte, error) {
	segments = nonEmpty(segments)
	if len(segments) == 0 {
		return nil, ErrNoSegments
	}

	dir, err := os.MkdirTemp(f.tempDir, "juggie_concat_*")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	var manifest strings.Builder
	for i, seg := range segments {
		name := fmt.Sprintf("seg_%03d.%s", i, f.ext)
		if err := os.WriteFile(filepath.Join(dir, name), seg, 0o600); err != nil {
			return nil, fmt.Errorf("write segment %d: %w", i, err)
		}
		fmt.Fprintf(&manifest, "file '%s'\n", name)
	}
	listPath := filepath.Join(dir, "list.txt")
	if err := os.WriteFile(listPath, []byte(manifest.String()), 0o600); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	outPath := filepath.Join(dir, "out."+f.ext)
	args := append([]string{}, f.cmd[1:]...)
	args = append(args, "-y", "-f", "concat", "-safe", "0", "-i", listPath, "-c", "copy", outPath)
	cmd := exec.CommandContext(ctx, f.cmd[0], args...)
	cmd.Dir = dir
	cmd.WaitDelay = 2 * time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg concat failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("read concat output: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("ffmpeg produced empty output")
	}
	return out, nil
}
