package tts

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/mattn/go-shellwords"
)

// execSynth runs a local speech command. It receives the request as JSON on
// stdin and streams base64 audio frames back as JSON lines.
// execWaitDelay bounds how long Wait lingers on pipes held by orphaned children
// after the command exits or is killed.
const execWaitDelay = 2 * time.Second

type execSynth struct {
	cmd []string
	mu  sync.Mutex
}

type execRequest struct {
	Text   string `json:"text"`
	Voice  string `json:"voice"`
	Format string `json:"format"`
}

type execResponse struct {
	AudioBase64 string `json:"audio_base64"`
	Error       string `json:"error,omitempty"`
}

func NewExecSynth(command string) (Synthesizer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse tts command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("tts command empty")
	}
	return &execSynth{cmd: args}, nil
}

func (e *execSynth) Synthesize(ctx context.Context, req SynthRequest) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	data, err := sonic.Marshal(execRequest{Text: req.Text, Voice: req.Voice, Format: req.Format})
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, e.cmd[0], e.cmd[1:]...)
	cmd.WaitDelay = execWaitDelay
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, &SynthesisError{Provider: "exec", Err: err}
	}
	// Kill before Wait: a command still writing would block on the full stdout pipe.
	abort := func(err error) ([]byte, error) {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, &SynthesisError{Provider: "exec", Err: err}
	}
	if _, err := stdin.Write(data); err != nil {
		return abort(err)
	}
	stdin.Close()

	var audio bytes.Buffer
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var resp execResponse
		if err := sonic.Unmarshal(line, &resp); err != nil {
			return abort(fmt.Errorf("decode frame: %w", err))
		}
		if resp.Error != "" {
			return abort(fmt.Errorf("%s", resp.Error))
		}
		frame, err := base64.StdEncoding.DecodeString(resp.AudioBase64)
		if err != nil {
			return abort(fmt.Errorf("decode audio: %w", err))
		}
		audio.Write(frame)
	}
	if err := scanner.Err(); err != nil {
		return abort(err)
	}
	if err := cmd.Wait(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return nil, &SynthesisError{Provider: "exec", Err: err}
	}
	if audio.Len() == 0 {
		return nil, &SynthesisError{Provider: "exec", Err: fmt.Errorf("command produced no audio")}
	}
	return audio.Bytes(), nil
}
