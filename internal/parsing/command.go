package parsing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// CommandParser runs an external executable per document: the raw bytes go
// in on stdin, the normalized JSON import comes back on stdout. This mirrors
// how vendor PDF extractors are shipped as standalone scripts.
type CommandParser struct {
	command string
	args    []string
}

func NewCommandParser(command string, args ...string) (*CommandParser, error) {
	if command == "" {
		return nil, fmt.Errorf("command is required")
	}
	return &CommandParser{command: command, args: args}, nil
}

func (p *CommandParser) Parse(ctx context.Context, data []byte) (*NormalizedImport, error) {
	cmd := exec.CommandContext(ctx, p.command, p.args...)
	cmd.Stdin = bytes.NewReader(data)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, Retryable(ctx.Err(), "parser command interrupted")
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// The extractor saw the document and rejected it.
			return nil, Fatal(err, fmt.Sprintf("parser command exited %d: %s",
				exitErr.ExitCode(), trimOutput(stderr.Bytes())))
		}
		// Missing binary, fork failure: environment trouble, not the document.
		return nil, Retryable(err, "starting parser command")
	}

	return decodeWire(stdout.Bytes())
}

func trimOutput(b []byte) string {
	const max = 512
	if len(b) > max {
		b = b[:max]
	}
	return string(bytes.TrimSpace(b))
}
