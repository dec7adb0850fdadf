package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"

	"stemsplit/internal/core/domain"
)

// encodeArgs maps the supported target formats to ffmpeg output flags.
var encodeArgs = map[string][]string{
	"mp3":  {"-f", "mp3", "-codec:a", "libmp3lame", "-q:a", "2"},
	"wav":  {"-f", "wav"},
	"flac": {"-f", "flac"},
}

var contentTypes = map[string]string{
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"flac": "audio/flac",
}

// Converter transcodes audio through the local ffmpeg binary.
type Converter struct {
	binaryPath string
}

// NewConverter creates a Converter using the given binary path, or
// "ffmpeg" from PATH when empty.
func NewConverter(binaryPath string) *Converter {
	if binaryPath == "" {
		binaryPath = "ffmpeg"
	}
	return &Converter{binaryPath: binaryPath}
}

// Supported reports whether the target format is one we can produce.
func Supported(format string) bool {
	_, ok := encodeArgs[format]
	return ok
}

// ContentTypeFor returns the MIME type for a supported format.
func ContentTypeFor(format string) string {
	return contentTypes[format]
}

// Convert transcodes the input stream to the target format. Audio flows
// through stdin/stdout so nothing touches disk.
func (c *Converter) Convert(ctx context.Context, input io.Reader, format string) ([]byte, error) {
	args, ok := encodeArgs[format]
	if !ok {
		return nil, &domain.ValidationError{Reason: fmt.Sprintf("unsupported target format %q", format)}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	cmdArgs := []string{"-hide_banner", "-loglevel", "error", "-i", "pipe:0"}
	cmdArgs = append(cmdArgs, args...)
	cmdArgs = append(cmdArgs, "pipe:1")

	cmd := exec.CommandContext(ctx, c.binaryPath, cmdArgs...)
	cmd.Stdin = input

	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, stderr.String())
	}
	if out.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output")
	}
	return out.Bytes(), nil
}
