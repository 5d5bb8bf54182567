package resolver

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"slices"
	"strings"
)

// CommandExtractor runs an external tool with the URL as its last argument,
// inside the scratch directory. The tool picks its own output name.
type CommandExtractor struct {
	Bin  string
	Args []string
}

var _ Extractor = CommandExtractor{}

func (e CommandExtractor) Extract(ctx context.Context, url, dir, _ string) error {
	cmd := exec.CommandContext(ctx, e.Bin, append(slices.Clone(e.Args), url)...)
	cmd.Dir = dir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s failed: %w: %s", e.Bin, err, msg)
		}
		return fmt.Errorf("%s failed: %w", e.Bin, err)
	}
	return nil
}
