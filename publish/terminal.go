package publish

import (
	"context"
	"fmt"
	"io"
	"os"
)

// TerminalSink writes the digest to standard output. It never fails, so it
// doubles as the local-test publisher.
type TerminalSink struct {
	out io.Writer
}

// NewTerminalSink creates a TerminalSink. A nil writer means os.Stdout.
func NewTerminalSink(out io.Writer) *TerminalSink {
	if out == nil {
		out = os.Stdout
	}
	return &TerminalSink{out: out}
}

func (t *TerminalSink) Name() string { return "terminal" }

func (t *TerminalSink) Publish(_ context.Context, digest Digest) error {
	fmt.Fprintf(t.out, "=== %s (%d stories) ===\n\n", digest.FileName, len(digest.Stories))
	fmt.Fprintln(t.out, digest.Markdown)
	return nil
}
