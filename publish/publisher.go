package publish

import (
	"context"
	"fmt"
	"log/slog"
)

// Publisher delivers one rendered digest to a single destination.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, digest Digest) error
}

// Sink pairs a publisher with its failure semantics. A hard sink's failure
// aborts the fan-out; a soft sink's failure is logged and skipped.
type Sink struct {
	Publisher Publisher
	Hard      bool
}

// Fanout runs publishers sequentially in registration order.
type Fanout struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewFanout creates a fan-out over the given sinks.
func NewFanout(logger *slog.Logger, sinks ...Sink) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{sinks: sinks, logger: logger}
}

// Publish delivers the digest to every sink. The first hard-sink failure
// propagates immediately; soft-sink failures only log.
func (f *Fanout) Publish(ctx context.Context, digest Digest) error {
	for _, sink := range f.sinks {
		err := sink.Publisher.Publish(ctx, digest)
		if err == nil {
			f.logger.Info("Published digest", "publisher", sink.Publisher.Name(), "date", digest.Date)
			continue
		}
		if sink.Hard {
			return fmt.Errorf("publisher %s: %w", sink.Publisher.Name(), err)
		}
		f.logger.Warn("Soft publisher failed, continuing",
			"publisher", sink.Publisher.Name(), "date", digest.Date, "error", err)
	}
	return nil
}
