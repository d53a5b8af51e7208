package cogito

import "context"

// ProgressSink receives human readable progress while a cycle runs.
type ProgressSink interface {
	Report(ctx context.Context, msg string) error
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(ctx context.Context, msg string) error

func (f ProgressFunc) Report(ctx context.Context, msg string) error {
	return f(ctx, msg)
}

type channelProgress struct {
	ch chan<- string
}

// NewChannelProgress returns a sink that sends every message to ch. Report blocks until the
// message is received or ctx is done. The caller owns ch and closes it after Think returns.
func NewChannelProgress(ch chan<- string) ProgressSink {
	return &channelProgress{ch: ch}
}

func (x *channelProgress) Report(ctx context.Context, msg string) error {
	select {
	case x.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type discardProgress struct{}

func (discardProgress) Report(context.Context, string) error { return nil }
