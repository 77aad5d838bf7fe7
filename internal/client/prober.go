package client

import (
	"context"
	"time"

	"collabdocs/internal/session"
)

// Pinger is anything that can tell whether the server answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Prober turns periodic health checks into a connectivity signal.
type Prober struct {
	Pinger   Pinger
	Interval time.Duration
	Timeout  time.Duration
}

func NewProber(p Pinger, interval time.Duration) *Prober {
	return &Prober{Pinger: p, Interval: interval, Timeout: 3 * time.Second}
}

// Run probes immediately and then every Interval. It sends a State only when
// it differs from the last one sent, and closes the channel when ctx is done.
func (p *Prober) Run(ctx context.Context) <-chan session.State {
	out := make(chan session.State)
	go func() {
		defer close(out)
		ticker := time.NewTicker(p.interval())
		defer ticker.Stop()

		var last session.State
		sent := false
		for {
			state := p.probe(ctx)
			if ctx.Err() != nil {
				return
			}
			if !sent || state != last {
				select {
				case out <- state:
				case <-ctx.Done():
					return
				}
				last, sent = state, true
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return out
}

func (p *Prober) probe(ctx context.Context) session.State {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := p.Pinger.Ping(ctx); err != nil {
		return session.Offline
	}
	return session.Online
}

func (p *Prober) interval() time.Duration {
	if p.Interval > 0 {
		return p.Interval
	}
	return 5 * time.Second
}
