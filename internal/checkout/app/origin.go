package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dwikikusuma/pos-checkout/internal/checkout/domain"
)

const DefaultOriginPollInterval = time.Second

// OriginPoller polls a payment-origin-candidate link until the backend
// offers a usable candidate. Only one poll runs at a time.
type OriginPoller struct {
	fetcher  OriginFetcher
	interval time.Duration
	log      *slog.Logger

	mu        sync.Mutex
	gen       uint64
	cancel    context.CancelFunc
	running   bool
	candidate *domain.OriginCandidate

	wg sync.WaitGroup
}

func NewOriginPoller(fetcher OriginFetcher, interval time.Duration, log *slog.Logger) *OriginPoller {
	if interval <= 0 {
		interval = DefaultOriginPollInterval
	}
	return &OriginPoller{fetcher: fetcher, interval: interval, log: log}
}

// Start begins polling href. It returns false if a poll is already running.
func (p *OriginPoller) Start(href string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running || href == "" {
		return false
	}
	p.gen++
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.running = true
	p.candidate = nil

	gen := p.gen
	p.wg.Add(1)
	go p.loop(ctx, gen, href)
	return true
}

func (p *OriginPoller) loop(ctx context.Context, gen uint64, href string) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		c, err := p.fetcher.FetchOriginCandidate(ctx, href)

		p.mu.Lock()
		if p.gen != gen || ctx.Err() != nil {
			p.mu.Unlock()
			return
		}
		switch {
		case err != nil && domain.IsServerError(err):
			p.log.Debug("origin candidate not ready", slog.Any("error", err))
		case err != nil:
			p.log.Warn("origin candidate poll stopped", slog.Any("error", err))
			p.stopLocked()
			p.mu.Unlock()
			return
		case c.IsValid():
			p.candidate = &c
			p.stopLocked()
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()
	}
}

// Stop cancels the running poll. Calling it again is a no-op.
func (p *OriginPoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *OriginPoller) stopLocked() {
	if !p.running {
		return
	}
	p.gen++
	p.running = false
	p.cancel()
	p.cancel = nil
}

func (p *OriginPoller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Take returns the resolved candidate once and forgets it.
func (p *OriginPoller) Take() *domain.OriginCandidate {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.candidate
	p.candidate = nil
	return c
}

func (p *OriginPoller) Close() {
	p.Stop()
	p.wg.Wait()
}
