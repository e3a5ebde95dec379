package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dwikikusuma/pos-checkout/internal/checkout/domain"
	"github.com/dwikikusuma/pos-checkout/pkg/logger"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	fn    func(call int) (domain.OriginCandidate, error)
}

func (f *fakeFetcher) FetchOriginCandidate(ctx context.Context, href string) (domain.OriginCandidate, error) {
	f.mu.Lock()
	f.calls++
	n, fn := f.calls, f.fn
	f.mu.Unlock()

	if fn == nil {
		return domain.OriginCandidate{}, nil
	}
	return fn(n)
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestOriginPollerRetriesServerErrors(t *testing.T) {
	fetcher := &fakeFetcher{fn: func(call int) (domain.OriginCandidate, error) {
		if call < 3 {
			return domain.OriginCandidate{}, &domain.StatusError{Status: 503}
		}
		return domain.OriginCandidate{Origin: "DE02...", PromoteHref: "/promote"}, nil
	}}
	p := NewOriginPoller(fetcher, 5*time.Millisecond, logger.Discard())
	t.Cleanup(p.Close)

	if !p.Start("/candidate") {
		t.Fatal("start refused")
	}
	waitFor(t, func() bool { return !p.Running() })

	if n := fetcher.callCount(); n != 3 {
		t.Fatalf("calls = %d, want 3", n)
	}
	c := p.Take()
	if !c.IsValid() {
		t.Fatalf("candidate = %+v", c)
	}
	if p.Take() != nil {
		t.Fatal("candidate handed out twice")
	}
}

func TestOriginPollerKeepsPollingIncompleteCandidate(t *testing.T) {
	fetcher := &fakeFetcher{fn: func(call int) (domain.OriginCandidate, error) {
		if call == 1 {
			return domain.OriginCandidate{Origin: "DE02..."}, nil
		}
		return domain.OriginCandidate{Origin: "DE02...", PromoteHref: "/promote"}, nil
	}}
	p := NewOriginPoller(fetcher, 5*time.Millisecond, logger.Discard())
	t.Cleanup(p.Close)

	p.Start("/candidate")
	waitFor(t, func() bool { return !p.Running() })
	if fetcher.callCount() != 2 || p.Take() == nil {
		t.Fatal("incomplete candidate accepted")
	}
}

func TestOriginPollerStopsOnClientError(t *testing.T) {
	fetcher := &fakeFetcher{fn: func(int) (domain.OriginCandidate, error) {
		return domain.OriginCandidate{}, &domain.StatusError{Status: 404}
	}}
	p := NewOriginPoller(fetcher, 5*time.Millisecond, logger.Discard())
	t.Cleanup(p.Close)

	p.Start("/candidate")
	waitFor(t, func() bool { return !p.Running() })
	time.Sleep(20 * time.Millisecond)

	if n := fetcher.callCount(); n != 1 {
		t.Fatalf("calls = %d, want 1", n)
	}
	if p.Take() != nil {
		t.Fatal("unexpected candidate")
	}
}

func TestOriginPollerSinglePollAndStop(t *testing.T) {
	p := NewOriginPoller(&fakeFetcher{}, 5*time.Millisecond, logger.Discard())
	t.Cleanup(p.Close)

	if p.Start("") {
		t.Fatal("started without a link")
	}
	if !p.Start("/candidate") {
		t.Fatal("start refused")
	}
	if p.Start("/candidate") {
		t.Fatal("second concurrent poll started")
	}

	p.Stop()
	p.Stop()
	if p.Running() {
		t.Fatal("still running after stop")
	}
	if !p.Start("/candidate") {
		t.Fatal("restart after stop refused")
	}
}
