package enrich

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shouni/go-charity-scraper/pkg/types"
)

// recordingLookuper は呼び出しを記録するテスト用の Lookuper です。
type recordingLookuper struct {
	mu       sync.Mutex
	calls    []string
	emails   map[string]string
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (l *recordingLookuper) Lookup(ctx context.Context, website string) string {
	n := l.inFlight.Add(1)
	defer l.inFlight.Add(-1)
	for {
		p := l.peak.Load()
		if n <= p || l.peak.CompareAndSwap(p, n) {
			break
		}
	}

	l.mu.Lock()
	l.calls = append(l.calls, website)
	l.mu.Unlock()

	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	if email, ok := l.emails[website]; ok {
		return email
	}
	return types.NotFound
}

func TestNewParallelEnricher_Defaults(t *testing.T) {
	e := NewParallelEnricher(&recordingLookuper{}, 0)
	assert.Equal(t, DefaultMaxConcurrency, e.maxConcurrency)
	assert.Zero(t, e.rateLimit)
}

func TestEnrich_Sequential(t *testing.T) {
	l := &recordingLookuper{emails: map[string]string{
		"https://orgb.example.org": "info@orgb.example.org",
	}}
	e := NewParallelEnricher(l, 1)

	results := e.Enrich(context.Background(), []string{
		types.NotFound,
		"https://orgb.example.org",
		"https://orgc.example.org",
	})

	assert.Equal(t, []string{types.NotFound, "info@orgb.example.org", types.NotFound}, results)
	assert.Equal(t, []string{"https://orgb.example.org", "https://orgc.example.org"}, l.calls, "NotFound のサイトは検索されないはずです")
	assert.Equal(t, int32(1), l.peak.Load())
}

func TestEnrich_ParallelKeepsOrder(t *testing.T) {
	emails := map[string]string{}
	var websites []string
	for _, host := range []string{"a", "b", "c", "d", "e", "f"} {
		site := "https://" + host + ".example.org"
		websites = append(websites, site)
		emails[site] = "info@" + host + ".example.org"
	}

	l := &recordingLookuper{emails: emails, delay: 10 * time.Millisecond}
	e := NewParallelEnricher(l, 3)

	results := e.Enrich(context.Background(), websites)

	for i, site := range websites {
		assert.Equal(t, emails[site], results[i])
	}
	assert.Len(t, l.calls, len(websites))
	assert.LessOrEqual(t, l.peak.Load(), int32(3))
}

func TestEnrich_CanceledContext(t *testing.T) {
	l := &recordingLookuper{}
	e := NewParallelEnricher(l, 1, WithRateLimit(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := e.Enrich(ctx, []string{"https://a.example.org", "https://b.example.org"})

	assert.Equal(t, []string{types.NotFound, types.NotFound}, results)
	assert.Empty(t, l.calls)
}

func TestEnrich_Empty(t *testing.T) {
	e := NewParallelEnricher(&recordingLookuper{}, 2)
	assert.Empty(t, e.Enrich(context.Background(), nil))
}
