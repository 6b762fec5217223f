package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

const (
	healthyProbeInterval  = 30 * time.Second
	degradedProbeInterval = 5 * time.Second
	probeTimeout          = 10 * time.Second
)

// ProberOptions configures a Prober.
type ProberOptions struct {
	// Client is the API client whose base URL the prober watches and, when a
	// fallback answers, rewrites.
	Client *Client
	// Fallbacks is the ordered list of base URLs tried while the primary is
	// unreachable. See FallbackBases.
	Fallbacks []string
	// HealthyInterval and DegradedInterval override the probe cadence; zero
	// keeps the defaults (30 s healthy, 5 s degraded).
	HealthyInterval  time.Duration
	DegradedInterval time.Duration
	// ProbeTimeout bounds one probe; zero means 10 seconds.
	ProbeTimeout time.Duration
	// OnLost fires on a healthy-to-degraded transition, OnRestored on the
	// reverse (including adoption of a fallback base).
	OnLost     func(err error)
	OnRestored func(base string)
	Logger     *slog.Logger
}

// Prober periodically fetches the meeting list to track whether the server
// is reachable, probing faster while degraded and walking the fallback bases
// until one answers.
type Prober struct {
	client           *Client
	fallbacks        []string
	healthyInterval  time.Duration
	degradedInterval time.Duration
	probeTimeout     time.Duration
	onLost           func(error)
	onRestored       func(string)
	logger           *slog.Logger
	healthy          atomic.Bool // read by callers while Run's goroutine flips it
}

// NewProber constructs a prober. The prober starts optimistic: the first
// failed probe emits the lost transition.
func NewProber(opts ProberOptions) (*Prober, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("client: prober requires an API client")
	}
	if opts.HealthyInterval <= 0 {
		opts.HealthyInterval = healthyProbeInterval
	}
	if opts.DegradedInterval <= 0 {
		opts.DegradedInterval = degradedProbeInterval
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = probeTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	p := &Prober{
		client:           opts.Client,
		fallbacks:        append([]string(nil), opts.Fallbacks...),
		healthyInterval:  opts.HealthyInterval,
		degradedInterval: opts.DegradedInterval,
		probeTimeout:     opts.ProbeTimeout,
		onLost:           opts.OnLost,
		onRestored:       opts.OnRestored,
		logger:           logger,
	}
	p.healthy.Store(true)
	return p, nil
}

// Healthy reports the last observed connection state.
func (p *Prober) Healthy() bool { return p.healthy.Load() }

// Run probes until the context is cancelled.
func (p *Prober) Run(ctx context.Context) {
	for {
		interval := p.healthyInterval
		if !p.healthy.Load() {
			interval = p.degradedInterval
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}

		p.probeOnce(ctx)
	}
}

func (p *Prober) probeOnce(ctx context.Context) {
	err := p.probe(ctx, p.client.BaseURL())
	if err == nil {
		if !p.healthy.Swap(true) {
			p.logger.Info("connection restored", "base", p.client.BaseURL())
			if p.onRestored != nil {
				p.onRestored(p.client.BaseURL())
			}
		}
		return
	}

	if p.healthy.Swap(false) {
		p.logger.Warn("connection lost", "base", p.client.BaseURL(), "error", err)
		if p.onLost != nil {
			p.onLost(err)
		}
	}

	for _, base := range p.fallbacks {
		if base == "" || base == p.client.BaseURL() {
			continue
		}
		if p.probe(ctx, base) == nil {
			p.client.SetBaseURL(base)
			p.healthy.Store(true)
			p.logger.Info("connection restored via fallback", "base", base)
			if p.onRestored != nil {
				p.onRestored(base)
			}
			return
		}
	}
}

func (p *Prober) probe(ctx context.Context, base string) error {
	ctx, cancel := context.WithTimeout(ctx, p.probeTimeout)
	defer cancel()

	target := strings.TrimRight(base, "/") + "/api/meetings?_t=" + strconv.FormatInt(time.Now().UnixMilli(), 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := p.client.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return &StatusError{Status: resp.StatusCode}
	}
	return nil
}

// FallbackBases builds the ordered fallback list for a primary base URL:
// the same host without its port, localhost on the default service port,
// and finally a stored user-supplied address when present.
func FallbackBases(primary, stored string) []string {
	var bases []string
	if parsed, err := url.Parse(primary); err == nil && parsed.Hostname() != "" && parsed.Port() != "" {
		bases = append(bases, parsed.Scheme+"://"+parsed.Hostname())
	}
	bases = append(bases, "http://localhost:3000")
	if stored = strings.TrimSpace(stored); stored != "" {
		if !strings.Contains(stored, "://") {
			stored = "http://" + stored
		}
		bases = append(bases, stored)
	}
	return bases
}
