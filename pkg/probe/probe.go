package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"aistate/pkg/log"

	"github.com/hashicorp/go-cleanhttp"
)

// DefaultTimeout bounds a liveness probe.
const DefaultTimeout = 180 * time.Second

// Kind classifies a probe outcome.
type Kind int

const (
	// Success means the target answered before the deadline.
	Success Kind = iota
	// Timeout means the deadline expired and the request was aborted.
	Timeout
	// NetworkError is any other failure: refused, DNS, TLS, reset, or a 5xx answer.
	NetworkError
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Timeout:
		return "timeout"
	case NetworkError:
		return "network_error"
	default:
		return "unknown"
	}
}

// Outcome is the result of one probe. It is a value, not an error.
type Outcome struct {
	Kind       Kind
	URL        string
	StatusCode int
	Latency    time.Duration
	Err        error
}

// OK reports whether the probe succeeded.
func (o Outcome) OK() bool {
	return o.Kind == Success
}

// StatusError reports a 5xx answer from the probe target.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("probe target returned status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Prober issues single GET requests bounded by a deadline.
type Prober struct {
	client  *http.Client
	timeout time.Duration
}

// NewProber creates a prober. A non-positive timeout falls back to DefaultTimeout.
func NewProber(timeout time.Duration) *Prober {
	return NewProberWithClient(cleanhttp.DefaultPooledClient(), timeout)
}

// NewProberWithClient creates a prober over a caller-supplied client.
// The client's own Timeout should be zero; the probe deadline governs.
func NewProberWithClient(client *http.Client, timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{client: client, timeout: timeout}
}

// Timeout returns the probe deadline.
func (p *Prober) Timeout() time.Duration {
	return p.timeout
}

// Probe checks that url answers within the probe deadline. The deadline is scoped to
// this call only; when it fires the in-flight request is aborted.
func (p *Prober) Probe(ctx context.Context, url string) Outcome {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	outcome := Outcome{URL: url}
	start := time.Now()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, url, nil)
	if err != nil {
		outcome.Kind = NetworkError
		outcome.Err = err
		return finish(outcome, start)
	}

	log.Debug().Str("url", url).Dur("timeout", p.timeout).Msg("Probing model endpoint")

	resp, err := p.client.Do(req)
	if err != nil {
		outcome.Err = err
		outcome.Kind = classify(probeCtx)
		return finish(outcome, start)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Str("url", url).Msg("Failed to close probe response body")
		}
	}()

	outcome.StatusCode = resp.StatusCode
	if resp.StatusCode >= http.StatusInternalServerError {
		outcome.Kind = NetworkError
		outcome.Err = &StatusError{StatusCode: resp.StatusCode}
		return finish(outcome, start)
	}

	outcome.Kind = Success
	return finish(outcome, start)
}

// finish stamps the elapsed time on an outcome.
func finish(outcome Outcome, start time.Time) Outcome {
	outcome.Latency = time.Since(start)
	return outcome
}

// classify separates an expired probe deadline from every other transport failure.
// Only the probe's own deadline counts: a dial or TLS timeout inside the transport
// wraps context.DeadlineExceeded too but is a network error.
func classify(probeCtx context.Context) Kind {
	if errors.Is(probeCtx.Err(), context.DeadlineExceeded) {
		return Timeout
	}
	return NetworkError
}
