package llm

import (
	"errors"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/avreyes/deepgen/internal/config"
)

// Statuses the transport retries automatically. Everything else surfaces
// immediately to the client.
var retryStatuses = map[int]struct{}{
	http.StatusTooManyRequests:     {},
	http.StatusInternalServerError: {},
	http.StatusBadGateway:          {},
	http.StatusServiceUnavailable:  {},
	http.StatusGatewayTimeout:      {},
}

const defaultBackoffCap = 120 * time.Second

// retryTransport is an http.RoundTripper that reissues failed POSTs with
// exponential backoff. It keeps separate budgets for connection errors, read
// errors and retryable statuses, on top of an overall retry budget. The
// completion endpoint is not idempotent in general, so only POSTs to it are
// eligible; this transport is never shared with other traffic.
type retryTransport struct {
	base           http.RoundTripper
	maxRetries     int
	connectRetries int
	readRetries    int
	statusRetries  int
	backoffFactor  float64
	backoffCap     time.Duration
	logger         zerolog.Logger
}

func newRetryTransport(cfg config.APIConfig, logger zerolog.Logger) *retryTransport {
	return &retryTransport{
		base:           http.DefaultTransport,
		maxRetries:     cfg.MaxRetries,
		connectRetries: cfg.ConnectRetries,
		readRetries:    cfg.ReadRetries,
		statusRetries:  cfg.StatusRetries,
		backoffFactor:  cfg.BackoffFactor,
		backoffCap:     defaultBackoffCap,
		logger:         logger,
	}
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodPost {
		return t.base.RoundTrip(req)
	}

	// Whichever budget runs out first ends the retries, so a flood of one
	// failure class cannot spend the whole overall budget on its own.
	connectLeft := t.connectRetries
	readLeft := t.readRetries
	statusLeft := t.statusRetries

	for attempt := 0; ; attempt++ {
		attemptReq := req
		if attempt > 0 {
			var err error
			attemptReq, err = rewindRequest(req)
			if err != nil {
				return nil, &TransportError{Attempts: attempt, Err: err}
			}
		}

		resp, err := t.base.RoundTrip(attemptReq)
		if err != nil {
			if isConnectError(err) {
				connectLeft--
			} else {
				readLeft--
			}
			if attempt >= t.maxRetries || connectLeft < 0 || readLeft < 0 {
				return nil, &TransportError{Attempts: attempt + 1, Err: err}
			}
			t.logger.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Msg("Request failed, backing off")
			if serr := t.sleep(req, t.backoff(attempt), 0); serr != nil {
				return nil, &TransportError{Attempts: attempt + 1, Err: serr}
			}
			continue
		}

		if _, retryable := retryStatuses[resp.StatusCode]; !retryable {
			return resp, nil
		}

		statusLeft--
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if attempt >= t.maxRetries || statusLeft < 0 {
			return nil, &TransportError{Status: resp.StatusCode, Attempts: attempt + 1}
		}

		t.logger.Warn().
			Int("status", resp.StatusCode).
			Int("attempt", attempt+1).
			Msg("Retryable status from API, backing off")
		if serr := t.sleep(req, t.backoff(attempt), retryAfter); serr != nil {
			return nil, &TransportError{Status: resp.StatusCode, Attempts: attempt + 1, Err: serr}
		}
	}
}

// backoff computes the exponential delay before retry attempt+1.
func (t *retryTransport) backoff(attempt int) time.Duration {
	d := time.Duration(t.backoffFactor * math.Pow(2, float64(attempt)) * float64(time.Second))
	if d > t.backoffCap {
		d = t.backoffCap
	}
	return d
}

// sleep waits for the computed delay, preferring a server-supplied
// Retry-After when present. It aborts early if the request context ends.
func (t *retryTransport) sleep(req *http.Request, delay, retryAfter time.Duration) error {
	if retryAfter > 0 {
		delay = retryAfter
		if delay > t.backoffCap {
			delay = t.backoffCap
		}
	}
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-req.Context().Done():
		return req.Context().Err()
	case <-timer.C:
		return nil
	}
}

// rewindRequest clones the request with a fresh body for the next attempt.
func rewindRequest(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}
	return clone, nil
}

// isConnectError reports whether the error happened while establishing the
// connection, as opposed to reading the response.
func isConnectError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}

// parseRetryAfter handles both delta-seconds and HTTP-date forms.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
