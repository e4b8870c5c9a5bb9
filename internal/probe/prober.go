package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hamed0406/uptimeworker/internal/domain"
)

var ErrTimeout = errors.New("probe timed out")

// maxDrain bounds how much of a response body is read before it is closed.
const maxDrain = 64 << 10

// Prober performs a single probe of a validated check.
type Prober interface {
	Probe(ctx context.Context, c domain.Check) domain.Outcome
}

type HTTPProber struct {
	Client *http.Client
}

// NewHTTPProber returns a prober that does not follow redirects, so a 301 is
// reported as 301. Timeouts come from each check, not from the client.
func NewHTTPProber() *HTTPProber {
	return &HTTPProber{
		Client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Probe sends one request for c and returns exactly one outcome. The response
// and the timeout race; whichever arrives first is the outcome.
//
// Cancelling ctx does not abort a probe already in flight: it still runs until
// it completes or its own timeout expires.
func (p *HTTPProber) Probe(ctx context.Context, c domain.Check) domain.Outcome {
	timeout := c.Timeout()
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)

	req, err := newRequest(reqCtx, c)
	if err != nil {
		cancel()
		return domain.Failure(err)
	}

	res := newResolution()
	timer := time.AfterFunc(timeout, func() {
		res.resolve(domain.Failure(fmt.Errorf("%w after %s", ErrTimeout, timeout)))
	})
	defer timer.Stop()

	go func() {
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				res.resolve(domain.Failure(fmt.Errorf("transport panic: %v", r)))
			}
		}()

		resp, err := p.Client.Do(req)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				err = fmt.Errorf("%w: %w", ErrTimeout, err)
			}
			res.resolve(domain.Failure(err))
			return
		}
		defer resp.Body.Close()
		res.resolve(domain.Success(resp.StatusCode))

		// A failure while draining arrives after the response and is dropped.
		if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain)); err != nil {
			res.resolve(domain.Failure(err))
		}
	}()

	return res.wait()
}

func newRequest(ctx context.Context, c domain.Check) (*http.Request, error) {
	u, err := url.Parse(c.URL())
	if err != nil {
		return nil, fmt.Errorf("parse target: %w", err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("parse target: no host in %q", c.URL())
	}
	req, err := http.NewRequestWithContext(ctx, c.HTTPMethod(), u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "uptimeworker/1")
	return req, nil
}
