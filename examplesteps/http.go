// Package examplesteps holds demo Step implementations that touch
// concerns the executor itself never does (network I/O via resty,
// client-side pacing via throttle). A step that calls the network is
// something a caller supplies, not an executor concern, so these live
// outside step/dag/executor.
package examplesteps

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/corework/dagflow/step"
	"github.com/corework/dagflow/throttle"
	"github.com/corework/dagflow/wftypes"
)

// HTTPFetch is a Step that issues one GET request through a shared rate
// limiter, wrapping non-2xx responses in errors that carry the status code
// for step.DefaultRetryClassifier (429, 500, 502, 503, 504 and statuses
// whose text mentions a timeout are retryable; other statuses are not).
type HTTPFetch struct {
	StepName           string
	URL                string
	Client             *resty.Client
	Limiter            *throttle.Limiter
	Deps               []string
	StepTimeoutSeconds int
}

var _ step.Step = (*HTTPFetch)(nil)

// NewHTTPFetch builds an HTTPFetch step with a resty client that has no
// client-side timeout (the executor's per-attempt context bounds each
// request) and no automatic retry (the executor already owns retries).
func NewHTTPFetch(name, url string, limiter *throttle.Limiter, deps ...string) *HTTPFetch {
	client := resty.New().SetTimeout(0) // per-attempt timeout enforced by the executor's context, not resty
	return &HTTPFetch{
		StepName:           name,
		URL:                url,
		Client:             client,
		Limiter:            limiter,
		Deps:               deps,
		StepTimeoutSeconds: 30,
	}
}

func (h *HTTPFetch) Name() string               { return h.StepName }
func (h *HTTPFetch) DependsOn() []string        { return h.Deps }
func (h *HTTPFetch) Timeout() time.Duration     { return time.Duration(h.StepTimeoutSeconds) * time.Second }
func (h *HTTPFetch) MaxAttempts() int           { return 3 }
func (h *HTTPFetch) Condition() step.Condition  { return nil }
func (h *HTTPFetch) IsRetryable(err error) bool { return step.DefaultRetryClassifier(err) }

func (h *HTTPFetch) Execute(ctx context.Context, _ wftypes.ExecutionContext) (wftypes.Output, error) {
	if h.Limiter != nil {
		if err := h.Limiter.Wait(ctx); err != nil {
			return wftypes.Output{}, fmt.Errorf("rate limit wait cancelled: %w", err)
		}
	}

	resp, err := h.Client.R().SetContext(ctx).Get(h.URL)
	if err != nil {
		return wftypes.Output{}, fmt.Errorf("connection error fetching %s: %w", h.URL, err)
	}
	if resp.IsError() {
		return wftypes.Output{}, fmt.Errorf("http fetch failed with status %s: %s",
			step.HTTPStatusFromMessage(resp.StatusCode()), resp.Status())
	}

	return wftypes.NewStringOutput(string(resp.Body())), nil
}
