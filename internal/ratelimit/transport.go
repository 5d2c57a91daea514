package ratelimit

import (
	"net/http"
)

// Transport admits each request through a Budget and feeds the response
// headers back into it.
type Transport struct {
	Base   http.RoundTripper
	Budget *Budget
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Budget != nil {
		if err := t.Budget.Acquire(req.Context()); err != nil {
			return nil, err
		}
	}
	resp, err := base.RoundTrip(req)
	if err == nil && t.Budget != nil {
		t.Budget.Observe(resp)
	}
	return resp, err
}
