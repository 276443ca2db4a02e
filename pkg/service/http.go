package service

import (
	"context"
	"net/http"
	"time"
)

// DefaultHTTPTimeout bounds every outbound HTTP request.
const DefaultHTTPTimeout = 30 * time.Second

// HTTP is the service shape shared by every HTTP upstream.
type HTTP = Service[*http.Request, *http.Response]

// HTTPOpts configures NewHTTP.
type HTTPOpts struct {
	Client  *http.Client
	Timeout time.Duration
	// Headers are set on every request. Values here are treated as secrets and never logged.
	Headers http.Header
	Limits  Opts
}

// NewHTTP returns a throttled HTTP service.
func NewHTTP(o HTTPOpts) *Limited[*http.Request, *http.Response] {
	if o.Timeout <= 0 {
		o.Timeout = DefaultHTTPTimeout
	}
	client := o.Client
	if client == nil {
		client = &http.Client{Timeout: o.Timeout}
	} else if client.Timeout == 0 {
		client.Timeout = o.Timeout
	}
	headers := o.Headers.Clone()

	do := Func[*http.Request, *http.Response](func(ctx context.Context, req *http.Request) (*http.Response, error) {
		req = req.WithContext(ctx)
		for k, v := range headers {
			req.Header[k] = v
		}
		return client.Do(req)
	})
	return New[*http.Request, *http.Response](do, o.Limits)
}
