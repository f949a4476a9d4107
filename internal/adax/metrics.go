package adax

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/clambin/go-common/http/metrics"
	"github.com/clambin/go-common/http/roundtripper"
	"github.com/prometheus/client_golang/prometheus"
)

// NewRequestMetrics returns metrics for calls to the ADAX API, labelled by method, path and status code.
func NewRequestMetrics(namespace, subsystem string, labels prometheus.Labels) metrics.RequestMetrics {
	return metrics.NewRequestMetrics(metrics.Options{
		Namespace:   namespace,
		Subsystem:   subsystem,
		ConstLabels: labels,
		LabelValues: func(request *http.Request, code int) (string, string, string) {
			return request.Method, requestPath(request), strconv.Itoa(code)
		},
	})
}

// requestPath strips the base URL's path, so metrics use the same path regardless of the configured base URL.
func requestPath(request *http.Request) string {
	path := request.URL.Path
	for _, endpoint := range []string{tokenPath, contentPath, controlPath} {
		if strings.HasSuffix(path, endpoint) {
			return endpoint
		}
	}
	if path == "" {
		path = "/"
	}
	return path
}

// InstrumentedHTTPClient returns an http.Client that records the request metrics of each call.
func InstrumentedHTTPClient(rt http.RoundTripper, m metrics.RequestMetrics) *http.Client {
	if rt == nil {
		rt = http.DefaultTransport
	}
	return &http.Client{
		Transport: roundtripper.New(
			roundtripper.WithRequestMetrics(m),
			roundtripper.WithRoundTripper(rt),
		),
	}
}
