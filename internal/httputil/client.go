package httputil

import (
	"net/http"
	"time"
)

const DefaultTimeout = 30 * time.Second

// NewClient returns the HTTP client used for outbound writes such as the
// InfluxDB sink. A single interval's write must never hang the pipeline.
func NewClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 4
	return &http.Client{
		Timeout:   DefaultTimeout,
		Transport: transport,
	}
}
