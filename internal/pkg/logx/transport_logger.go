/*
Package logx provides a structured logging wrapper based on zerolog.

This file contains an http.RoundTripper decorator used to log every
outbound REST call: method, URL, response status, and latency.
*/
package logx

import (
	"net/http"
	"time"
)

// loggingTransport wraps an http.RoundTripper and logs each request it carries.
type loggingTransport struct {
	next http.RoundTripper
}

// LoggingTransport returns an http.RoundTripper that logs outbound requests
// through the global logger. A nil next falls back to http.DefaultTransport.
func LoggingTransport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &loggingTransport{next: next}
}

// RoundTrip executes the request and logs its outcome.
// Transport-level failures log at Error level; 4xx responses at Warn;
// 5xx responses at Error; everything else at Debug.
func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	logger := Logger().With().
		Str("component", "http_client").
		Str("request_method", req.Method).
		Str("request_url", req.URL.String()).
		Logger()

	t1 := time.Now()
	res, err := t.next.RoundTrip(req)
	if err != nil {
		logger.Error().
			Err(err).
			Dur("latency", time.Since(t1)).
			Msg("Request failed before a response was received")
		return nil, err
	}

	logEvent := logger.Debug()
	if res.StatusCode >= 500 {
		logEvent = logger.Error()
	} else if res.StatusCode >= 400 {
		logEvent = logger.Warn()
	}

	logEvent.
		Int("status", res.StatusCode).
		Dur("latency", time.Since(t1)).
		Msg("Request completed")

	return res, nil
}
