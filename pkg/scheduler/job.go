// Package scheduler provides a rate-limited concurrent job scheduler that
// dispatches HTTP calls through an elastic pool of short-lived workers and
// stores their results for at-most-once retrieval.
package scheduler

import (
	"net/http"
	"net/url"
)

// Job is one queued HTTP call. Created on submission and removed from the
// queue once a worker claims it.
type Job struct {
	// ID is the opaque token used to retrieve the result.
	ID string

	// Endpoint is the full request URL.
	Endpoint string

	// Method is the HTTP method.
	Method string

	// Headers are merged into the request.
	Headers map[string]string

	// Payload carries query parameters for GET requests and the form body
	// for everything else.
	Payload url.Values
}

// Result is the full HTTP response for one job. Retrieval through Await is
// destructive: a job's result can be consumed exactly once.
type Result struct {
	// StatusCode is the HTTP status code, 0 when the transport failed.
	StatusCode int

	// Status is the HTTP status line.
	Status string

	// Headers are the response headers.
	Headers http.Header

	// Body is the fully read response body.
	Body []byte

	// URL is the final request URL.
	URL string

	// Err is set when the request never produced a response. Non-2xx
	// responses are not errors; callers inspect StatusCode themselves.
	Err error
}

// OK reports whether the job produced a response with a status below 400.
func (r *Result) OK() bool {
	return r.Err == nil && r.StatusCode < 400
}
