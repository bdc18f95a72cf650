// Package testhelpers holds shared fixtures for package tests.
package testhelpers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// Expectation is one canned response for a matching request.
type Expectation struct {
	Method string
	URL    *url.URL

	User     string
	Password string

	StatusCode int
	RespBody   []byte
	Headers    http.Header
	Err        error

	matched        bool
	mismatchReason string
}

// MockTransport answers requests from registered expectations; each
// expectation matches once.
type MockTransport struct {
	mu           sync.Mutex
	expectations []*Expectation
}

var (
	DefaultTransport                   = &MockTransport{}
	savedTransport   http.RoundTripper = http.DefaultTransport
)

// Expect registers an expectation against baseURL on DefaultTransport.
func Expect(baseURL string) *Expectation {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		panic(fmt.Sprintf("httpmock: invalid base URL %q", baseURL))
	}
	exp := &Expectation{URL: u, Headers: make(http.Header)}
	DefaultTransport.add(exp)
	return exp
}

// Get sets the method and the path, optionally with a query string whose
// keys must all be present on the request.
func (e *Expectation) Get(path string) *Expectation {
	e.Method = http.MethodGet
	u, err := url.Parse(path)
	if err != nil {
		panic(fmt.Sprintf("httpmock: invalid path %q: %v", path, err))
	}
	e.URL.Path = strings.TrimRight(e.URL.Path, "/") + u.Path
	e.URL.RawQuery = u.RawQuery
	return e
}

func (e *Expectation) BasicAuth(user, password string) *Expectation {
	e.User, e.Password = user, password
	return e
}

func (e *Expectation) Reply(statusCode int) *Expectation {
	e.StatusCode = statusCode
	return e
}

func (e *Expectation) BodyString(body string) *Expectation {
	e.RespBody = []byte(body)
	return e
}

func (e *Expectation) JSON(v any) *Expectation {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("httpmock: marshal JSON: %v", err))
	}
	e.RespBody = data
	e.Headers.Set("Content-Type", "application/json")
	return e
}

// Fail makes the round trip return err instead of a response.
func (e *Expectation) Fail(err error) *Expectation {
	e.Err = err
	return e
}

func (t *MockTransport) add(exp *Expectation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.expectations = append(t.expectations, exp)
}

func (t *MockTransport) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.expectations = nil
}

// IsDone reports whether every registered expectation was matched.
func IsDone() bool {
	DefaultTransport.mu.Lock()
	defer DefaultTransport.mu.Unlock()
	for _, exp := range DefaultTransport.expectations {
		if !exp.matched {
			return false
		}
	}
	return true
}

// Activate routes http.DefaultClient through DefaultTransport.
func Activate() {
	if http.DefaultClient.Transport == DefaultTransport {
		return
	}
	if http.DefaultClient.Transport != nil {
		savedTransport = http.DefaultClient.Transport
	} else {
		savedTransport = http.DefaultTransport
	}
	http.DefaultClient.Transport = DefaultTransport
}

// Deactivate restores the original transport and drops all expectations.
func Deactivate() {
	http.DefaultClient.Transport = savedTransport
	DefaultTransport.reset()
}

func (t *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, exp := range t.expectations {
		if !exp.matched && exp.matches(req) {
			exp.matched = true
			if exp.Err != nil {
				return nil, exp.Err
			}
			return exp.response(req), nil
		}
	}

	var reasons []string
	for _, exp := range t.expectations {
		if exp.mismatchReason != "" {
			reasons = append(reasons, exp.mismatchReason)
		}
	}
	extra := ""
	if len(reasons) > 0 {
		extra = " (" + strings.Join(reasons, "; ") + ")"
	}
	return nil, fmt.Errorf("httpmock: no match for %s %s%s", req.Method, req.URL, extra)
}

func (e *Expectation) matches(req *http.Request) bool {
	e.mismatchReason = ""
	switch {
	case e.Method != "" && e.Method != req.Method:
		e.mismatchReason = fmt.Sprintf("method: want %s got %s", e.Method, req.Method)
	case e.URL.Scheme != req.URL.Scheme || e.URL.Host != req.URL.Host:
		e.mismatchReason = fmt.Sprintf("host: want %s got %s", e.URL.Host, req.URL.Host)
	case e.URL.Path != req.URL.Path:
		e.mismatchReason = fmt.Sprintf("path: want %s got %s", e.URL.Path, req.URL.Path)
	}
	if e.mismatchReason != "" {
		return false
	}

	if e.User != "" {
		user, pass, ok := req.BasicAuth()
		if !ok || user != e.User || pass != e.Password {
			e.mismatchReason = "basic auth mismatch"
			return false
		}
	}

	actual := req.URL.Query()
	for key, values := range e.URL.Query() {
		got, ok := actual[key]
		if !ok {
			e.mismatchReason = "missing query key " + key
			return false
		}
		if strings.Join(got, ",") != strings.Join(values, ",") {
			e.mismatchReason = fmt.Sprintf("query %s: want %v got %v", key, values, got)
			return false
		}
	}
	return true
}

func (e *Expectation) response(req *http.Request) *http.Response {
	status := e.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode:    status,
		Body:          io.NopCloser(bytes.NewReader(e.RespBody)),
		Header:        e.Headers,
		Request:       req,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		ContentLength: int64(len(e.RespBody)),
	}
}
