// Package httpclient is a small JSON request builder over a pooled
// *http.Transport, adapted from the teacher's internal http client down
// to what the provider adapters need: no multipart uploads, no custom
// DNS dial context, no SSE streaming (every provider here answers with
// a single JSON body).
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	transportPool = map[string]*http.Transport{}
	poolMutex     sync.RWMutex
)

func getTransport(isHTTPS bool) *http.Transport {
	key := "https"
	if !isHTTPS {
		key = "http"
	}

	poolMutex.RLock()
	if tr, ok := transportPool[key]; ok {
		poolMutex.RUnlock()
		return tr
	}
	poolMutex.RUnlock()

	poolMutex.Lock()
	defer poolMutex.Unlock()
	if tr, ok := transportPool[key]; ok {
		return tr
	}

	tr := &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   30 * time.Second,
		ResponseHeaderTimeout: 300 * time.Second,
		ExpectContinueTimeout: 30 * time.Second,
	}
	transportPool[key] = tr
	return tr
}

// Request builds a single outbound HTTP call.
type Request struct {
	url     string
	headers http.Header
	ctx     context.Context
	timeout time.Duration
}

// New starts a request builder for url.
func New(url string) *Request {
	return &Request{url: url, headers: http.Header{}, timeout: 300 * time.Second}
}

// SetHeader sets a request header, overwriting any previous value.
func (r *Request) SetHeader(name, value string) *Request {
	r.headers.Set(name, value)
	return r
}

// WithContext attaches a context to the eventual request.
func (r *Request) WithContext(ctx context.Context) *Request {
	r.ctx = ctx
	return r
}

// WithTimeout overrides the client timeout for this single call.
func (r *Request) WithTimeout(d time.Duration) *Request {
	r.timeout = d
	return r
}

// Response is the outcome of a Send.
type Response struct {
	StatusCode int
	Body       []byte
	Err        error
}

// JSON unmarshals the response body into v.
func (resp *Response) JSON(v interface{}) error {
	if resp.Err != nil {
		return resp.Err
	}
	return json.Unmarshal(resp.Body, v)
}

// Post sends data JSON-encoded as the request body.
func (r *Request) Post(data interface{}) *Response {
	return r.send(http.MethodPost, data)
}

// Get issues a GET request with no body.
func (r *Request) Get() *Response {
	return r.send(http.MethodGet, nil)
}

func (r *Request) send(method string, data interface{}) *Response {
	var body []byte
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return &Response{Err: fmt.Errorf("httpclient: encode request: %w", err)}
		}
		body = encoded
		if r.headers.Get("Content-Type") == "" {
			r.headers.Set("Content-Type", "application/json")
		}
	}

	req, err := http.NewRequest(method, r.url, bytes.NewReader(body))
	if err != nil {
		return &Response{Err: fmt.Errorf("httpclient: build request: %w", err)}
	}
	req.Header = r.headers
	if r.ctx != nil {
		req = req.WithContext(r.ctx)
	}

	isHTTPS := strings.HasPrefix(r.url, "https://")
	client := &http.Client{Transport: getTransport(isHTTPS), Timeout: r.timeout}

	resp, err := client.Do(req)
	if err != nil {
		return &Response{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Response{StatusCode: resp.StatusCode, Err: fmt.Errorf("httpclient: read response: %w", err)}
	}

	return &Response{StatusCode: resp.StatusCode, Body: respBody}
}
