package idempotency

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
)

// HeaderPair is one response header line. Repeated headers are stored as
// separate pairs in the order they were written.
type HeaderPair struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SavedResponse is the complete HTTP response of a processed request.
type SavedResponse struct {
	StatusCode int
	Headers    []HeaderPair
	Body       []byte
}

// WriteTo replays the response on w.
func (r SavedResponse) WriteTo(w http.ResponseWriter) error {
	for _, h := range r.Headers {
		w.Header().Add(h.Name, h.Value)
	}
	w.WriteHeader(r.StatusCode)
	if _, err := w.Write(r.Body); err != nil {
		return fmt.Errorf("write saved body: %w", err)
	}
	return nil
}

// Header returns the first value saved for name, or "".
func (r SavedResponse) Header(name string) string {
	canonical := http.CanonicalHeaderKey(name)
	for _, h := range r.Headers {
		if http.CanonicalHeaderKey(h.Name) == canonical {
			return h.Value
		}
	}
	return ""
}

func encodeHeaders(headers []HeaderPair) ([]byte, error) {
	if headers == nil {
		headers = []HeaderPair{}
	}
	return json.Marshal(headers)
}

func decodeHeaders(raw []byte) ([]HeaderPair, error) {
	var headers []HeaderPair
	if len(raw) == 0 {
		return headers, nil
	}
	if err := json.Unmarshal(raw, &headers); err != nil {
		return nil, fmt.Errorf("decode saved headers: %w", err)
	}
	return headers, nil
}

// Recorder is an http.ResponseWriter that captures a handler's output so it
// can be saved and replayed later.
type Recorder struct {
	header      http.Header
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{header: make(http.Header)}
}

func (r *Recorder) Header() http.Header {
	return r.header
}

func (r *Recorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.status = status
	r.wroteHeader = true
}

func (r *Recorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.body.Write(b)
}

// Result returns the captured response. Header names are emitted in sorted
// order so equal handler output always produces equal saved bytes.
func (r *Recorder) Result() SavedResponse {
	status := r.status
	if !r.wroteHeader {
		status = http.StatusOK
	}

	names := make([]string, 0, len(r.header))
	for name := range r.header {
		names = append(names, name)
	}
	sort.Strings(names)

	var headers []HeaderPair
	for _, name := range names {
		for _, value := range r.header[name] {
			headers = append(headers, HeaderPair{Name: name, Value: value})
		}
	}

	return SavedResponse{
		StatusCode: status,
		Headers:    headers,
		Body:       bytes.Clone(r.body.Bytes()),
	}
}
