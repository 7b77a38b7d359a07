package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// MockTelegramServer stands in for the Bot API. Every request is captured;
// requests without a registered handler get {"ok":true,"result":{}}.
type MockTelegramServer struct {
	server   *httptest.Server
	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	captures []Capture
}

// NewMockServer starts a server that is closed when the test ends.
func NewMockServer(t *testing.T) *MockTelegramServer {
	t.Helper()
	m := &MockTelegramServer{handlers: make(map[string]http.HandlerFunc)}
	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(m.server.Close)
	return m
}

func routeKey(method, path string) string { return method + " " + path }

func (m *MockTelegramServer) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	_ = r.Body.Close()
	r.Body = io.NopCloser(strings.NewReader(string(body)))

	m.mu.Lock()
	m.captures = append(m.captures, Capture{
		Method:      r.Method,
		Path:        r.URL.Path,
		Query:       r.URL.Query(),
		Body:        body,
		ContentType: r.Header.Get("Content-Type"),
	})
	handler := m.handlers[routeKey(r.Method, r.URL.Path)]
	m.mu.Unlock()

	if handler == nil {
		ReplyOK(w, map[string]any{})
		return
	}
	handler(w, r)
}

// OnMethod registers handler for an HTTP method and exact path.
func (m *MockTelegramServer) OnMethod(method, path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[routeKey(method, path)] = handler
}

// On registers handler for POSTs to path, which is how the sender calls
// every API method.
func (m *MockTelegramServer) On(path string, handler http.HandlerFunc) {
	m.OnMethod(http.MethodPost, path, handler)
}

// OnFile registers handler for downloads of filePath.
func (m *MockTelegramServer) OnFile(token, filePath string, handler http.HandlerFunc) {
	m.OnMethod(http.MethodGet, "/file/bot"+token+"/"+filePath, handler)
}

// BaseURL is the API root to hand to clients under test.
func (m *MockTelegramServer) BaseURL() string {
	return m.server.URL
}

// LastCapture returns the latest request, or nil.
func (m *MockTelegramServer) LastCapture() *Capture {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.captures) == 0 {
		return nil
	}
	c := m.captures[len(m.captures)-1]
	return &c
}

func (m *MockTelegramServer) CaptureCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.captures)
}

// CapturesFor returns the requests made to one API method, such as
// "sendSticker", in arrival order.
func (m *MockTelegramServer) CapturesFor(method string) []Capture {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Capture
	for _, c := range m.captures {
		if strings.HasSuffix(c.Path, "/"+method) {
			out = append(out, c)
		}
	}
	return out
}
