package httpclient_test

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prilive-com/circlebot/internal/httpclient"
)

func TestNew_AppliesConfig(t *testing.T) {
	cfg := httpclient.DefaultConfig()
	cfg.RequestTimeout = 40 * time.Second
	cfg.ResponseHeaderTimeout = 35 * time.Second
	cfg.MaxIdleConns = 7

	client := httpclient.New(cfg)

	assert.Equal(t, 40*time.Second, client.Timeout)
	transport := httpclient.Transport(client)
	require.NotNil(t, transport)
	assert.Equal(t, 35*time.Second, transport.ResponseHeaderTimeout)
	assert.Equal(t, 7, transport.MaxIdleConns)
	assert.Equal(t, uint16(tls.VersionTLS12), transport.TLSClientConfig.MinVersion)
	assert.NotNil(t, transport.Proxy)
}

func TestNew_HeaderTimeoutDefaultsToRequestTimeout(t *testing.T) {
	cfg := httpclient.DefaultConfig()
	cfg.ResponseHeaderTimeout = 0

	transport := httpclient.Transport(httpclient.New(cfg))

	assert.Equal(t, cfg.RequestTimeout, transport.ResponseHeaderTimeout)
}

func TestNew_SetsUserAgent(t *testing.T) {
	agents := make(chan string, 2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents <- r.UserAgent()
	}))
	defer server.Close()

	client := httpclient.New(httpclient.DefaultConfig())

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "custom")
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, httpclient.DefaultUserAgent, <-agents)
	assert.Equal(t, "custom", <-agents, "an explicit agent is kept")
}

func TestNew_WithoutUserAgentUsesBareTransport(t *testing.T) {
	cfg := httpclient.DefaultConfig()
	cfg.UserAgent = ""

	_, ok := httpclient.New(cfg).Transport.(*http.Transport)
	assert.True(t, ok)
}
