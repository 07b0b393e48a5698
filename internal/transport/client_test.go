package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// TestNewClient tests the Client constructor.
func TestNewClient(t *testing.T) {
	t.Parallel()

	t.Run("empty address dials directly", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient("", 30*time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.UsesProxy() {
			t.Error("expected a direct client")
		}
		if client.ProxyAddress() != "" {
			t.Errorf("expected empty proxy address, got %q", client.ProxyAddress())
		}
	})

	t.Run("valid proxy address creates SOCKS5 client", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient("127.0.0.1:9050", 30*time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !client.UsesProxy() {
			t.Error("expected a proxied client")
		}
		if client.ProxyAddress() != "127.0.0.1:9050" {
			t.Errorf("ProxyAddress() = %q, expected %q", client.ProxyAddress(), "127.0.0.1:9050")
		}
	})

	invalid := []string{"127.0.0.1", ":9050", "127.0.0.1:", "127.0.0.1:9050:extra", "localhost:70000"}
	for _, addr := range invalid {
		t.Run("rejects "+addr, func(t *testing.T) {
			t.Parallel()

			_, err := NewClient(addr, 30*time.Second)
			if !errors.Is(err, ErrInvalidProxyAddress) {
				t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
			}
		})
	}
}

// TestIsValidProxyAddress tests the proxy address validation function.
func TestIsValidProxyAddress(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		address  string
		expected bool
	}{
		{"valid IPv4 with port", "127.0.0.1:9050", true},
		{"valid localhost with port", "localhost:9050", true},
		{"valid hostname with port", "proxy.example.com:1080", true},
		{"valid IPv6 with port", "[::1]:9050", true},
		{"empty string", "", false},
		{"no port", "127.0.0.1", false},
		{"empty host", ":9050", false},
		{"empty port", "127.0.0.1:", false},
		{"port zero", "127.0.0.1:0", false},
		{"port not a number", "127.0.0.1:tor", false},
		{"only colon", ":", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			result := isValidProxyAddress(tc.address)
			if result != tc.expected {
				t.Errorf("isValidProxyAddress(%q) = %v, expected %v", tc.address, result, tc.expected)
			}
		})
	}
}

// TestNewHTTPClient tests HTTP client configuration.
func TestNewHTTPClient(t *testing.T) {
	t.Parallel()

	t.Run("proxied client", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient("127.0.0.1:9050", 60*time.Second)
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}
		httpClient := client.NewHTTPClient()

		if httpClient.Timeout != 60*time.Second {
			t.Errorf("Timeout = %v, expected %v", httpClient.Timeout, 60*time.Second)
		}
		if httpClient.Jar == nil {
			t.Error("expected non-nil cookie jar")
		}
		if httpClient.CheckRedirect == nil {
			t.Error("expected CheckRedirect to be set")
		}

		transport, ok := httpClient.Transport.(*http.Transport)
		if !ok {
			t.Fatal("expected transport to be *http.Transport")
		}
		if transport.MaxIdleConnsPerHost != 2 {
			t.Errorf("expected MaxIdleConnsPerHost 2, got %d", transport.MaxIdleConnsPerHost)
		}
		if !transport.DisableCompression {
			t.Error("expected transport compression to be disabled")
		}
		if transport.TLSClientConfig.InsecureSkipVerify {
			t.Error("expected TLS verification by default")
		}
	})

	t.Run("insecure option", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient("", time.Second, WithInsecureSkipVerify(true))
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}
		transport, ok := client.NewHTTPClient().Transport.(*http.Transport)
		if !ok {
			t.Fatal("expected transport to be *http.Transport")
		}
		if !transport.TLSClientConfig.InsecureSkipVerify {
			t.Error("expected InsecureSkipVerify to be true")
		}
	})

	t.Run("stops after too many redirects", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			http.Redirect(w, r, "/again", http.StatusFound)
		}))
		defer server.Close()

		client, err := NewClient("", 5*time.Second)
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}

		resp, err := client.NewHTTPClient().Get(server.URL) //nolint:noctx // test code
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusFound {
			t.Errorf("expected the last redirect response, got %d", resp.StatusCode)
		}
		if got := int(hits.Load()); got != maxRedirects {
			t.Errorf("expected %d requests, got %d", maxRedirects, got)
		}
	})
}

// TestHTTPClientWithConfig tests cookie and header injection.
func TestHTTPClientWithConfig(t *testing.T) {
	t.Parallel()

	received := make(chan http.Header, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	client, err := NewClient("", 5*time.Second)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	t.Run("without config the transport is not wrapped", func(t *testing.T) {
		t.Parallel()

		httpClient := client.HTTPClientWithConfig("", nil)
		if _, ok := httpClient.Transport.(*http.Transport); !ok {
			t.Errorf("expected plain transport, got %T", httpClient.Transport)
		}
	})

	t.Run("injects cookie and headers", func(t *testing.T) {
		t.Parallel()

		httpClient := client.HTTPClientWithConfig("session=test123", map[string]string{
			"X-Custom-Header": "custom-value",
		})

		resp, err := httpClient.Get(server.URL) //nolint:noctx // test code
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		resp.Body.Close()

		header := <-received
		if got := header.Get("Cookie"); got != "session=test123" {
			t.Errorf("expected cookie 'session=test123', got %q", got)
		}
		if got := header.Get("X-Custom-Header"); got != "custom-value" {
			t.Errorf("expected custom header, got %q", got)
		}
	})
}

// TestHeaderInjectingTransport tests merging with an existing cookie.
func TestHeaderInjectingTransport(t *testing.T) {
	t.Parallel()

	var gotCookie string
	base := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		gotCookie = req.Header.Get("Cookie")
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: req}, nil
	})

	transport := &headerInjectingTransport{base: base, cookie: "b=2"}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://example.test/", nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Cookie", "a=1")

	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if gotCookie != "a=1; b=2" {
		t.Errorf("expected merged cookie, got %q", gotCookie)
	}
	if req.Header.Get("Cookie") != "a=1" {
		t.Error("expected the original request to be left untouched")
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// TestProxyStatus tests ProxyStatus String and Error methods.
func TestProxyStatus(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		status   ProxyStatus
		expected string
		err      error
	}{
		{ProxyStatusOK, "OK", nil},
		{ProxyStatusWrongType, "wrong type (not SOCKS5)", ErrProxyWrongType},
		{ProxyStatusCannotConnect, "cannot connect", ErrProxyCannotConnect},
		{ProxyStatusTimeout, "timeout", ErrProxyTimeout},
	}

	for _, tc := range testCases {
		if tc.status.String() != tc.expected {
			t.Errorf("ProxyStatus(%d).String() = %q, expected %q", tc.status, tc.status.String(), tc.expected)
		}
		if !errors.Is(tc.status.Error(), tc.err) {
			t.Errorf("ProxyStatus(%d).Error() = %v, expected %v", tc.status, tc.status.Error(), tc.err)
		}
	}

	if ProxyStatus(99).String() != "unknown" {
		t.Error("expected unknown status string")
	}
	if ProxyStatus(99).Error() == nil {
		t.Error("expected error for unknown status")
	}
}

// mockProxy accepts one connection and runs handle on it.
func mockProxy(t *testing.T, handle func(net.Conn)) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to start mock server: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}()

	return listener.Addr().String()
}

// TestCheckConnection tests the SOCKS5 proxy verification.
func TestCheckConnection(t *testing.T) {
	t.Parallel()

	t.Run("direct client is always OK", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient("", time.Second)
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}
		if status := client.CheckConnection(context.Background()); status != ProxyStatusOK {
			t.Errorf("expected ProxyStatusOK, got %v", status)
		}
	})

	t.Run("returns CannotConnect for non-existent proxy", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient("127.0.0.1:59999", 30*time.Second)
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}
		if status := client.CheckConnection(context.Background()); status != ProxyStatusCannotConnect {
			t.Errorf("expected ProxyStatusCannotConnect, got %v", status)
		}
	})

	t.Run("returns WrongType for non-SOCKS5 server", func(t *testing.T) {
		t.Parallel()

		addr := mockProxy(t, func(conn net.Conn) {
			buf := make([]byte, 3)
			_, _ = conn.Read(buf)
			_, _ = conn.Write([]byte("HTTP/1.1 200 OK\r\n\r\n"))
		})

		client, err := NewClient(addr, 30*time.Second)
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}
		if status := client.CheckConnection(context.Background()); status != ProxyStatusWrongType {
			t.Errorf("expected ProxyStatusWrongType, got %v", status)
		}
	})

	t.Run("returns WrongType for SOCKS5 requiring auth", func(t *testing.T) {
		t.Parallel()

		addr := mockProxy(t, func(conn net.Conn) {
			buf := make([]byte, 3)
			_, _ = conn.Read(buf)
			_, _ = conn.Write([]byte{0x05, 0xFF})
		})

		client, err := NewClient(addr, 30*time.Second)
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}
		if status := client.CheckConnection(context.Background()); status != ProxyStatusWrongType {
			t.Errorf("expected ProxyStatusWrongType, got %v", status)
		}
	})

	t.Run("returns OK for valid SOCKS5 proxy", func(t *testing.T) {
		t.Parallel()

		addr := mockProxy(t, func(conn net.Conn) {
			buf := make([]byte, 3)
			_, _ = conn.Read(buf)
			_, _ = conn.Write([]byte{0x05, 0x00})

			connectBuf := make([]byte, 256)
			_, _ = conn.Read(connectBuf)
			// Host unreachable is still a SOCKS5 answer.
			_, _ = conn.Write([]byte{0x05, 0x04, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
		})

		client, err := NewClient(addr, 30*time.Second)
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}
		if status := client.CheckConnection(context.Background()); status != ProxyStatusOK {
			t.Errorf("expected ProxyStatusOK, got %v", status)
		}
	})

	t.Run("returns WrongType for wrong version in CONNECT response", func(t *testing.T) {
		t.Parallel()

		addr := mockProxy(t, func(conn net.Conn) {
			buf := make([]byte, 3)
			_, _ = conn.Read(buf)
			_, _ = conn.Write([]byte{0x05, 0x00})

			connectBuf := make([]byte, 256)
			_, _ = conn.Read(connectBuf)
			_, _ = conn.Write([]byte{0x04, 0x00, 0x00, 0x01})
		})

		client, err := NewClient(addr, 30*time.Second)
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}
		if status := client.CheckConnection(context.Background()); status != ProxyStatusWrongType {
			t.Errorf("expected ProxyStatusWrongType, got %v", status)
		}
	})

	t.Run("handles context cancellation", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient("127.0.0.1:59998", 30*time.Second)
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		status := client.CheckConnection(ctx)
		if status != ProxyStatusCannotConnect && status != ProxyStatusTimeout {
			t.Errorf("expected ProxyStatusCannotConnect or ProxyStatusTimeout, got %v", status)
		}
	})
}
