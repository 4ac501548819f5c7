package testhelpers

import (
	"bufio"
	"encoding/binary"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	socks5 "github.com/armon/go-socks5"
	"github.com/elazarl/goproxy"
)

// WriteLines writes lines to a temporary file and returns its path
func WriteLines(t *testing.T, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

// NewJudge starts a judge endpoint that always answers with status and body
func NewJudge(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

// NewEchoJudge starts a judge endpoint that echoes the caller address, the
// way public proxy judges report REMOTE_ADDR.
func NewEchoJudge(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, _ := net.SplitHostPort(r.RemoteAddr)
		io.WriteString(w, "REMOTE_ADDR = "+host+"\n")
	}))
	t.Cleanup(server.Close)
	return server
}

// NewHTTPProxy starts a forwarding HTTP proxy and returns its host:port
func NewHTTPProxy(t *testing.T) string {
	t.Helper()
	proxy := goproxy.NewProxyHttpServer()
	server := httptest.NewServer(proxy)
	t.Cleanup(server.Close)
	return strings.TrimPrefix(server.URL, "http://")
}

// NewSOCKS5Proxy starts a SOCKS5 proxy and returns its host:port
func NewSOCKS5Proxy(t *testing.T) string {
	t.Helper()
	server, err := socks5.New(&socks5.Config{})
	if err != nil {
		t.Fatalf("Failed to create SOCKS5 server: %v", err)
	}
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	t.Cleanup(func() { listener.Close() })
	go server.Serve(listener)
	return listener.Addr().String()
}

// NewSOCKS4Proxy starts a minimal SOCKS4/4a proxy and returns its host:port
func NewSOCKS4Proxy(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go serveSOCKS4(conn)
		}
	}()
	return listener.Addr().String()
}

func serveSOCKS4(conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)

	header := make([]byte, 8)
	if _, err := io.ReadFull(reader, header); err != nil || header[0] != 4 || header[1] != 1 {
		return
	}
	port := binary.BigEndian.Uint16(header[2:4])
	ip := net.IP(header[4:8])

	if _, err := reader.ReadString(0); err != nil {
		return
	}

	host := ip.String()
	// 0.0.0.x marks a SOCKS4a request carrying the hostname after the user ID
	if ip[0] == 0 && ip[1] == 0 && ip[2] == 0 && ip[3] != 0 {
		name, err := reader.ReadString(0)
		if err != nil {
			return
		}
		host = strings.TrimSuffix(name, "\x00")
	}

	upstream, err := net.Dial("tcp", net.JoinHostPort(host, strconv.Itoa(int(port))))
	if err != nil {
		conn.Write([]byte{0, 0x5b, 0, 0, 0, 0, 0, 0})
		return
	}
	defer upstream.Close()

	if _, err := conn.Write([]byte{0, 0x5a, 0, 0, 0, 0, 0, 0}); err != nil {
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		io.Copy(upstream, reader)
		if tcp, ok := upstream.(*net.TCPConn); ok {
			tcp.CloseWrite()
		}
	}()
	go func() {
		defer wg.Done()
		io.Copy(conn, upstream)
		if tcp, ok := conn.(*net.TCPConn); ok {
			tcp.CloseWrite()
		}
	}()
	wg.Wait()
}

// NewBlackHole starts a listener that accepts connections and never answers.
// It returns the host:port.
func NewBlackHole(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	var mu sync.Mutex
	var conns []net.Conn
	t.Cleanup(func() {
		listener.Close()
		mu.Lock()
		for _, c := range conns {
			c.Close()
		}
		mu.Unlock()
	})

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()
	return listener.Addr().String()
}

// ClosedAddr returns a loopback host:port with nothing listening on it
func ClosedAddr(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()
	return addr
}
