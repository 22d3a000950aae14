package ssh

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/imamik/certzner/internal/util/keygen"
)

// generateTestKey generates a test RSA key pair for use in tests.
func generateTestKey(t *testing.T) *keygen.KeyPair {
	t.Helper()
	keyPair, err := keygen.GenerateRSAKeyPair(2048)
	require.NoError(t, err)
	return keyPair
}

type execResult struct {
	stdout string
	stderr string
	status uint32
}

// testServer is a minimal in-process SSH server that answers exec requests.
type testServer struct {
	mu       sync.Mutex
	commands []string
	handler  func(cmd string) execResult
}

func (s *testServer) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// startServer listens on a random loopback port and returns the port.
func startServer(t *testing.T, handler func(cmd string) execResult) (*testServer, int) {
	t.Helper()

	_, hostPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	hostSigner, err := ssh.NewSignerFromKey(hostPriv)
	require.NoError(t, err)

	cfg := &ssh.ServerConfig{
		PublicKeyCallback: func(ssh.ConnMetadata, ssh.PublicKey) (*ssh.Permissions, error) {
			return &ssh.Permissions{}, nil
		},
	}
	cfg.AddHostKey(hostSigner)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	srv := &testServer{handler: handler}
	go func() {
		for {
			nc, err := ln.Accept()
			if err != nil {
				return
			}
			go srv.serve(nc, cfg)
		}
	}()

	return srv, ln.Addr().(*net.TCPAddr).Port
}

func (s *testServer) serve(nc net.Conn, cfg *ssh.ServerConfig) {
	_, chans, reqs, err := ssh.NewServerConn(nc, cfg)
	if err != nil {
		return
	}
	go ssh.DiscardRequests(reqs)

	for nch := range chans {
		if nch.ChannelType() != "session" {
			_ = nch.Reject(ssh.UnknownChannelType, "unsupported")
			continue
		}
		ch, creqs, err := nch.Accept()
		if err != nil {
			continue
		}
		go func() {
			for req := range creqs {
				if req.Type != "exec" {
					_ = req.Reply(false, nil)
					continue
				}
				var payload struct{ Command string }
				_ = ssh.Unmarshal(req.Payload, &payload)
				_ = req.Reply(true, nil)

				s.mu.Lock()
				s.commands = append(s.commands, payload.Command)
				s.mu.Unlock()

				res := s.handler(payload.Command)
				_, _ = io.WriteString(ch, res.stdout)
				_, _ = io.WriteString(ch.Stderr(), res.stderr)
				_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{res.status}))
				_ = ch.Close()
			}
		}()
	}
}

func newTestClient(t *testing.T, port int) *Client {
	t.Helper()
	client, err := NewClient(&Config{
		Host:       "127.0.0.1",
		Port:       port,
		PrivateKey: generateTestKey(t).PrivateKey,
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
	})
	require.NoError(t, err)
	return client
}

func TestNewClient_Validation(t *testing.T) {
	t.Parallel()
	keyPair := generateTestKey(t)

	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{name: "nil config", cfg: nil, wantErr: "config cannot be nil"},
		{name: "empty host", cfg: &Config{PrivateKey: keyPair.PrivateKey}, wantErr: "config host cannot be empty"},
		{name: "empty key", cfg: &Config{Host: "192.0.2.10"}, wantErr: "config private key cannot be empty"},
		{name: "invalid key", cfg: &Config{Host: "192.0.2.10", PrivateKey: []byte("invalid key")}, wantErr: "failed to parse private key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewClient(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewClient_AppliesDefaults(t *testing.T) {
	t.Parallel()
	keyPair := generateTestKey(t)

	cfg := &Config{Host: "192.0.2.10", PrivateKey: keyPair.PrivateKey}
	client, err := NewClient(cfg)
	require.NoError(t, err)

	assert.Equal(t, defaultPort, client.config.Port)
	assert.Equal(t, defaultUser, client.config.User)
	assert.Equal(t, defaultDialTimeout, client.config.DialTimeout)
	assert.Equal(t, defaultMaxRetries, client.config.MaxRetries)
	assert.Equal(t, defaultRetryDelay, client.config.RetryDelay)
	assert.NotNil(t, client.signer)
	assert.Equal(t, "192.0.2.10", client.Host())

	// The caller's struct is left untouched.
	assert.Zero(t, cfg.Port)
	assert.Empty(t, cfg.User)
}

func TestNewClient_CustomConfig(t *testing.T) {
	t.Parallel()
	keyPair := generateTestKey(t)

	client, err := NewClient(&Config{
		Host:        "192.0.2.10",
		Port:        2222,
		User:        "admin",
		PrivateKey:  keyPair.PrivateKey,
		DialTimeout: 5 * time.Second,
		MaxRetries:  3,
		RetryDelay:  2 * time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, 2222, client.config.Port)
	assert.Equal(t, "admin", client.config.User)
	assert.Equal(t, 5*time.Second, client.config.DialTimeout)
	assert.Equal(t, 3, client.config.MaxRetries)
	assert.Equal(t, 2*time.Second, client.config.RetryDelay)
}

func TestExecute(t *testing.T) {
	t.Parallel()

	srv, port := startServer(t, func(cmd string) execResult {
		if cmd == "false" {
			return execResult{stderr: "boom", status: 1}
		}
		return execResult{stdout: "out:" + cmd, stderr: "|err"}
	})
	client := newTestClient(t, port)

	out, err := client.Execute(context.Background(), "cloud-init status --wait")
	require.NoError(t, err)
	assert.Contains(t, out, "out:cloud-init status --wait")
	assert.Contains(t, out, "|err")

	_, err = client.Execute(context.Background(), "false")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command failed on 127.0.0.1")
	assert.Contains(t, err.Error(), "boom")

	assert.Equal(t, []string{"cloud-init status --wait", "false"}, srv.seen())
}

func TestReadFile(t *testing.T) {
	t.Parallel()

	const pem = "-----BEGIN CERTIFICATE-----\nMIIB\n-----END CERTIFICATE-----\n"
	srv, port := startServer(t, func(string) execResult {
		return execResult{stdout: pem, stderr: "warning: ignored"}
	})
	client := newTestClient(t, port)

	data, err := client.ReadFile(context.Background(), "/root/.lego/certificates/a.example.com.crt")
	require.NoError(t, err)
	assert.Equal(t, pem, string(data))
	assert.Equal(t, []string{"cat -- '/root/.lego/certificates/a.example.com.crt'"}, srv.seen())
}

func TestReadFile_Missing(t *testing.T) {
	t.Parallel()

	_, port := startServer(t, func(string) execResult {
		return execResult{stderr: "No such file or directory", status: 1}
	})
	client := newTestClient(t, port)

	_, err := client.ReadFile(context.Background(), "/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read /missing")
}

func TestFileExists(t *testing.T) {
	t.Parallel()

	_, port := startServer(t, func(cmd string) execResult {
		if strings.Contains(cmd, "'/present'") {
			return execResult{stdout: "present\n"}
		}
		return execResult{stdout: "absent\n"}
	})
	client := newTestClient(t, port)

	ok, err := client.FileExists(context.Background(), "/present")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.FileExists(context.Background(), "/absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExecute_ConnectionRefused(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	client := newTestClient(t, port)
	_, err = client.Execute(context.Background(), "true")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to establish SSH connection")
}

func TestExecute_ContextCancelled(t *testing.T) {
	t.Parallel()
	keyPair := generateTestKey(t)

	client, err := NewClient(&Config{
		Host:        "192.0.2.10",
		PrivateKey:  keyPair.PrivateKey,
		MaxRetries:  3,
		RetryDelay:  time.Second,
		DialTimeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.Execute(ctx, "echo test")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQuote(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "/root/a.crt", want: "'/root/a.crt'"},
		{in: "_.example.com", want: "'_.example.com'"},
		{in: "it's", want: `'it'\''s'`},
		{in: "", want: "''"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Quote(tt.in), tt.in)
	}
}
