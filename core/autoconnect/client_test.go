package autoconnect

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer answers provisioning requests with canned replies.
type fakeServer struct {
	t        *testing.T
	ln       net.Listener
	mu       sync.Mutex
	received []Message
	reply    func(req Message) (Message, bool)

	// unterminated drops the newline after each reply's last line.
	unterminated bool
}

func newFakeServer(t *testing.T, reply func(req Message) (Message, bool)) *fakeServer {
	t.Helper()
	return startFakeServer(t, &fakeServer{reply: reply})
}

func startFakeServer(t *testing.T, s *fakeServer) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s.t, s.ln = t, ln
	go s.serve()
	t.Cleanup(func() { _ = ln.Close() })
	return s
}

func (s *fakeServer) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *fakeServer) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		req, err := ReadMessage(r)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.received = append(s.received, req)
		s.mu.Unlock()

		resp, ok := s.reply(req)
		if !ok {
			return
		}
		payload, err := resp.MarshalText()
		if err != nil {
			return
		}
		if s.unterminated {
			payload = bytes.TrimSuffix(payload, []byte("\n"))
		}
		if _, err := conn.Write(payload); err != nil {
			return
		}
	}
}

func (s *fakeServer) hostPort() (string, string) {
	host, port, _ := net.SplitHostPort(s.ln.Addr().String())
	return host, port
}

func (s *fakeServer) requests() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.received...)
}

func provisioningReply(req Message) (Message, bool) {
	switch req.Cmd {
	case CmdHello:
		return Message{Cmd: CmdHello, VPNIP: "10.1.1.100", VPNNetmask: "255.255.0.0"}, true
	case CmdPing:
		return Message{
			Cmd:          CmdPong,
			VPNIP:        req.VPNIP,
			PublicKey:    "c2VydmVyLXB1YmxpYy1rZXktYmFzZTY0LWVuY29kZWQ=",
			EndpointIP:   "192.0.2.10",
			EndpointPort: "51820",
			AllowedIPs:   "10.1.0.0/16",
		}, true
	case CmdBye:
		return Message{Cmd: CmdOK}, true
	}
	return Message{Cmd: CmdNOK}, true
}

func testClient() (*Client, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return NewClient(Options{
		DialTimeout:  time.Second,
		IOTimeout:    2 * time.Second,
		Attempts:     2,
		RetryDelay:   10 * time.Millisecond,
		HardwareAddr: func() net.HardwareAddr { return net.HardwareAddr{0x02, 0xaa, 0xbb, 0xcc, 0xdd, 0xee} },
	}, logger), hook
}

func TestUpProducesConfig(t *testing.T) {
	srv := newFakeServer(t, provisioningReply)
	host, port := srv.hostPort()
	c, _ := testClient()

	cfg, err := c.Up(context.Background(), host, port, "cHJpdmF0ZQ==", "cHVibGlj")
	require.NoError(t, err)
	assert.Equal(t, "[Interface]\n"+
		"PrivateKey = cHJpdmF0ZQ==\n"+
		"ListenPort = 51820\n"+
		"Address = 10.1.1.100/32\n"+
		"\n[Peer]\n"+
		"PublicKey = c2VydmVyLXB1YmxpYy1rZXktYmFzZTY0LWVuY29kZWQ=\n"+
		"AllowedIPs = 10.1.0.0/16\n"+
		"Endpoint = 192.0.2.10:51820\n", cfg)

	reqs := srv.requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, CmdHello, reqs[0].Cmd)
	assert.Equal(t, "cHVibGlj", reqs[0].PublicKey)
	assert.Equal(t, "02-AA-BB-CC-DD-EE", reqs[0].MAC)
	assert.Equal(t, "127.0.0.1", reqs[0].EndpointIP)
	assert.Equal(t, "51820", reqs[0].EndpointPort)
	assert.Equal(t, "10.1.0.0/16,127.0.0.0/16", reqs[0].AllowedIPs)

	assert.Equal(t, CmdPing, reqs[1].Cmd)
	assert.Equal(t, "10.1.1.100", reqs[1].VPNIP)
	assert.Equal(t, "255.255.0.0", reqs[1].VPNNetmask)
}

func TestUpEmptyServer(t *testing.T) {
	c, _ := testClient()
	_, err := c.Up(context.Background(), "", "51820", "a", "b")
	assert.ErrorIs(t, err, ErrMissingServer)
	_, err = c.Up(context.Background(), "127.0.0.1", "", "a", "b")
	assert.ErrorIs(t, err, ErrMissingServer)
}

func TestUpRejected(t *testing.T) {
	srv := newFakeServer(t, func(Message) (Message, bool) { return Message{Cmd: CmdNOK}, true })
	host, port := srv.hostPort()
	c, hook := testClient()

	_, err := c.Up(context.Background(), host, port, "a", "b")
	assert.ErrorIs(t, err, ErrRejected)
	// Rejection is final: one HELLO, no retry.
	assert.Len(t, srv.requests(), 1)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "auto_connect_failed", hook.LastEntry().Message)
}

func TestUpAcceptsUnterminatedReplies(t *testing.T) {
	srv := startFakeServer(t, &fakeServer{reply: provisioningReply, unterminated: true})
	host, port := srv.hostPort()
	c, _ := testClient()

	start := time.Now()
	cfg, err := c.Up(context.Background(), host, port, "cHJpdmF0ZQ==", "cHVibGlj")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), c.opts.IOTimeout, "replies are taken without waiting for the deadline")
	assert.Contains(t, cfg, "Address = 10.1.1.100/32\n")
	assert.Contains(t, cfg, "AllowedIPs = 10.1.0.0/16\n")
	assert.Len(t, srv.requests(), 2)
}

func TestUpIncompletePong(t *testing.T) {
	srv := newFakeServer(t, func(req Message) (Message, bool) {
		if req.Cmd == CmdHello {
			return Message{Cmd: CmdHello, VPNIP: "10.1.1.7"}, true
		}
		return Message{Cmd: CmdPong}, true
	})
	host, port := srv.hostPort()
	c, _ := testClient()

	_, err := c.Up(context.Background(), host, port, "a", "b")
	assert.ErrorIs(t, err, ErrIncomplete)
	// Two attempts, each HELLO then PING.
	assert.Len(t, srv.requests(), 4)
}

func TestUpRetriesAfterDroppedConnection(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := newFakeServer(t, func(req Message) (Message, bool) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return Message{}, false
		}
		return provisioningReply(req)
	})
	host, port := srv.hostPort()
	c, _ := testClient()

	cfg, err := c.Up(context.Background(), host, port, "a", "b")
	require.NoError(t, err)
	assert.Contains(t, cfg, "Address = 10.1.1.100/32")
}

func TestUpUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	host, port, _ := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, ln.Close())

	c, _ := testClient()
	_, err = c.Up(context.Background(), host, port, "a", "b")
	assert.Error(t, err)
}

func TestUpCancelledDuringRetry(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	host, port, _ := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, ln.Close())

	logger, _ := test.NewNullLogger()
	c := NewClient(Options{Attempts: 5, RetryDelay: time.Hour}, logger)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = c.Up(ctx, host, port, "a", "b")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDown(t *testing.T) {
	srv := newFakeServer(t, provisioningReply)
	host, port := srv.hostPort()
	c, _ := testClient()

	require.NoError(t, c.Down(context.Background(), host, port, "cHVibGlj"))
	reqs := srv.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, CmdBye, reqs[0].Cmd)
	assert.Equal(t, "cHVibGlj", reqs[0].PublicKey)
	assert.Equal(t, "0.0.0.0", reqs[0].VPNIP)
}

func TestDownSucceedsOnAnyReply(t *testing.T) {
	srv := newFakeServer(t, func(Message) (Message, bool) { return Message{Cmd: CmdNOK}, true })
	host, port := srv.hostPort()
	c, hook := testClient()

	assert.NoError(t, c.Down(context.Background(), host, port, "k"))
	assert.Len(t, srv.requests(), 1)
	assert.True(t, func() bool {
		for _, e := range hook.AllEntries() {
			if e.Message == "bye_rejected" {
				return true
			}
		}
		return false
	}())
}

func TestDownNoReply(t *testing.T) {
	srv := newFakeServer(t, func(Message) (Message, bool) { return Message{}, false })
	host, port := srv.hostPort()
	c, _ := testClient()

	assert.Error(t, c.Down(context.Background(), host, port, "k"))
	assert.Len(t, srv.requests(), 2)
}

func TestDefaultsFillZeroOptions(t *testing.T) {
	c := NewClient(Options{}, nil)
	d := DefaultOptions()
	assert.Equal(t, d.DialTimeout, c.opts.DialTimeout)
	assert.Equal(t, d.Attempts, c.opts.Attempts)
	assert.Equal(t, d.ListenPort, c.opts.ListenPort)
	assert.NotNil(t, c.opts.HardwareAddr)
}

func TestRenderConfigIPv6Endpoint(t *testing.T) {
	cfg := renderConfig("priv", 51820, "10.1.1.2/24", Message{
		PublicKey:    "pub",
		EndpointIP:   "2001:db8::1",
		EndpointPort: "51820",
	})
	assert.Contains(t, cfg, "Address = 10.1.1.2/24\n")
	assert.Contains(t, cfg, "Endpoint = [2001:db8::1]:51820\n")
	assert.NotContains(t, cfg, "AllowedIPs")
}

func TestIdentityFallbacks(t *testing.T) {
	id := localIdentity(nil, nil)
	assert.Equal(t, fallbackMAC, id.mac)
	assert.Equal(t, "0.0.0.0", id.ip)
	assert.Equal(t, "10.1.0.0/16,0.0.0.0/16", id.allowedIPs())

	id = localIdentity(&net.TCPAddr{IP: net.ParseIP("192.168.7.20")}, net.HardwareAddr{1, 2, 3, 4, 5, 6})
	assert.Equal(t, "01-02-03-04-05-06", id.mac)
	assert.Equal(t, "10.1.0.0/16,192.168.0.0/16", id.allowedIPs())
}
