// Package autoconnect provisions a WireGuard tunnel from a provisioning server.
//
// The client dials the server over TCP and exchanges line-oriented messages: HELLO
// obtains a tunnel address, PING obtains the server's peer parameters, and BYE asks the
// server to forget the client's public key. The result of a successful HELLO/PING is a
// wg-quick style configuration the host can import.
package autoconnect

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
)

var (
	ErrMissingServer = errors.New("autoconnect: server address or port is empty")
	ErrRejected      = errors.New("autoconnect: server rejected request")
	ErrIncomplete    = errors.New("autoconnect: reply is missing fields")
)

// Options tunes the client.
type Options struct {
	DialTimeout time.Duration
	IOTimeout   time.Duration
	// Attempts bounds how many times a full exchange is tried.
	Attempts   int
	RetryDelay time.Duration
	// ListenPort is advertised to the server and written into the generated config.
	ListenPort int
	// HardwareAddr overrides the interface lookup used for the macaddr field.
	HardwareAddr func() net.HardwareAddr
}

// DefaultOptions returns the values the Android backend uses.
func DefaultOptions() Options {
	return Options{
		DialTimeout: 3 * time.Second,
		IOTimeout:   10 * time.Second,
		Attempts:    2,
		RetryDelay:  2 * time.Second,
		ListenPort:  51820,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.DialTimeout <= 0 {
		o.DialTimeout = d.DialTimeout
	}
	if o.IOTimeout <= 0 {
		o.IOTimeout = d.IOTimeout
	}
	if o.Attempts <= 0 {
		o.Attempts = d.Attempts
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = 0
	}
	if o.ListenPort <= 0 {
		o.ListenPort = d.ListenPort
	}
	if o.HardwareAddr == nil {
		o.HardwareAddr = firstHardwareAddr
	}
	return o
}

// Client talks to one provisioning server per call. It is safe for concurrent use.
type Client struct {
	opts Options
	log  logrus.FieldLogger
}

// NewClient creates a Client. Zero option fields take their defaults.
func NewClient(opts Options, log logrus.FieldLogger) *Client {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		opts: opts.withDefaults(),
		log:  log.WithField("component", "autoconnect"),
	}
}

// Up registers publicKey with the server and returns a config using privateKey.
func (c *Client) Up(ctx context.Context, serverIP, port, privateKey, publicKey string) (string, error) {
	if serverIP == "" || port == "" {
		c.log.WithField("at", "autoconnect.Up").Debug("server_address_empty")
		return "", ErrMissingServer
	}
	addr := net.JoinHostPort(serverIP, port)

	var config string
	err := c.retry(ctx, addr, func(s *session) error {
		hello, err := s.exchange(s.request(CmdHello, publicKey))
		if err != nil {
			return err
		}
		if hello.VPNIP == "" {
			return oops.In("autoconnect").With("cmd", hello.Cmd).Wrap(ErrIncomplete)
		}

		ping := s.request(CmdPing, publicKey)
		ping.VPNIP = hello.VPNIP
		ping.VPNNetmask = hello.VPNNetmask
		pong, err := s.exchange(ping)
		if err != nil {
			return err
		}
		if pong.PublicKey == "" || pong.EndpointIP == "" || pong.EndpointPort == "" {
			return oops.In("autoconnect").With("cmd", pong.Cmd).Wrap(ErrIncomplete)
		}

		config = renderConfig(privateKey, c.opts.ListenPort, hello.VPNIP, pong)
		return nil
	})
	if err != nil {
		c.log.WithFields(logrus.Fields{"at": "autoconnect.Up", "server": addr, "error": err}).Error("auto_connect_failed")
		return "", err
	}
	c.log.WithFields(logrus.Fields{"at": "autoconnect.Up", "server": addr}).Debug("auto_connect_config_received")
	return config, nil
}

// Down asks the server to drop publicKey. Any reply to BYE, NOK included, counts as
// success.
func (c *Client) Down(ctx context.Context, serverIP, port, publicKey string) error {
	if serverIP == "" || port == "" {
		return ErrMissingServer
	}
	addr := net.JoinHostPort(serverIP, port)

	err := c.retry(ctx, addr, func(s *session) error {
		bye := s.request(CmdBye, publicKey)
		bye.VPNIP = "0.0.0.0"
		bye.VPNNetmask = "0.0.0.0"
		_, err := s.exchange(bye)
		if errors.Is(err, ErrRejected) {
			// A reply of any kind acknowledges BYE.
			s.log.WithField("at", "autoconnect.Down").Debug("bye_rejected")
			return nil
		}
		return err
	})
	if err != nil {
		c.log.WithFields(logrus.Fields{"at": "autoconnect.Down", "server": addr, "error": err}).Error("auto_disconnect_failed")
		return err
	}
	return nil
}

// retry runs fn over a fresh connection up to Attempts times.
func (c *Client) retry(ctx context.Context, addr string, fn func(*session) error) error {
	var err error
	for attempt := 1; attempt <= c.opts.Attempts; attempt++ {
		if attempt > 1 {
			c.log.WithFields(logrus.Fields{"at": "autoconnect.retry", "server": addr, "attempt": attempt}).Debug("retrying")
			select {
			case <-ctx.Done():
				return oops.In("autoconnect").Wrap(ctx.Err())
			case <-time.After(c.opts.RetryDelay):
			}
		}
		err = c.attempt(ctx, addr, fn)
		if err == nil || errors.Is(err, ErrRejected) {
			return err
		}
	}
	return err
}

func (c *Client) attempt(ctx context.Context, addr string, fn func(*session) error) error {
	dialer := net.Dialer{Timeout: c.opts.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return oops.In("autoconnect").With("server", addr).Wrapf(err, "dial")
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(c.opts.IOTimeout)); err != nil {
		return oops.In("autoconnect").Wrapf(err, "set deadline")
	}
	s := &session{
		conn:   conn,
		reader: bufio.NewReader(conn),
		local:  localIdentity(conn.LocalAddr(), c.opts.HardwareAddr()),
		port:   c.opts.ListenPort,
		log:    c.log.WithField("server", addr),
	}
	return fn(s)
}

type session struct {
	conn   net.Conn
	reader *bufio.Reader
	local  identity
	port   int
	log    logrus.FieldLogger
}

func (s *session) request(cmd Command, publicKey string) Message {
	return Message{
		Cmd:          cmd,
		MAC:          s.local.mac,
		VPNIP:        "0.0.0.0",
		VPNNetmask:   "0.0.0.0",
		PublicKey:    publicKey,
		EndpointIP:   s.local.ip,
		EndpointPort: fmt.Sprint(s.port),
		AllowedIPs:   s.local.allowedIPs(),
	}
}

// exchange sends req and reads one reply. A NOK reply is ErrRejected.
func (s *session) exchange(req Message) (Message, error) {
	payload, err := req.MarshalText()
	if err != nil {
		return Message{}, err
	}
	if _, err := s.conn.Write(payload); err != nil {
		return Message{}, oops.In("autoconnect").With("cmd", req.Cmd).Wrapf(err, "write")
	}
	s.log.WithField("cmd", req.Cmd).Debug("message_sent")

	reply, err := ReadMessage(s.reader)
	if err != nil {
		return Message{}, err
	}
	s.log.WithField("cmd", reply.Cmd).Debug("message_received")
	if reply.Cmd == CmdNOK {
		return reply, oops.In("autoconnect").With("cmd", req.Cmd).Wrap(ErrRejected)
	}
	return reply, nil
}

// renderConfig builds the wg-quick config for the tunnel.
func renderConfig(privateKey string, listenPort int, address string, peer Message) string {
	if !strings.Contains(address, "/") {
		address += "/32"
	}
	var b strings.Builder
	b.WriteString("[Interface]\n")
	fmt.Fprintf(&b, "PrivateKey = %s\n", privateKey)
	fmt.Fprintf(&b, "ListenPort = %d\n", listenPort)
	fmt.Fprintf(&b, "Address = %s\n", address)
	b.WriteString("\n[Peer]\n")
	fmt.Fprintf(&b, "PublicKey = %s\n", peer.PublicKey)
	if peer.AllowedIPs != "" {
		fmt.Fprintf(&b, "AllowedIPs = %s\n", peer.AllowedIPs)
	}
	fmt.Fprintf(&b, "Endpoint = %s\n", net.JoinHostPort(peer.EndpointIP, peer.EndpointPort))
	return b.String()
}
