package autoconnect

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/samber/oops"
)

// Command is the value of a message's cmd line.
type Command string

const (
	CmdHello Command = "HELLO"
	CmdPing  Command = "PING"
	CmdPong  Command = "PONG"
	CmdBye   Command = "BYE"
	CmdOK    Command = "OK"
	CmdNOK   Command = "NOK"
)

const (
	keyCmd        = "cmd"
	keyMAC        = "macaddr"
	keyVPNIP      = "vpnip"
	keyVPNNetmask = "vpnnetmask"
	keyPublicKey  = "publickey"
	keyEPIP       = "epip"
	keyEPPort     = "epport"
	keyAllowedIPs = "allowedips"

	separator = ":="
)

// fieldOrder is the order fields appear on the wire.
var fieldOrder = []string{keyCmd, keyMAC, keyVPNIP, keyVPNNetmask, keyPublicKey, keyEPIP, keyEPPort, keyAllowedIPs}

var (
	ErrShortMessage = errors.New("autoconnect: short message")
	ErrNoCommand    = errors.New("autoconnect: message has no cmd")
)

// Message is one provisioning request or reply: eight "key:=value" lines.
type Message struct {
	Cmd          Command
	MAC          string
	VPNIP        string
	VPNNetmask   string
	PublicKey    string
	EndpointIP   string
	EndpointPort string
	AllowedIPs   string
}

func (m *Message) field(key string) *string {
	switch key {
	case keyMAC:
		return &m.MAC
	case keyVPNIP:
		return &m.VPNIP
	case keyVPNNetmask:
		return &m.VPNNetmask
	case keyPublicKey:
		return &m.PublicKey
	case keyEPIP:
		return &m.EndpointIP
	case keyEPPort:
		return &m.EndpointPort
	case keyAllowedIPs:
		return &m.AllowedIPs
	}
	return nil
}

// MarshalText renders the message in wire order, one line per field.
func (m Message) MarshalText() ([]byte, error) {
	var b strings.Builder
	for _, key := range fieldOrder {
		value := string(m.Cmd)
		if key != keyCmd {
			value = *m.field(key)
		}
		if strings.ContainsRune(value, '\n') {
			return nil, oops.In("autoconnect").With("field", key).Errorf("field contains a newline")
		}
		b.WriteString(key)
		b.WriteString(separator)
		b.WriteString(value)
		b.WriteByte('\n')
	}
	return []byte(b.String()), nil
}

// ReadMessage reads one message. Lines are matched by key, so order is not enforced;
// unknown keys are ignored. The last line may end at EOF instead of a newline, or
// arrive unterminated on a connection that stays open.
func ReadMessage(r *bufio.Reader) (Message, error) {
	var m Message
	hasCmd := false
	last := len(fieldOrder) - 1
	for i := range fieldOrder {
		line, err := readLine(r, i == last)
		atEOF := errors.Is(err, io.EOF)
		if err != nil && !atEOF {
			return m, oops.In("autoconnect").Wrapf(err, "read message")
		}
		if atEOF && (line == "" || i < last) {
			return m, oops.In("autoconnect").With("lines", i).Wrap(ErrShortMessage)
		}

		line = strings.TrimRight(line, "\r\n\x00")
		key, value, ok := strings.Cut(line, separator)
		if !ok {
			continue
		}
		if key == keyCmd {
			m.Cmd = Command(value)
			hasCmd = true
		} else if f := m.field(key); f != nil {
			*f = value
		}
	}
	if !hasCmd {
		return m, oops.In("autoconnect").Wrap(ErrNoCommand)
	}
	return m, nil
}

// readLine reads one line. For the final line of a message an unterminated fragment
// already buffered is taken as the whole line, and so is a partial line cut short by
// the read deadline.
func readLine(r *bufio.Reader, final bool) (string, error) {
	if final {
		if n := r.Buffered(); n > 0 {
			if peek, _ := r.Peek(n); bytes.IndexByte(peek, '\n') < 0 {
				line := string(peek)
				_, _ = r.Discard(n)
				return line, nil
			}
		}
	}
	line, err := r.ReadString('\n')
	if final && line != "" && errors.Is(err, os.ErrDeadlineExceeded) {
		return line, nil
	}
	return line, err
}
