//go:build linux || darwin || freebsd || openbsd

package core

import (
	"bufio"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wireguard_android_wrapper/marshal"
)

func TestUAPISocket(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "wireguard")
	e, _, _ := newTestEngine(t, Options{UAPIDir: dir})

	h := e.TurnOn(marshal.ViewOf("wg0"), 100, marshal.ViewOf(testSettings(t)))
	require.True(t, h.Valid())
	path := uapiPath(dir, "tun-test")

	c, err := net.DialTimeout("unix", path, time.Second)
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.SetDeadline(time.Now().Add(5*time.Second)))
	_, err = c.Write([]byte("get=1\n\n"))
	require.NoError(t, err)

	var lines []string
	r := bufio.NewReader(c)
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSuffix(line, "\n")
		if line == "" {
			break
		}
		lines = append(lines, line)
	}
	assert.Contains(t, lines, "errno=0")
	assert.Contains(t, strings.Join(lines, "\n"), "private_key=")

	e.TurnOff(h)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "socket is removed with the tunnel")
}

func TestUAPIReplacesStaleSocket(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(uapiPath(dir, "tun-test"), nil, 0o600))
	e, _, hook := newTestEngine(t, Options{UAPIDir: dir})

	h := e.TurnOn(marshal.ViewOf("wg0"), 100, marshal.ViewOf(testSettings(t)))
	require.True(t, h.Valid())
	assert.True(t, logged(hook, "uapi_listening"))
	assert.False(t, logged(hook, "uapi_listen_failed"))
}

func TestUAPIDisabledByDefault(t *testing.T) {
	e, _, hook := newTestEngine(t, Options{})
	h := e.TurnOn(marshal.ViewOf("wg0"), 100, marshal.ViewOf(testSettings(t)))
	require.True(t, h.Valid())
	assert.False(t, logged(hook, "uapi_listening"))
}
