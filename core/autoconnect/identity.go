package autoconnect

import (
	"fmt"
	"net"
	"strings"
)

// fallbackMAC is sent when no hardware address can be found.
const fallbackMAC = "11-11-11-22-22-22"

// identity describes the client side of a provisioning connection.
type identity struct {
	mac string
	ip  string
	v4  net.IP
}

func localIdentity(local net.Addr, hw net.HardwareAddr) identity {
	id := identity{mac: formatMAC(hw), ip: "0.0.0.0"}
	if tcp, ok := local.(*net.TCPAddr); ok && tcp.IP != nil {
		id.ip = tcp.IP.String()
		id.v4 = tcp.IP.To4()
	}
	return id
}

// allowedIPs is the tunnel subnet plus the client's own /16.
func (id identity) allowedIPs() string {
	var a, b byte
	if id.v4 != nil {
		a, b = id.v4[0], id.v4[1]
	}
	return fmt.Sprintf("10.1.0.0/16,%d.%d.0.0/16", a, b)
}

func formatMAC(hw net.HardwareAddr) string {
	if len(hw) == 0 {
		return fallbackMAC
	}
	parts := make([]string, len(hw))
	for i, b := range hw {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, "-")
}

// firstHardwareAddr returns the address of the first up, non-loopback interface.
func firstHardwareAddr() net.HardwareAddr {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) == 0 {
			continue
		}
		return iface.HardwareAddr
	}
	return nil
}
