// ABOUTME: mDNS advertisement of the radiocore status endpoint
// ABOUTME: Lets LAN control surfaces find a running engine without config
package discovery

import (
	"context"
	"fmt"
	"log"
	"net"

	"github.com/hashicorp/mdns"
)

// ServiceType is the mDNS service the engine advertises.
const ServiceType = "_onestopradio._tcp"

// Config holds advertisement configuration.
type Config struct {
	InstanceName string // human-readable station name
	Port         int    // status websocket port
}

// Manager owns one mDNS advertisement.
type Manager struct {
	config Config
	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates an advertisement manager.
func NewManager(config Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{config: config, ctx: ctx, cancel: cancel}
}

// Advertise publishes the status endpoint on the local network. The
// advertisement stays up until Stop.
func (m *Manager) Advertise() error {
	ips, err := localIPs()
	if err != nil {
		return fmt.Errorf("mdns advertise: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.InstanceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		[]string{"path=/status"},
	)
	if err != nil {
		return fmt.Errorf("mdns advertise: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("mdns advertise: %w", err)
	}

	log.Printf("advertising %s as %q on port %d", ServiceType, m.config.InstanceName, m.config.Port)

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()
	return nil
}

// Stop withdraws the advertisement.
func (m *Manager) Stop() {
	m.cancel()
}

// localIPs returns the non-loopback IPv4 addresses of up interfaces.
func localIPs() ([]net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var ips []net.IP
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
				ips = append(ips, ipnet.IP)
			}
		}
	}
	return ips, nil
}
