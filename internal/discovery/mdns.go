// Package discovery advertises the daemon's control endpoint over
// mDNS so dashboards on the LAN find it without configuration.
package discovery

import (
	"fmt"
	"net"

	"github.com/hashicorp/mdns"
	"github.com/rs/zerolog"
)

const serviceType = "_ledbus._tcp"

// Service is a running advertisement. Close stops it.
type Service struct {
	server *mdns.Server
	log    zerolog.Logger
}

func Advertise(instance string, port int, txt []string, lg zerolog.Logger) (*Service, error) {
	if instance == "" {
		instance = "ledbus"
	}
	ips, err := localIPs()
	if err != nil {
		return nil, fmt.Errorf("local ips: %w", err)
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("no usable network interfaces")
	}

	zone, err := mdns.NewMDNSService(instance, serviceType, "", "", port, ips, txt)
	if err != nil {
		return nil, fmt.Errorf("mdns service: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: zone})
	if err != nil {
		return nil, fmt.Errorf("mdns server: %w", err)
	}

	lg.Info().Str("instance", instance).Str("type", serviceType).Int("port", port).
		Msg("mdns advertisement started")
	return &Service{server: server, log: lg}, nil
}

func (s *Service) Close() error {
	s.log.Debug().Msg("mdns advertisement stopped")
	return s.server.Shutdown()
}

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
