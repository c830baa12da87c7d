package net

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

const serviceType = "_localboard._tcp"

const roomKey = "room="

// Service is a board found on the local network.
type Service struct {
	Host string
	Addr string
	Port int
	Room string
}

// Link returns the share link for s.
func (s Service) Link() string {
	return ShareLink(s.Addr, s.Port, s.Room)
}

// Advertise announces a hub serving room on port. Shut the returned server
// down to stop advertising.
func Advertise(port int, room string) (*mdns.Server, error) {
	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("could not get hostname: %w", err)
	}
	service, err := mdns.NewMDNSService(
		host,
		serviceType,
		"",
		"",
		port,
		[]net.IP{firstIPv4()},
		[]string{"CollabBoard", roomKey + room},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}
	return server, nil
}

// Browse looks for advertised boards for up to timeout, or until ctx is done.
func Browse(ctx context.Context, timeout time.Duration) ([]Service, error) {
	entries := make(chan *mdns.ServiceEntry, 16)
	done := make(chan error, 1)
	go func() {
		params := mdns.DefaultParams(serviceType)
		params.Entries = entries
		params.Timeout = timeout
		params.DisableIPv6 = true
		done <- mdns.Query(params)
		close(entries)
	}()

	var found []Service
	seen := make(map[string]bool)
	for {
		select {
		case <-ctx.Done():
			return found, ctx.Err()
		case e, ok := <-entries:
			if !ok {
				return found, <-done
			}
			svc, valid := serviceFromEntry(e)
			if !valid || seen[svc.Link()] {
				continue
			}
			seen[svc.Link()] = true
			found = append(found, svc)
		}
	}
}

func serviceFromEntry(e *mdns.ServiceEntry) (Service, bool) {
	if e == nil || e.AddrV4 == nil || e.Port == 0 {
		return Service{}, false
	}
	svc := Service{Host: e.Host, Addr: e.AddrV4.String(), Port: e.Port, Room: DefaultRoom}
	for _, f := range e.InfoFields {
		if strings.HasPrefix(f, roomKey) {
			svc.Room = strings.TrimPrefix(f, roomKey)
		}
	}
	return svc, true
}

// firstIPv4 returns the first IPv4 address of an interface that is up and
// not a loopback, or 127.0.0.1.
func firstIPv4() net.IP {
	ifaces, _ := net.Interfaces()
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, _ := iface.Addrs()
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.To4() != nil {
				return ipnet.IP.To4()
			}
		}
	}
	return net.IPv4(127, 0, 0, 1)
}
