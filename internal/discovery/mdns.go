// SPDX-License-Identifier: MIT

// Package discovery finds LED controllers on the local network over mDNS
// and lets the simulator announce itself the same way.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/hashicorp/mdns"

	applog "lightshow/internal/log"
)

// ServiceType is the mDNS service controllers advertise.
const ServiceType = "_lightshow._tcp"

// DefaultTimeout bounds a Lookup when the caller passes zero.
const DefaultTimeout = 3 * time.Second

// ErrNotFound is returned when no controller answers before the timeout.
var ErrNotFound = errors.New("no controller found")

var (
	mdnsQuery      = mdns.Query
	localAddresses = localIPs
)

var log = applog.New("discovery")

// Controller is a discovered controller endpoint.
type Controller struct {
	Name string
	Host string
	Port int
}

func (c Controller) String() string {
	return fmt.Sprintf("%s (%s:%d)", c.Name, c.Host, c.Port)
}

// Advertiser announces a service until Shutdown is called.
type Advertiser struct {
	server *mdns.Server
}

// Advertise announces name as a ServiceType instance on port.
func Advertise(name string, port int) (*Advertiser, error) {
	ips, err := localAddresses()
	if err != nil {
		return nil, fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(name, ServiceType, "", "", port, ips, []string{"protocol=lightshow/1"})
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to create mdns server: %w", err)
	}

	log.Infof("Advertising %s on port %d (type: %s)", name, port, ServiceType)
	return &Advertiser{server: server}, nil
}

// Shutdown stops answering queries.
func (a *Advertiser) Shutdown() error {
	return a.server.Shutdown()
}

// Lookup returns the first controller that answers within timeout.
func Lookup(ctx context.Context, timeout time.Duration) (Controller, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	entries := make(chan *mdns.ServiceEntry, 8)
	done := make(chan error, 1)
	query := mdnsQuery
	go func() {
		done <- query(&mdns.QueryParam{
			Service:     ServiceType,
			Domain:      "local",
			Timeout:     timeout,
			Entries:     entries,
			DisableIPv6: true,
		})
	}()

	for {
		select {
		case <-ctx.Done():
			return Controller{}, ctx.Err()
		case e := <-entries:
			if c, ok := controllerFrom(e); ok {
				log.Infof("Discovered %s", c)
				return c, nil
			}
		case err := <-done:
			// The query may have delivered entries right before returning.
			for {
				select {
				case e := <-entries:
					if c, ok := controllerFrom(e); ok {
						log.Infof("Discovered %s", c)
						return c, nil
					}
				default:
					if err != nil {
						return Controller{}, fmt.Errorf("mdns query failed: %w", err)
					}
					return Controller{}, ErrNotFound
				}
			}
		}
	}
}

func controllerFrom(e *mdns.ServiceEntry) (Controller, bool) {
	if e == nil || e.Port <= 0 {
		return Controller{}, false
	}
	var host string
	switch {
	case e.AddrV4 != nil:
		host = e.AddrV4.String()
	case e.AddrV6 != nil:
		host = e.AddrV6.String()
	default:
		return Controller{}, false
	}
	return Controller{Name: e.Name, Host: host, Port: e.Port}, true
}

// localIPs returns the IPv4 addresses of the interfaces that are up.
func localIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

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
