package pairing

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/mirrordroid/mirrordroid/utils"
)

// mDNS service types advertised by Android wireless debugging.
const (
	PairingService = "_adb-tls-pairing._tcp"
	ConnectService = "_adb-tls-connect._tcp"
	mdnsDomain     = "local."
)

// Service is a resolved wireless-debugging endpoint.
type Service struct {
	Instance  string   `json:"instance"`
	Host      string   `json:"host"`
	Addresses []string `json:"addresses"`
	Port      int      `json:"port"`
}

// Address returns ip:port using the first IPv4 address when available.
func (s Service) Address() string {
	if len(s.Addresses) == 0 {
		return ""
	}
	return net.JoinHostPort(s.Addresses[0], strconv.Itoa(s.Port))
}

// Browser looks up DNS-SD services on the local network. found is called
// for every resolved entry until ctx is done.
type Browser interface {
	Browse(ctx context.Context, service string, found func(Service)) error
}

// ZeroconfBrowser is a Browser backed by multicast DNS.
type ZeroconfBrowser struct{}

func (ZeroconfBrowser) Browse(ctx context.Context, service string, found func(Service)) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to initialize mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for entry := range entries {
			s := serviceFromEntry(entry)
			if s.Address() == "" {
				continue
			}
			utils.Verbose("mDNS: %s %s at %s", service, s.Instance, s.Address())
			found(s)
		}
	}()

	if err := resolver.Browse(ctx, service, mdnsDomain, entries); err != nil {
		return fmt.Errorf("failed to browse %s: %w", service, err)
	}

	<-ctx.Done()
	<-done
	return nil
}

func serviceFromEntry(entry *zeroconf.ServiceEntry) Service {
	s := Service{
		Instance: entry.Instance,
		Host:     entry.HostName,
		Port:     entry.Port,
	}
	for _, ip := range entry.AddrIPv4 {
		s.Addresses = append(s.Addresses, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		s.Addresses = append(s.Addresses, ip.String())
	}
	return s
}

// Discover collects the services seen during timeout, deduplicated by instance.
func Discover(ctx context.Context, browser Browser, service string, timeout time.Duration) ([]Service, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	seen := map[string]Service{}
	found := make(chan Service)
	errCh := make(chan error, 1)
	go func() {
		errCh <- browser.Browse(ctx, service, func(s Service) {
			select {
			case found <- s:
			case <-ctx.Done():
			}
		})
	}()

	for {
		select {
		case s := <-found:
			seen[s.Instance] = s
		case err := <-errCh:
			if err != nil {
				return nil, err
			}
			return sortedServices(seen), nil
		}
	}
}

func sortedServices(m map[string]Service) []Service {
	out := make([]Service, 0, len(m))
	for _, s := range m {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Instance < out[j].Instance
	})
	return out
}
