package mdns

import (
	"context"
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/e133slp/internal/logging"
	"github.com/muurk/e133slp/internal/slp"
)

const (
	// ServiceType is the DNS-SD service type for E1.33 components
	ServiceType = "_rdmnet._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultBrowseTimeout is how long FindServices listens for answers
	DefaultBrowseTimeout = 3 * time.Second

	// DefaultPort is the E1.33 port used when an endpoint has none
	DefaultPort = 5568

	// urlKey is the TXT record key carrying the original service URL
	urlKey = "url"
)

// Agent advertises and finds E1.33 services over mDNS.
type Agent struct {
	// BrowseTimeout bounds each FindServices call
	BrowseTimeout time.Duration

	// Interfaces restricts traffic to these interfaces; empty means all
	Interfaces []net.Interface

	mu       sync.Mutex
	resolver *zeroconf.Resolver
	servers  map[string]*zeroconf.Server
}

// NewAgent creates an agent with default settings.
func NewAgent() *Agent {
	return &Agent{
		BrowseTimeout: DefaultBrowseTimeout,
		servers:       make(map[string]*zeroconf.Server),
	}
}

// NewAgentForInterface creates an agent bound to a named interface.
// An empty name selects all interfaces.
func NewAgentForInterface(name string) (*Agent, error) {
	agent := NewAgent()
	if name == "" {
		return agent, nil
	}

	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("failed to find interface %s: %w", name, err)
	}
	agent.Interfaces = []net.Interface{*iface}
	return agent, nil
}

// Open implements slp.Agent.
func (a *Agent) Open() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var opts []zeroconf.ClientOption
	if len(a.Interfaces) > 0 {
		opts = append(opts, zeroconf.SelectIfaces(a.Interfaces))
	}

	resolver, err := zeroconf.NewResolver(opts...)
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}
	a.resolver = resolver
	if a.servers == nil {
		a.servers = make(map[string]*zeroconf.Server)
	}
	return nil
}

// Close implements slp.Agent. Every active advertisement is withdrawn.
func (a *Agent) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for url, server := range a.servers {
		server.Shutdown()
		delete(a.servers, url)
	}
	a.resolver = nil
	return nil
}

// FindServices implements slp.Agent. serviceType is the SLP service type the
// returned URLs are built with; the DNS-SD browse always uses ServiceType.
func (a *Agent) FindServices(serviceType string) ([]slp.ServiceEntry, error) {
	a.mu.Lock()
	resolver := a.resolver
	timeout := a.BrowseTimeout
	a.mu.Unlock()

	if resolver == nil {
		return nil, slp.NetworkInitFailed
	}
	if timeout <= 0 {
		timeout = DefaultBrowseTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	results := make([]slp.ServiceEntry, 0)
	seen := make(map[string]int)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				result, valid := toServiceEntry(serviceType, entry)
				if !valid {
					continue
				}
				if i, dup := seen[result.URL]; dup {
					results[i] = result
					continue
				}
				seen[result.URL] = len(results)
				results = append(results, result)
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	<-done

	logging.Debug("mDNS browse complete",
		zap.Int("services", len(results)),
		zap.Duration("timeout", timeout),
	)
	return results, nil
}

// Register implements slp.Agent. Registering a URL again replaces the
// previous advertisement. Hostname endpoints are resolved and advertised by
// address.
func (a *Agent) Register(serviceURL string, lifetime uint16) error {
	endpoint := slp.EndpointFromURL(serviceURL)
	host, port, err := splitEndpoint(endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", endpoint, slp.ParseError)
	}
	addrs, err := proxyAddrs(host)
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if existing, ok := a.servers[serviceURL]; ok {
		existing.Shutdown()
		delete(a.servers, serviceURL)
	}

	instance := instanceName(endpoint)
	text := []string{urlKey + "=" + serviceURL}

	// Always proxy so the records point at the endpoint's host, not ours
	server, err := zeroconf.RegisterProxy(instance, ServiceType, ServiceDomain, port,
		instance, addrs, text, a.Interfaces)
	if err != nil {
		return fmt.Errorf("failed to register mDNS service: %w", err)
	}

	server.TTL(uint32(lifetime))
	a.servers[serviceURL] = server
	return nil
}

// Deregister implements slp.Agent.
func (a *Agent) Deregister(serviceURL string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	server, ok := a.servers[serviceURL]
	if !ok {
		return slp.InvalidRegistration
	}
	server.Shutdown()
	delete(a.servers, serviceURL)
	return nil
}

// MinRefreshInterval implements slp.Agent. There is no directory agent on
// an mDNS network, so there is no constraint.
func (a *Agent) MinRefreshInterval() uint16 {
	return 0
}

// toServiceEntry converts a browse answer into an slp.ServiceEntry.
// Returns false for goodbye packets and answers without an address.
func toServiceEntry(serviceType string, entry *zeroconf.ServiceEntry) (slp.ServiceEntry, bool) {
	if entry == nil || entry.TTL == 0 {
		return slp.ServiceEntry{}, false
	}

	lifetime := uint16(math.MaxUint16)
	if entry.TTL < math.MaxUint16 {
		lifetime = uint16(entry.TTL)
	}

	// Prefer the URL the advertiser registered with
	for _, txt := range entry.Text {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 && parts[0] == urlKey && parts[1] != "" {
			return slp.ServiceEntry{URL: parts[1], Lifetime: lifetime}, true
		}
	}

	var ip string
	for _, addr := range entry.AddrIPv4 {
		ip = addr.String()
		break
	}
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return slp.ServiceEntry{}, false
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	endpoint := net.JoinHostPort(ip, strconv.Itoa(port))
	return slp.ServiceEntry{URL: slp.ServiceURLFor(serviceType, endpoint), Lifetime: lifetime}, true
}

// splitEndpoint splits "host[:port]" and applies DefaultPort.
func splitEndpoint(endpoint string) (string, int, error) {
	if endpoint == "" {
		return "", 0, fmt.Errorf("empty endpoint")
	}

	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		// No port component
		return strings.Trim(endpoint, "[]"), DefaultPort, nil
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > math.MaxUint16 {
		return "", 0, fmt.Errorf("invalid port %q", portStr)
	}
	return host, port, nil
}

// lookupHost resolves hostname endpoints; replaced in tests.
var lookupHost = net.LookupHost

// proxyAddrs returns the addresses to advertise for host. A hostname that
// does not resolve is a parse error.
func proxyAddrs(host string) ([]string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []string{ip.String()}, nil
	}
	addrs, err := lookupHost(host)
	if err != nil || len(addrs) == 0 {
		return nil, fmt.Errorf("cannot resolve host %q: %w", host, slp.ParseError)
	}
	return addrs, nil
}

// instanceName derives a DNS-SD instance label from an endpoint.
func instanceName(endpoint string) string {
	replacer := strings.NewReplacer(":", "-", ".", "-", "[", "", "]", "")
	return "e133-" + replacer.Replace(endpoint)
}
