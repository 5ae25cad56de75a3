package mdns

import (
	"errors"
	"net"
	"testing"

	"github.com/grandcat/zeroconf"

	"github.com/muurk/e133slp/internal/slp"
)

func TestToServiceEntry(t *testing.T) {
	tests := []struct {
		name         string
		entry        *zeroconf.ServiceEntry
		wantValid    bool
		wantURL      string
		wantLifetime uint16
	}{
		{
			name: "IPv4 answer",
			entry: &zeroconf.ServiceEntry{
				Port:     5568,
				AddrIPv4: []net.IP{net.ParseIP("192.168.4.16")},
				TTL:      120,
			},
			wantValid:    true,
			wantURL:      "service:e133.esta://192.168.4.16:5568",
			wantLifetime: 120,
		},
		{
			name: "no port specified (should default to 5568)",
			entry: &zeroconf.ServiceEntry{
				AddrIPv4: []net.IP{net.ParseIP("10.0.0.5")},
				TTL:      30,
			},
			wantValid:    true,
			wantURL:      "service:e133.esta://10.0.0.5:5568",
			wantLifetime: 30,
		},
		{
			name: "IPv6 only",
			entry: &zeroconf.ServiceEntry{
				Port:     5568,
				AddrIPv6: []net.IP{net.ParseIP("fe80::1")},
				TTL:      60,
			},
			wantValid:    true,
			wantURL:      "service:e133.esta://[fe80::1]:5568",
			wantLifetime: 60,
		},
		{
			name: "TXT url wins over address",
			entry: &zeroconf.ServiceEntry{
				Port:     5568,
				AddrIPv4: []net.IP{net.ParseIP("10.0.0.5")},
				Text:     []string{"other=1", "url=service:e133.esta://controller.local:5569"},
				TTL:      90,
			},
			wantValid:    true,
			wantURL:      "service:e133.esta://controller.local:5569",
			wantLifetime: 90,
		},
		{
			name: "TTL above uint16 is clamped",
			entry: &zeroconf.ServiceEntry{
				Port:     5568,
				AddrIPv4: []net.IP{net.ParseIP("10.0.0.5")},
				TTL:      100000,
			},
			wantValid:    true,
			wantURL:      "service:e133.esta://10.0.0.5:5568",
			wantLifetime: 65535,
		},
		{
			name: "goodbye packet",
			entry: &zeroconf.ServiceEntry{
				Port:     5568,
				AddrIPv4: []net.IP{net.ParseIP("10.0.0.5")},
				TTL:      0,
			},
			wantValid: false,
		},
		{
			name: "no addresses",
			entry: &zeroconf.ServiceEntry{
				Port: 5568,
				TTL:  120,
			},
			wantValid: false,
		},
		{
			name:      "nil entry",
			entry:     nil,
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, valid := toServiceEntry(slp.ServiceName, tt.entry)
			if valid != tt.wantValid {
				t.Fatalf("toServiceEntry() valid = %v, want %v", valid, tt.wantValid)
			}
			if !tt.wantValid {
				return
			}
			if got.URL != tt.wantURL {
				t.Errorf("URL = %v, want %v", got.URL, tt.wantURL)
			}
			if got.Lifetime != tt.wantLifetime {
				t.Errorf("Lifetime = %v, want %v", got.Lifetime, tt.wantLifetime)
			}
		})
	}
}

func TestSplitEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{"10.0.0.1:5569", "10.0.0.1", 5569, false},
		{"10.0.0.1", "10.0.0.1", DefaultPort, false},
		{"controller.local", "controller.local", DefaultPort, false},
		{"[fe80::1]:5568", "fe80::1", 5568, false},
		{"10.0.0.1:http", "", 0, true},
		{"10.0.0.1:70000", "", 0, true},
		{"", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			host, port, err := splitEndpoint(tt.endpoint)
			if (err != nil) != tt.wantErr {
				t.Fatalf("splitEndpoint(%q) error = %v, wantErr %v", tt.endpoint, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if host != tt.wantHost {
				t.Errorf("host = %v, want %v", host, tt.wantHost)
			}
			if port != tt.wantPort {
				t.Errorf("port = %v, want %v", port, tt.wantPort)
			}
		})
	}
}

func TestProxyAddrs(t *testing.T) {
	resolved := map[string][]string{
		"controller.lan": {"192.168.1.20", "fd00::20"},
		"empty.lan":      {},
	}
	oldLookup := lookupHost
	lookupHost = func(host string) ([]string, error) {
		if addrs, ok := resolved[host]; ok {
			return addrs, nil
		}
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	t.Cleanup(func() { lookupHost = oldLookup })

	tests := []struct {
		host    string
		want    []string
		wantErr bool
	}{
		{"10.0.0.1", []string{"10.0.0.1"}, false},
		{"fe80::1", []string{"fe80::1"}, false},
		{"controller.lan", []string{"192.168.1.20", "fd00::20"}, false},
		{"empty.lan", nil, true},
		{"missing.lan", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			got, err := proxyAddrs(tt.host)
			if tt.wantErr {
				if !errors.Is(err, slp.ParseError) {
					t.Errorf("proxyAddrs(%q) error = %v, want %v", tt.host, err, slp.ParseError)
				}
				return
			}
			if err != nil {
				t.Fatalf("proxyAddrs(%q) error = %v", tt.host, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("proxyAddrs(%q) = %v, want %v", tt.host, got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("proxyAddrs(%q)[%d] = %v, want %v", tt.host, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestAgent_RegisterUnresolvableHost(t *testing.T) {
	oldLookup := lookupHost
	lookupHost = func(host string) ([]string, error) {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	t.Cleanup(func() { lookupHost = oldLookup })

	err := NewAgent().Register(slp.ServiceURL("nowhere.lan:5568"), 60)
	if !errors.Is(err, slp.ParseError) {
		t.Errorf("Register() error = %v, want %v", err, slp.ParseError)
	}
}

func TestInstanceName(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
	}{
		{"10.0.0.1:5568", "e133-10-0-0-1-5568"},
		{"foo", "e133-foo"},
		{"[fe80::1]:5568", "e133-fe80--1-5568"},
	}

	for _, tt := range tests {
		if got := instanceName(tt.endpoint); got != tt.want {
			t.Errorf("instanceName(%q) = %v, want %v", tt.endpoint, got, tt.want)
		}
	}
}

func TestAgent_NotOpen(t *testing.T) {
	agent := NewAgent()

	_, err := agent.FindServices(slp.ServiceName)
	if !errors.Is(err, slp.NetworkInitFailed) {
		t.Errorf("FindServices() before Open error = %v, want %v", err, slp.NetworkInitFailed)
	}
}

func TestAgent_DeregisterUnknown(t *testing.T) {
	agent := NewAgent()

	err := agent.Deregister(slp.ServiceURL("10.0.0.1:5568"))
	if !errors.Is(err, slp.InvalidRegistration) {
		t.Errorf("Deregister() error = %v, want %v", err, slp.InvalidRegistration)
	}
}

func TestAgent_RegisterInvalidEndpoint(t *testing.T) {
	agent := NewAgent()

	err := agent.Register(slp.ServiceURL("10.0.0.1:notaport"), 60)
	if !errors.Is(err, slp.ParseError) {
		t.Errorf("Register() error = %v, want %v", err, slp.ParseError)
	}
}

func TestAgent_MinRefreshInterval(t *testing.T) {
	if got := NewAgent().MinRefreshInterval(); got != 0 {
		t.Errorf("MinRefreshInterval() = %v, want 0", got)
	}
}

func TestNewAgentForInterface(t *testing.T) {
	agent, err := NewAgentForInterface("")
	if err != nil {
		t.Fatalf("NewAgentForInterface(\"\") error = %v", err)
	}
	if len(agent.Interfaces) != 0 {
		t.Errorf("Interfaces = %v, want none", agent.Interfaces)
	}

	if _, err := NewAgentForInterface("no-such-interface0"); err == nil {
		t.Error("NewAgentForInterface() with unknown interface should fail")
	}
}
