package slp

import "testing"

func TestServiceURL(t *testing.T) {
	if got := ServiceURL("10.0.0.1:5568"); got != "service:e133.esta://10.0.0.1:5568" {
		t.Errorf("ServiceURL() = %v", got)
	}
	if got := ServiceURLFor("service:test", "host"); got != "service:test://host" {
		t.Errorf("ServiceURLFor() = %v", got)
	}
}

func TestEndpointFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"service:e133.esta://10.0.0.1", "10.0.0.1"},
		{"service:e133.esta://10.0.0.1:5568", "10.0.0.1:5568"},
		{"10.0.0.1", "10.0.0.1"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := EndpointFromURL(tt.url); got != tt.want {
				t.Errorf("EndpointFromURL(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}

	entry := ServiceEntry{URL: "service:e133.esta://lamp", Lifetime: 30}
	if entry.Endpoint() != "lamp" {
		t.Errorf("ServiceEntry.Endpoint() = %v, want lamp", entry.Endpoint())
	}
}
