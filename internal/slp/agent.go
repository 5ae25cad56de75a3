package slp

import "strings"

const (
	// ServiceName is the SLP service type E1.33 components register under.
	ServiceName = "service:e133.esta"

	// DefaultMinLifetime is the shortest registration lifetime, in seconds.
	DefaultMinLifetime uint16 = 5

	// DefaultAgingTime is slpd's aging interval, in seconds. Registrations
	// are refreshed at least this long before they expire.
	DefaultAgingTime uint16 = 60

	// urlSeparator joins the service type and the endpoint in a service URL.
	urlSeparator = "://"
)

// ServiceEntry is one result of a FindServices call.
type ServiceEntry struct {
	// URL is the full service URL, e.g. "service:e133.esta://10.0.0.1:5568".
	URL string

	// Lifetime is the remaining lifetime of the advertisement in seconds.
	Lifetime uint16
}

// Endpoint returns the entry's URL without the service type prefix.
func (e ServiceEntry) Endpoint() string {
	return EndpointFromURL(e.URL)
}

// Agent is the blocking service location library used by the SLP thread.
type Agent interface {
	// Open acquires the library handle.
	Open() error

	// Close releases the library handle.
	Close() error

	// FindServices returns every advertisement of serviceType.
	FindServices(serviceType string) ([]ServiceEntry, error)

	// Register advertises serviceURL for lifetime seconds.
	Register(serviceURL string, lifetime uint16) error

	// Deregister withdraws the advertisement of serviceURL.
	Deregister(serviceURL string) error

	// MinRefreshInterval is the shortest refresh interval accepted by the
	// directory agent, in seconds. Zero means no constraint.
	MinRefreshInterval() uint16
}

// ServiceURL builds the E1.33 service URL for an endpoint.
func ServiceURL(endpoint string) string {
	return ServiceURLFor(ServiceName, endpoint)
}

// ServiceURLFor builds a service URL for an endpoint under serviceType.
func ServiceURLFor(serviceType, endpoint string) string {
	return serviceType + urlSeparator + endpoint
}

// EndpointFromURL strips the "<service type>://" prefix from a service URL.
// Strings without a prefix are returned unchanged.
func EndpointFromURL(url string) string {
	if i := strings.Index(url, urlSeparator); i >= 0 {
		return url[i+len(urlSeparator):]
	}
	return url
}
