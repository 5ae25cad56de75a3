package urls

// E133Standard is where ESTA publishes ANSI E1.33 (RDMnet), including the
// SLP service type and timing used for broker discovery.
const E133Standard = "https://tsp.esta.org/tsp/documents/published_docs.php"

// SLPv2 is RFC 2608, the Service Location Protocol version 2.
const SLPv2 = "https://www.rfc-editor.org/rfc/rfc2608"

// MulticastDNS is RFC 6762, used by the mdns backend.
const MulticastDNS = "https://www.rfc-editor.org/rfc/rfc6762"

// DNSServiceDiscovery is RFC 6763, which maps service types onto DNS records.
const DNSServiceDiscovery = "https://www.rfc-editor.org/rfc/rfc6763"
