// Package mdns implements slp.Agent on top of multicast DNS service discovery.
//
// Networks without an SLP directory agent can still find E1.33 components:
// each registration is announced as a DNS-SD "_rdmnet._tcp" service whose
// record TTL is the registration lifetime, and FindServices browses for the
// same service type and reports each answer's TTL as the remaining lifetime.
//
// # Discovery Process
//
//  1. Broadcasts mDNS queries on the selected interfaces
//  2. Collects answers until BrowseTimeout elapses
//  3. Converts each answer to a service URL ("service:e133.esta://ip:port")
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Components must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
//
// # Thread Safety
//
// All Agent methods are safe for concurrent use, although the SLP thread only
// ever calls them from its worker goroutine.
package mdns
