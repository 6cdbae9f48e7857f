// Package discovery finds pairing candidates on the local network with
// mDNS/DNS-SD and advertises this node to its peers.
//
// # Service
//
// Every node registers one instance of the _meshpair._udp service. The
// instance name is the node's device name, so a single browse answer carries
// everything the eligibility rules need:
//
//	kitchen_3_aabbccddeeff0011._meshpair._udp.local.
//
// TXT records repeat the parsed name fields for tooling:
//
//	v=1            protocol major version; other majors are skipped
//	gr=kitchen     group
//	dt=3           device-type tag
//
// # Browsing
//
// The Browser runs periodic browse rounds. Each resolved entry with a usable
// address becomes a candidate offered to a Sink (normally the node, which
// queues it on the pairing bridge). Discovery is periodic, so a candidate
// dropped by a full queue is simply offered again next round.
//
// A round that fails outright (interface down, no multicast route) is retried
// with exponential backoff, never waiting longer than the browse interval.
package discovery
