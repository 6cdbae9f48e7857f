// Package transport carries Observe traffic between mesh nodes.
//
// The pairing and subscription tables never talk to the network directly.
// They hand packets to the Sender and Transport interfaces defined here,
// which the application implements or satisfies with the UDP transport.
//
// # Notification packets
//
// A notification packet, as built by the subscription registry, is the
// observe token followed by the payload:
//
//	┌──────────────┬────────────────────┐
//	│ token (4 B)  │ payload (0..N B)   │
//	└──────────────┴────────────────────┘
//
// # Datagram envelope
//
// The UDP transport wraps every packet in a CBOR map with integer keys:
//
//	{
//	  1: kind,     // uint8: 1=Notification 2=Request 3=Response 4=Observe 5=Cancel
//	  2: token,    // bytes(4)
//	  3: path,     // text, requests and observes
//	  4: device,   // text, sender's device name
//	  5: payload,  // bytes
//	  6: status    // uint8, responses
//	}
//
// Delivery is best effort. Duplicate notifications are harmless; the
// transport neither retries nor acknowledges them.
package transport
