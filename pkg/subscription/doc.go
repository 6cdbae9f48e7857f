// Package subscription implements the CoAP Observe bookkeeping of a mesh node.
//
// # Registry
//
// The Registry records who is observing this node's resources. Entries are
// two-level: one device slot per observing peer (keyed by device name, caching
// the peer's address) holding several uri-slots, each an Observe relationship
// identified by its token and the observed resource index.
//
// Subscribe is idempotent and reports exactly what changed as a Result
// bitmask:
//
//	AddressUpdated  the peer moved to a new mesh address
//	TokenUpdated    the peer re-registered an existing resource with a new token
//	URIAdded        the peer started observing another resource
//
// A brand-new peer yields AddedNewDevice; a repeated, identical Subscribe
// yields NoUpdateNeeded.
//
// Notify pushes a packet of token || payload to every uri-slot observing a
// resource. Sending is fire-and-forget: the Sender is called outside the
// registry lock and its errors are only logged.
//
// Unsubscribe clears a single uri-slot. The device slot is kept even when its
// last uri-slot goes away; UnsubscribeAll frees it explicitly.
//
// # Tokens
//
// A token identifies one Observe exchange, so no two occupied uri-slots may
// share a token. Subscribe rejects a token held by another uri-slot with
// ErrTokenInUse before touching the table.
//
// # Observations
//
// Observations is the client-side mirror: the tokens this node issued when it
// started observing a remote resource. Deliver routes an inbound notification
// to the StateHandler by token.
package subscription
