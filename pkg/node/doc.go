// Package node composes a mesh node from the pairing directory, the
// subscription registry, the pairing bridge and a transport.
//
// A Node plays both Observe roles:
//
//   - Server: peers send OBSERVE and CANCEL envelopes for the node's own
//     resources; the node records them in the subscription registry and
//     Notify fans resource changes out to every observer.
//   - Client: Observe asks a paired device to push one of its resources;
//     inbound notifications are matched by token and handed to the
//     Application.
//
// Pairing candidates arrive through Candidate (typically from discovery),
// are queued on the bridge and paired by its worker, which Start runs in the
// background.
//
// Resources are addressed by a small index on the wire-facing tables and by
// a path in envelopes. The node's resource table maps between the two and is
// assumed to be shared by all nodes of a mesh.
package node
