// Package pairing implements the asynchronous pairing bridge.
//
// Discovery and transport callbacks must not block or scan the directory.
// They hand pairing candidates to Bridge.Enqueue, a non-blocking push onto a
// bounded queue; when the queue is full the candidate is dropped and a later
// discovery round offers it again.
//
// A single worker pops at most one candidate per tick, runs the eligibility
// rules and, on approval, adds the device to the directory. Every newly
// paired device is reported exactly once to the PairedHandler. A candidate
// that is already paired under a different address has its directory entry
// refreshed instead.
//
//	discovery ──Enqueue──▶ [ queue (9) ] ──Tick──▶ rules ──▶ directory ──▶ OnPaired
package pairing
