// Package ident defines the identifiers exchanged between mesh nodes.
//
// A node is identified by a name of the form
//
//	<group>_<type>_<hwaddr>
//
// where group is the logical name shared by nodes that belong together
// ("device1"), type is the decimal device-type tag and hwaddr is the 64-bit
// factory hardware address in hex ("aabbccddeeff0011"). Names are at most
// MaxNameLen bytes long; the Name type enforces that bound at construction so
// no table ever stores an oversized name.
//
// Addresses are 16-byte mesh (IPv6) addresses, tokens are the 4-byte CoAP
// tokens that identify an Observe exchange, and resource indices refer to the
// local resource table. Index 0 is reserved as "no resource".
package ident
