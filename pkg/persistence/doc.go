// Package persistence stores the pairing directory's device names across
// restarts.
//
// The on-disk layout is one fixed-width record per directory slot:
//
//	record[i] = name padded with NUL bytes to RecordSize bytes
//
// An all-zero record is a free slot. The records are followed by a 32-byte
// BLAKE2b-256 digest over all records. A file of the wrong size, or whose
// digest does not match, is reported as ErrCorrupt; the directory then starts
// empty instead of loading a partial table.
//
// Writes replace the whole file through a temporary file and a rename, so a
// crash mid-write leaves either the old or the new table on disk.
package persistence
