// Package audit defines the append-only audit trail.
//
// Every state change in the approval workflow produces one Entry. Entries are
// hashed when recorded, stored by a Storage backend and never modified or
// deleted afterwards. Reading a proposal's trail returns its entries in
// (timestamp, sequence) order.
//
// Subpackages provide the storage backends (storage), the recorder used by
// the workflow engine (recorder), JSON and CSV exporters (export), a
// scheduled archiver (archive) and a NATS mirror (publish).
package audit
