// Package ledger implements the tamper-evident, append-only audit log that
// records every trust and credential event.
//
// The chain begins with a genesis block whose PrevHash is GenesisPrevHash ("0")
// and whose payload is {"event":"genesis"}. Every block stores the hash of its
// predecessor and a SHA-256 digest over its own canonical form, so any edit
// to a stored block is detectable via Verify.
//
// The ledger has a single writer. It is not a consensus protocol: there is no
// replication, no fork resolution and no proof-of-work.
//
// Three implementations of the Ledger interface are provided:
//   - MemoryLedger: in-process, the default.
//   - SQLiteLedger: durable, single-file deployments.
//   - PostgresLedger: durable, shared database deployments.
package ledger
