// Package chain implements the quorum-validated change ledger.
//
// Blocks
//
// Nodes produce change-sets, opaque key-value payloads describing a unit of
// local work. Each change-set enters the ledger as a pending block whose hash
// covers its creation timestamp, producer identity, canonical change-set
// bytes, and the hash of the preceding block. The first block links to a
// 64-zero sentinel. Because every block commits to its predecessor, the whole
// ledger verifies by a single linear pass of hash recomputation.
//
// Validation
//
// A block becomes authoritative when a quorum of distinct validator
// identities has voted for it. Quorum is a pure threshold count on the
// block's validator set; identities are strings and votes carry no
// signatures, as transport and authentication live outside this module. A
// block can alternatively be rejected, which is terminal. Rejecting a block
// that already reached quorum is forbidden.
//
// Store
//
// The Chain object has a dependency on a Store object which contains the
// actual data and is abstracted behind an interface. There are two
// implementations. InmemStore keeps the full append-only ledger in memory.
// BadgerStore is a wrapper around it that also persists blocks and the
// validator registry to a key-value store on disk; the database it produces
// can be reused to bootstrap a node back to its previous state.
package chain
