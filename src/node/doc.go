// Package node implements the reactive component of a Lamarck node.
//
// This is the part of Lamarck that sits between the application proxy and the
// chain and evolution engines. Node implements a state machine where the
// states are defined in the state package.
//
// Production
//
// Change-sets submitted by the application are vetted before anything else:
// oversized weight updates or runaway learning rates cause the whole
// change-set to be refused. A vetted change-set is recorded in a new block,
// linked to the previous block by hash, and the producing node immediately
// casts its own validation vote.
//
// Sweeping
//
// A control timer drives a periodic sweep of the ledger. On every tick, the
// node votes on the pending blocks it has not validated yet; a block reaching
// the validator quorum is committed to the application through the proxy.
// Votes from other validators arrive through ReceiveValidation, typically
// relayed by the HTTP service.
//
// Suspension
//
// After a configurable run of idle sweeps, with no pending work and no
// submissions, the node suspends itself. A suspended node keeps serving
// reads but produces and validates nothing until Resume is called.
package node
