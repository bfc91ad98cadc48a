// Package evolution lets the consensus rule itself evolve.
//
// Nodes submit proposals: a rule family, a parameter mapping, a fitness
// score, and a written justification. Admitted proposals accumulate in a
// pool and feed an exponentially-smoothed reputation score per proposer.
// When the pool is large enough, the highest-fitness proposals are selected
// and their parameters blended into a new active rule; a record of the
// applied rule is appended to an immutable history and the pool is cleared.
package evolution
