// Package web3 houses blockchain connectivity for the agent: the chain
// client interface, the tagged transfer-target union, denomination helpers,
// and multi-chain configuration. Implementations cover balance queries,
// ERC-20 reads and transfers, ENS resolution, and signed value transfers
// with receipt confirmation.
package web3
