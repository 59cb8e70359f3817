// Quorum routes institutional event proposals through analysis, policy
// compliance and a sequential approval chain, then turns approved proposals
// into procurement orders.
//
// Usage:
//
//	# Start the ops server, policy watcher and audit archive
//	quorum run --config quorum.yaml
//
//	# Submit a proposal from a YAML draft
//	quorum proposal submit draft.yaml --actor dr.rao
//
//	# Approve the active step of a proposal
//	quorum proposal decide <step-id> approved --actor hod.cse
//
//	# Rank vendors for a category
//	quorum vendor recommend catering
//
//	# Verify every stored audit entry hash
//	quorum audit verify
package main

func main() {
	Execute()
}
