// Package policy defines the approval policy table: per-category budget
// ceilings, escalation thresholds, base approver sets, crowd and lead-time
// limits, required fields and risk weights.
//
// A Table is an immutable value. Pipeline stages receive it explicitly instead
// of reading package state, which keeps every stage a pure function of its
// inputs and lets tests run against alternate policies:
//
//	table, err := policy.LoadFile("policy.yaml")
//	if err != nil {
//	    return err
//	}
//	holder := policy.NewHolder(table)
//	analysis := analyzer.Analyze(holder.Current(), p)
//
// Holder and Watcher support hot reload: the watcher swaps in a new table only
// when the edited file validates, and each evaluation keeps the snapshot it
// started with.
package policy
