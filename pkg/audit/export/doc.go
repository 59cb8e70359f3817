// Package export writes audit entries as JSON or CSV.
//
// Both exporters preserve the order of their input, which callers obtain
// from audit.Storage in canonical (timestamp, sequence) order.
package export

import "mercator-hq/quorum/pkg/audit"

// ForFormat returns the exporter for "json" or "csv".
func ForFormat(format string) (audit.Exporter, bool) {
	switch format {
	case "json":
		return NewJSONExporter(true), true
	case "csv":
		return NewCSVExporter(true), true
	default:
		return nil, false
	}
}
