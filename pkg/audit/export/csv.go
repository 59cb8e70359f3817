package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"mercator-hq/quorum/pkg/audit"
)

// CSVHeader is the column order of CSV exports.
var CSVHeader = []string{
	"sequence",
	"id",
	"timestamp",
	"action",
	"proposal_id",
	"entity_type",
	"entity_id",
	"actor",
	"details",
	"content_hash",
}

// CSVExporter exports audit entries as CSV. Details are written as a JSON
// object in a single column.
type CSVExporter struct {
	// IncludeHeader includes a header row with column names.
	IncludeHeader bool
}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

// Export writes entries to w.
func (e *CSVExporter) Export(ctx context.Context, entries []*audit.Entry, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(CSVHeader); err != nil {
			return audit.NewExportError("csv", err)
		}
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return audit.NewExportError("csv", err)
		}
		row, err := entryToRow(entry)
		if err != nil {
			return audit.NewExportError("csv", err)
		}
		if err := writer.Write(row); err != nil {
			return audit.NewExportError("csv", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return audit.NewExportError("csv", err)
	}
	return nil
}

// Extension implements audit.Exporter.
func (e *CSVExporter) Extension() string { return "csv" }

func entryToRow(e *audit.Entry) ([]string, error) {
	details := ""
	if len(e.Details) > 0 {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return nil, err
		}
		details = string(b)
	}
	return []string{
		strconv.FormatInt(e.Sequence, 10),
		e.ID,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		string(e.Action),
		e.ProposalID,
		e.EntityType,
		e.EntityID,
		e.Actor,
		details,
		e.ContentHash,
	}, nil
}
