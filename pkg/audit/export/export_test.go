package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"mercator-hq/quorum/pkg/audit"
)

func sampleEntries() []*audit.Entry {
	ts := time.Date(2026, 2, 3, 4, 5, 6, 7, time.UTC)
	return []*audit.Entry{
		{
			ID: "a", Sequence: 1, Action: audit.ActionProposalSubmitted,
			ProposalID: "p-1", Actor: "faculty-7", Timestamp: ts,
			Details: map[string]any{"budget": 40000.0}, ContentHash: "h1",
		},
		{
			ID: "b", Sequence: 2, Action: audit.ActionStepDecided,
			ProposalID: "p-1", Actor: "hod", Timestamp: ts.Add(time.Second),
			Details: map[string]any{"comment": "ok, \"approved\""}, ContentHash: "h2",
		},
	}
}

func TestJSONExporter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONExporter(false).Export(context.Background(), sampleEntries(), &buf); err != nil {
		t.Fatalf("Export() failed: %v", err)
	}

	var got []*audit.Entry
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not a JSON array: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("unexpected export: %+v", got)
	}
}

func TestJSONExporter_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONExporter(false).Export(context.Background(), nil, &buf); err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	if got := bytes.TrimSpace(buf.Bytes()); string(got) != "[]" {
		t.Errorf("empty export = %q, want []", got)
	}
}

func TestCSVExporter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewCSVExporter(true).Export(context.Background(), sampleEntries(), &buf); err != nil {
		t.Fatalf("Export() failed: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}
	if rows[0][0] != "sequence" || len(rows[0]) != len(CSVHeader) {
		t.Errorf("header = %v", rows[0])
	}
	if rows[2][3] != string(audit.ActionStepDecided) {
		t.Errorf("action column = %q", rows[2][3])
	}
	if rows[2][8] != `{"comment":"ok, \"approved\""}` {
		t.Errorf("details column = %q", rows[2][8])
	}
	if rows[1][2] != "2026-02-03T04:05:06.000000007Z" {
		t.Errorf("timestamp column = %q", rows[1][2])
	}
}

func TestCSVExporter_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	err := NewCSVExporter(false).Export(ctx, sampleEntries(), &buf)
	if err == nil {
		t.Fatal("Export() with cancelled context succeeded")
	}
}

func TestForFormat(t *testing.T) {
	for _, f := range []string{"json", "csv"} {
		e, ok := ForFormat(f)
		if !ok || e.Extension() != f {
			t.Errorf("ForFormat(%q) = %v, %v", f, e, ok)
		}
	}
	if _, ok := ForFormat("xml"); ok {
		t.Error("ForFormat(xml) succeeded")
	}
}
