package ui

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/google/go-cmp/cmp"

	"github.com/Mschirtzinger/bugledger/internal/bug"
	"github.com/Mschirtzinger/bugledger/internal/present"
)

func sampleView() present.View {
	return present.NewView(bug.Projection{
		Revision: 3,
		Bugs: []bug.Bug{
			{ID: "BUG-1", Description: "null pointer", Criticality: bug.CriticalityMedium, Index: 0},
			{ID: "", Description: "hidden", Index: 1},
			{ID: "BUG-3", Description: "typo", Criticality: bug.CriticalityUnknown, IsResolved: true, Index: 2},
		},
	})
}

func TestRenderTable(t *testing.T) {
	out := RenderTable(sampleView())

	for _, want := range []string{"ID", "Criticality", "BUG-1", "null pointer", "Medium", "BUG-3", "Unknown", "Yes", "No"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("table should not contain rows without id:\n%s", out)
	}
}

func TestRenderSummary(t *testing.T) {
	out := RenderSummary(sampleView())
	for _, want := range []string{"2 bugs", "1 open", "1 without id hidden"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary %q missing %q", out, want)
		}
	}
}

func TestWriteView(t *testing.T) {
	v := sampleView()

	tests := []struct {
		format string
		want   string
	}{
		{FormatTable, "BUG-1"},
		{"", "BUG-1"},
		{FormatJSON, `"can_resolve": true`},
		{FormatYAML, "can_resolve: true"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteView(&buf, tt.format, v); err != nil {
				t.Fatalf("WriteView failed: %v", err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, buf.String())
			}
		})
	}
}

func TestWriteViewDecodes(t *testing.T) {
	v := sampleView()

	var jbuf bytes.Buffer
	if err := WriteView(&jbuf, FormatJSON, v); err != nil {
		t.Fatal(err)
	}
	var fromJSON present.View
	if err := json.Unmarshal(jbuf.Bytes(), &fromJSON); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if diff := cmp.Diff(v.Rows, fromJSON.Rows); diff != "" {
		t.Errorf("json rows (-want +got):\n%s", diff)
	}

	var ybuf bytes.Buffer
	if err := WriteView(&ybuf, FormatYAML, v); err != nil {
		t.Fatal(err)
	}
	var fromYAML present.View
	if err := yaml.Unmarshal(ybuf.Bytes(), &fromYAML); err != nil {
		t.Fatalf("invalid yaml: %v", err)
	}
	if diff := cmp.Diff(v.Rows, fromYAML.Rows); diff != "" {
		t.Errorf("yaml rows (-want +got):\n%s", diff)
	}
}

func TestWriteViewEmptyTable(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteView(&buf, FormatTable, present.NewView(bug.Projection{})); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No bugs") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestWriteViewUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteView(&buf, "xml", sampleView()); err == nil {
		t.Error("expected error for unknown format")
	}
}
