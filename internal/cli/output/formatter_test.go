package output

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"JSON", FormatJSON, false},
		{" yaml ", FormatYAML, false},
		{"table", FormatTable, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestNewFormatter(t *testing.T) {
	if _, ok := NewFormatter(FormatJSON, false).(*JSONFormatter); !ok {
		t.Error("json formatter")
	}
	if _, ok := NewFormatter(FormatYAML, false).(*YAMLFormatter); !ok {
		t.Error("yaml formatter")
	}
	if f, ok := NewFormatter(FormatTable, true).(*TableFormatter); !ok || !f.Wide {
		t.Error("table formatter")
	}
}

type profile struct {
	ID    string   `json:"_id"`
	Name  string   `json:"name"`
	Roles []string `json:"roles,omitempty"`
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONFormatter{}).Format(&buf, profile{ID: "u-1", Name: "Asha"}); err != nil {
		t.Fatal(err)
	}
	want := "{\n  \"_id\": \"u-1\",\n  \"name\": \"Asha\"\n}\n"
	if buf.String() != want {
		t.Errorf("Format() = %q, want %q", buf.String(), want)
	}
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	data := []profile{{ID: "u-1", Name: "Asha", Roles: []string{"teacher"}}}
	if err := (&YAMLFormatter{}).Format(&buf, data); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"- _id: u-1", "  name: Asha", "  roles:", "- teacher"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q lacks %q", out, want)
		}
	}

	if err := (&YAMLFormatter{}).Format(&buf, make(chan int)); err == nil {
		t.Error("Format(chan) error = nil")
	}
}
