package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		verbose   bool
		wantDebug bool
	}{
		{false, false},
		{true, true},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		logger := New(&buf, tt.verbose)
		logger.Debug("seed pool ready", "class", 1)
		logger.Info("saving patch frame", "image", "slide-1")

		out := buf.String()
		if got := strings.Contains(out, "seed pool ready"); got != tt.wantDebug {
			t.Errorf("verbose=%v: debug output %v, expected %v", tt.verbose, got, tt.wantDebug)
		}
		if !strings.Contains(out, "image=slide-1") {
			t.Errorf("verbose=%v: expected info output with attributes, got %q", tt.verbose, out)
		}
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	NewJSON(&buf, false).Info("tissue mask found, loading", "image", "slide-2")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON output, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "tissue mask found, loading" || entry["image"] != "slide-2" {
		t.Errorf("Unexpected entry %v", entry)
	}
}
