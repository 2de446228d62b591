package logging

import "testing"

func TestNew(t *testing.T) {
	tests := []struct {
		level   string
		format  string
		wantErr bool
	}{
		{"info", FormatConsole, false},
		{"DEBUG", FormatJSON, false},
		{"warn", "", false},
		{"loud", FormatConsole, true},
		{"info", "xml", true},
	}
	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			logger, err := New(tt.level, tt.format)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if logger == nil {
				t.Fatal("New returned nil logger")
			}
		})
	}
}
