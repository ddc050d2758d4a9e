package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestNormalizeAmount(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain negative", "-12.34", "-12.34"},
		{"integer gets fraction digits", "-5", "-5.00"},
		{"positive integer", "3", "3.00"},
		{"truncates third digit", "3.456", "3.45"},
		{"truncates negative third digit", "-3.459", "-3.45"},
		{"strips leading zeros", "007.5", "7.50"},
		{"empty string", "", "0.00"},
		{"bare minus", "-", "0.00"},
		{"double minus", "--", "0.00"},
		{"garbage", "abc", "0.00"},
		{"whitespace", "  4.5 ", "4.50"},
		{"zero", "0", "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeAmount(tt.input)
			if got != tt.want {
				t.Errorf("NormalizeAmount(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeAmount_Idempotent(t *testing.T) {
	inputs := []string{"-12.34", "-5", "3.456", "", "-", "0.1", "999999.99"}
	for _, in := range inputs {
		once := NormalizeAmount(in)
		twice := NormalizeAmount(once)
		if once != twice {
			t.Errorf("NormalizeAmount not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"valid", "-4.5", "-4.50", false},
		{"truncation", "3.456", "3.45", false},
		{"empty", "", "", true},
		{"bare minus", "-", "", true},
		{"letters", "12a", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseAmount(%q) expected error, got %s", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q) unexpected error: %v", tt.input, err)
			}
			if got.StringFixed(2) != tt.want {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.input, got.StringFixed(2), tt.want)
			}
		})
	}
}

func TestFormatAmount(t *testing.T) {
	d := decimal.RequireFromString("-4.5")
	if got := FormatAmount(d); got != "-4.50" {
		t.Errorf("FormatAmount(-4.5) = %q, want -4.50", got)
	}
}
