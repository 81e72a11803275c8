package core

import (
	"testing"
	"time"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"10", "10"},
		{" 2.5 ", "2.5"},
		{"$1,234.56", "1234.56"},
		{"€ 99", "99"},
		{"(1,000.50)", "-1000.5"},
		{"-3", "-3"},
		{"1e3", "1000"},
		{"1e99999999", "0"},
		{"2.5E-99999999", "0"},
		{"1e30", "1000000000000000000000000000000"},
		{"12 pcs", "12"},
		{"abc", "0"},
		{"", "0"},
		{"--", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseNumber(tt.input).String(); got != tt.want {
				t.Errorf("ParseNumber(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestRoundMoney_HugeExponentCell(t *testing.T) {
	done := make(chan string, 1)
	go func() {
		done <- RoundMoney(ParseNumber("1e99999999").Mul(ParseNumber("2"))).String()
	}()

	select {
	case got := <-done:
		if got != "0" {
			t.Errorf("RoundMoney = %s, want 0", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RoundMoney did not finish")
	}
}

func TestRoundMoney(t *testing.T) {
	got := RoundMoney(ParseNumber("3").Mul(ParseNumber("3.335"))).String()
	if got != "10.01" {
		t.Errorf("RoundMoney = %s, want 10.01", got)
	}
}
