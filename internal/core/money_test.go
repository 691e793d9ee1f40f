package core

import "testing"

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"0", 0, false},
		{"0.00", 0, false},
		{"-1", 0, false},
		{"+1", 0, false},
		{"abc", 0, false},
		{"", 0, false},
		{"1", 1, true},
		{"1.2", 1.2, true},
		{"1,2", 1.2, true},
		{"12.345", 12.35, true},
		{"12.344", 12.34, true},
		{"1.234,5", 1234.5, true},
		{"1,234.56", 1234.56, true},
		{" 7 ", 7, true},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok && err != nil {
			t.Errorf("ParseAmount(%q) unexpected error %v", tc.in, err)
			continue
		}
		if !tc.ok {
			if err == nil {
				t.Errorf("ParseAmount(%q) expected error", tc.in)
			}
			continue
		}
		if got != tc.want {
			t.Errorf("ParseAmount(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestSumAmounts(t *testing.T) {
	vals := make([]float64, 10)
	for i := range vals {
		vals[i] = 0.1
	}
	if got := SumAmounts(vals...); got != 1 {
		t.Errorf("SumAmounts = %v, want 1", got)
	}
}

func TestFormatAmount(t *testing.T) {
	cases := map[float64]string{
		0:          "0.00",
		12.5:       "12.50",
		1234567.89: "1,234,567.89",
		-1000:      "-1,000.00",
		999:        "999.00",
	}
	for in, want := range cases {
		if got := FormatAmount(in); got != want {
			t.Errorf("FormatAmount(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestOverviewNet(t *testing.T) {
	o := Overview{TotalIncome: 100, TotalExpenses: 30.1, TotalPayroll: 20}
	if got := o.Net(); got != 49.9 {
		t.Errorf("Net = %v, want 49.9", got)
	}
}
