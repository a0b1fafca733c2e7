package domain

import "testing"

func TestDollarsToCents(t *testing.T) {
	tests := []struct {
		name    string
		input   float64
		want    int64
		wantErr bool
	}{
		{"whole dollars", 150.0, 15000, false},
		{"two decimals", 150.50, 15050, false},
		{"one decimal", 0.1, 10, false},
		{"zero", 0, 0, false},
		{"representation artifact", 1.10, 110, false},
		{"three decimals rejected", 150.505, 0, true},
		{"sub-cent rejected", 0.001, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DollarsToCents(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected an error for %v", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("DollarsToCents(%v): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("DollarsToCents(%v) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestCentsToDollars(t *testing.T) {
	if got := CentsToDollars(15050); got != 150.50 {
		t.Errorf("CentsToDollars(15050) = %v, want 150.50", got)
	}
	if got := CentsToDollars(-1505); got != -15.05 {
		t.Errorf("CentsToDollars(-1505) = %v, want -15.05", got)
	}
}
