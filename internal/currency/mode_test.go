package currency

import "testing"

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeAuto, false},
		{"auto", ModeAuto, false},
		{"BASE", ModeBase, false},
		{"account", ModeAccount, false},
		{"split", ModeSplit, false},
		{"euro", ModeAuto, true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDisplayCurrency(t *testing.T) {
	tests := []struct {
		name       string
		mode       Mode
		currencies []string
		wantTarget string
		wantOK     bool
	}{
		{"base always converts", ModeBase, []string{"EUR"}, "EUR", true},
		{"base with no accounts", ModeBase, nil, "EUR", true},
		{"account never converts", ModeAccount, []string{"EUR", "USD"}, "", false},
		{"split behaves like account", ModeSplit, []string{"EUR", "USD"}, "", false},
		{"auto single currency", ModeAuto, []string{"USD", "USD", "USD"}, "", false},
		{"auto mixed currencies", ModeAuto, []string{"EUR", "USD"}, "EUR", true},
		{"auto ignores unknown commodity", ModeAuto, []string{"USD", ""}, "", false},
		{"auto empty", ModeAuto, nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, ok := DisplayCurrency(tt.mode, tt.currencies, "EUR")
			if target != tt.wantTarget || ok != tt.wantOK {
				t.Errorf("DisplayCurrency() = (%q, %v), want (%q, %v)", target, ok, tt.wantTarget, tt.wantOK)
			}
		})
	}
}
