package status

import (
	"testing"
	"time"
)

func TestDecode_PowerAndCharge(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		power  PowerState
		charge ChargeState
	}{
		{"online charging", "OL CHRG", PowerOnline, ChargeCharging},
		{"on battery discharging", "OB DISCHRG", PowerOnBattery, ChargeDischarging},
		{"empty status", "", PowerUnknown, ChargeNeither},
		{"online only", "OL", PowerOnline, ChargeNeither},
		{"battery only", "OB", PowerOnBattery, ChargeNeither},
		{"both tokens, OL wins", "OL OB", PowerOnline, ChargeNeither},
		{"transitional OL discharging", "OL DISCHRG", PowerOnline, ChargeDischarging},
		{"unknown tokens ignored", "FSD WAT", PowerUnknown, ChargeNeither},
		{"lowercase not a token", "ol chrg", PowerUnknown, ChargeNeither},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Decode(tt.raw, nil)
			if s.Power != tt.power {
				t.Errorf("Power = %q, want %q", s.Power, tt.power)
			}
			if s.Charge != tt.charge {
				t.Errorf("Charge = %q, want %q", s.Charge, tt.charge)
			}
		})
	}
}

func TestDecode_Flags(t *testing.T) {
	s := Decode("OB DISCHRG LB", nil)
	if s.Power != PowerOnBattery {
		t.Errorf("Power = %q, want %q", s.Power, PowerOnBattery)
	}
	if len(s.Flags) != 1 || s.Flags[0] != FlagLowBattery {
		t.Errorf("Flags = %v, want [%s]", s.Flags, FlagLowBattery)
	}

	s = Decode("OL RB BYPASS CAL OFF OVER TRIM BOOST LB", nil)
	want := []Flag{
		FlagLowBattery, FlagReplaceBattery, FlagBypass, FlagCalibrating,
		FlagForcedOffline, FlagOverloaded, FlagTrimming, FlagBoosting,
	}
	if len(s.Flags) != len(want) {
		t.Fatalf("Flags = %v, want all %d flags", s.Flags, len(want))
	}
	for _, f := range want {
		if !s.HasFlag(f) {
			t.Errorf("HasFlag(%q) = false, want true", f)
		}
	}
}

func TestDecode_FlagOrderDeterministic(t *testing.T) {
	a := Decode("BOOST LB TRIM", nil)
	b := Decode("TRIM BOOST LB", nil)
	if len(a.Flags) != len(b.Flags) {
		t.Fatalf("flag counts differ: %v vs %v", a.Flags, b.Flags)
	}
	for i := range a.Flags {
		if a.Flags[i] != b.Flags[i] {
			t.Errorf("flag order differs at %d: %v vs %v", i, a.Flags, b.Flags)
		}
	}
}

func TestDecode_NumericVariables(t *testing.T) {
	s := Decode("", map[string]string{"battery.charge": "87"})
	if s.Power != PowerUnknown || s.Charge != ChargeNeither {
		t.Errorf("empty status decoded to %q/%q, want unknown/neither", s.Power, s.Charge)
	}
	if s.BatteryCharge == nil || *s.BatteryCharge != 87 {
		t.Errorf("BatteryCharge = %v, want 87", s.BatteryCharge)
	}
	if s.Load != nil {
		t.Errorf("Load = %v, want nil", *s.Load)
	}
	if s.RuntimeSeconds != nil {
		t.Errorf("RuntimeSeconds = %v, want nil", *s.RuntimeSeconds)
	}
}

func TestDecode_GarbledNumericsStayNil(t *testing.T) {
	s := Decode("OL", map[string]string{
		"battery.charge":  "n/a",
		"ups.load":        "",
		"battery.runtime": "soon",
	})
	if s.BatteryCharge != nil {
		t.Errorf("BatteryCharge = %v, want nil", *s.BatteryCharge)
	}
	if s.Load != nil {
		t.Errorf("Load = %v, want nil", *s.Load)
	}
	if s.RuntimeSeconds != nil {
		t.Errorf("RuntimeSeconds = %v, want nil", *s.RuntimeSeconds)
	}
}

func TestDecode_FractionalRuntime(t *testing.T) {
	s := Decode("OL", map[string]string{"battery.runtime": "4890.5"})
	if s.RuntimeSeconds == nil || *s.RuntimeSeconds != 4890 {
		t.Errorf("RuntimeSeconds = %v, want 4890", s.RuntimeSeconds)
	}
	d, ok := s.Runtime()
	if !ok || d != 4890*time.Second {
		t.Errorf("Runtime() = %v, %v, want 4890s, true", d, ok)
	}
}

// Decoded from a captured steady-state poll of a CyberPower CP1500EPFCLCD.
func TestDecode_RecordedSnapshot(t *testing.T) {
	vars := map[string]string{
		"ups.status":      "OL",
		"battery.charge":  "100",
		"battery.runtime": "4890",
		"ups.load":        "8",
		"ups.model":       "CP1500EPFCLCD",
		"input.voltage":   "241",
	}
	s := Decode(vars["ups.status"], vars)

	if s.Power != PowerOnline {
		t.Errorf("Power = %q, want %q", s.Power, PowerOnline)
	}
	if len(s.Flags) != 0 {
		t.Errorf("Flags = %v, want none", s.Flags)
	}
	if s.BatteryCharge == nil || *s.BatteryCharge != 100 {
		t.Errorf("BatteryCharge = %v, want 100", s.BatteryCharge)
	}
	if s.Load == nil || *s.Load != 8 {
		t.Errorf("Load = %v, want 8", s.Load)
	}
	if s.RuntimeSeconds == nil || *s.RuntimeSeconds != 4890 {
		t.Errorf("RuntimeSeconds = %v, want 4890", s.RuntimeSeconds)
	}
}

func TestRuntime_Absent(t *testing.T) {
	var s Status
	if _, ok := s.Runtime(); ok {
		t.Error("Runtime() ok = true for absent runtime, want false")
	}
}
