// Package status decodes raw NUT status tokens and device variables into a
// structured per-refresh snapshot.
package status

import (
	"strconv"
	"strings"
	"time"

	"github.com/tbarrett/upswatch/internal/nut"
)

// PowerState describes where the load is drawing power from.
type PowerState string

const (
	PowerOnline    PowerState = "online"
	PowerOnBattery PowerState = "on-battery"
	PowerUnknown   PowerState = "unknown"
)

// ChargeState describes the battery charge direction.
type ChargeState string

const (
	ChargeCharging    ChargeState = "charging"
	ChargeDischarging ChargeState = "discharging"
	ChargeNeither     ChargeState = "neither"
)

// Flag is a decoded condition flag. Each flag maps 1:1 to a NUT status token.
type Flag string

const (
	FlagLowBattery     Flag = "low-battery"     // LB
	FlagReplaceBattery Flag = "replace-battery" // RB
	FlagBypass         Flag = "bypass"          // BYPASS
	FlagCalibrating    Flag = "calibrating"     // CAL
	FlagForcedOffline  Flag = "forced-offline"  // OFF
	FlagOverloaded     Flag = "overloaded"      // OVER
	FlagTrimming       Flag = "trimming"        // TRIM
	FlagBoosting       Flag = "boosting"        // BOOST
)

// flagTokens maps protocol tokens to flags in a fixed order so decoded
// flag slices are deterministic.
var flagTokens = []struct {
	token string
	flag  Flag
}{
	{"LB", FlagLowBattery},
	{"RB", FlagReplaceBattery},
	{"BYPASS", FlagBypass},
	{"CAL", FlagCalibrating},
	{"OFF", FlagForcedOffline},
	{"OVER", FlagOverloaded},
	{"TRIM", FlagTrimming},
	{"BOOST", FlagBoosting},
}

// Status is an immutable snapshot decoded from one variable refresh.
// Numeric fields are nil when the device does not report them; they are
// never defaulted to zero here.
type Status struct {
	Power  PowerState  `json:"power"`
	Charge ChargeState `json:"charge"`
	Flags  []Flag      `json:"flags"`

	BatteryCharge  *float64 `json:"battery_charge,omitempty"`
	Load           *float64 `json:"load,omitempty"`
	RuntimeSeconds *int64   `json:"runtime_seconds,omitempty"`
}

// HasFlag reports whether f was present in the decoded status.
func (s Status) HasFlag(f Flag) bool {
	for _, have := range s.Flags {
		if have == f {
			return true
		}
	}
	return false
}

// Runtime returns the remaining battery runtime, if the device reports one.
func (s Status) Runtime() (time.Duration, bool) {
	if s.RuntimeSeconds == nil {
		return 0, false
	}
	return time.Duration(*s.RuntimeSeconds) * time.Second, true
}

// Decode turns a raw ups.status string and the current variable map into a
// Status. It is total: unknown or garbled tokens are ignored, absent or
// unparsable numeric variables leave the corresponding field nil.
//
// Both OL and OB can appear in one status string on some devices; OL wins,
// matching the behaviour monitors have historically shown for that case.
func Decode(raw string, vars map[string]string) Status {
	tokens := make(map[string]bool)
	for _, tok := range strings.Fields(raw) {
		tokens[tok] = true
	}

	s := Status{
		Power:  PowerUnknown,
		Charge: ChargeNeither,
	}

	switch {
	case tokens["OL"]:
		s.Power = PowerOnline
	case tokens["OB"]:
		s.Power = PowerOnBattery
	}

	switch {
	case tokens["CHRG"]:
		s.Charge = ChargeCharging
	case tokens["DISCHRG"]:
		s.Charge = ChargeDischarging
	}

	for _, ft := range flagTokens {
		if tokens[ft.token] {
			s.Flags = append(s.Flags, ft.flag)
		}
	}

	s.BatteryCharge = parseFloat(vars[nut.VarBatteryCharge])
	s.Load = parseFloat(vars[nut.VarUPSLoad])
	s.RuntimeSeconds = parseSeconds(vars[nut.VarBatteryRuntime])

	return s
}

func parseFloat(v string) *float64 {
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return nil
	}
	return &f
}

// parseSeconds accepts both integral and fractional runtime values; drivers
// disagree on the format.
func parseSeconds(v string) *int64 {
	f := parseFloat(v)
	if f == nil {
		return nil
	}
	n := int64(*f)
	return &n
}
