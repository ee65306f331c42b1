// Package instrument derives per-symbol metadata (pip size, correlation
// groups) from the naming convention used by forex brokers: "EUR_USD",
// "USD_JPY", "XAU_USD".
package instrument

import "strings"

// PipSize returns the smallest standard price increment for the instrument:
// 0.01 for JPY crosses and metals, 0.0001 for everything else.
func PipSize(instrument string) float64 {
	if strings.Contains(instrument, "_JPY") || IsMetal(instrument) {
		return 0.01
	}
	return 0.0001
}

// IsMetal reports whether the instrument is a spot metal (gold/silver).
func IsMetal(instrument string) bool {
	return strings.HasPrefix(instrument, "XAU") || strings.HasPrefix(instrument, "XAG")
}

// SpreadPips converts a bid/ask spread into pips for the instrument.
func SpreadPips(instrument string, bid, ask float64) float64 {
	if ask <= bid {
		return 0
	}
	return (ask - bid) / PipSize(instrument)
}

// Static correlation table. Every currency leg is its own group, plus a few
// blocs whose members historically move together.
var blocs = map[string][]string{
	"METALS":  {"XAU", "XAG"},
	"COMDOLL": {"AUD", "NZD", "CAD"},
	"EUROPE":  {"EUR", "GBP", "CHF"},
}

func legs(instrument string) []string {
	return strings.Split(instrument, "_")
}

// Groups returns every correlation-group key the instrument belongs to: its
// currency legs plus any bloc containing one of them.
func Groups(instrument string) []string {
	out := legs(instrument)
	for name, members := range blocs {
		for _, m := range members {
			if containsLeg(out, m) {
				out = append(out, name)
				break
			}
		}
	}
	return out
}

func containsLeg(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// Correlated reports whether two instruments share any correlation group.
func Correlated(a, b string) bool {
	ga := Groups(a)
	for _, g := range Groups(b) {
		if containsLeg(ga, g) {
			return true
		}
	}
	return false
}

// CorrelatedCount counts how many already-open instruments are correlated
// with the candidate. The candidate itself is excluded.
func CorrelatedCount(candidate string, open []string) int {
	n := 0
	for _, inst := range open {
		if inst == candidate {
			continue
		}
		if Correlated(candidate, inst) {
			n++
		}
	}
	return n
}
