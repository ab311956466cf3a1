// utils/airports.go
package utils

import "strings"

// NormalizeAirportCode converts 4-letter US ICAO codes (e.g., "KJFK") to 3-letter codes ("JFK").
// Other codes are returned as is. Converts to uppercase.
func NormalizeAirportCode(code string) string {
	upperCode := strings.ToUpper(strings.TrimSpace(code))
	if len(upperCode) == 4 && strings.HasPrefix(upperCode, "K") {
		return upperCode[1:]
	}
	return upperCode
}

// IsIATACode reports whether code is three ASCII letters once normalized.
func IsIATACode(code string) bool {
	c := NormalizeAirportCode(code)
	if len(c) != 3 {
		return false
	}
	for i := 0; i < len(c); i++ {
		if c[i] < 'A' || c[i] > 'Z' {
			return false
		}
	}
	return true
}

// NormalizeAirportList normalizes and de-duplicates a list of airport codes,
// dropping blanks. Order of first appearance is kept.
func NormalizeAirportList(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, raw := range codes {
		c := NormalizeAirportCode(raw)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// SplitAirportList parses a comma separated list such as "CDG, ORY".
func SplitAirportList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return NormalizeAirportList(strings.Split(raw, ","))
}
