// services/fingerprint.go
package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/maous26/GG2-sub000/models"
	"github.com/maous26/GG2-sub000/utils"
)

// Fingerprint hashes the normalized query tuple. Field order is fixed, codes
// are upper-cased and dates are reduced to the calendar day, so logically
// identical queries always share a key.
func Fingerprint(route models.StrategicRoute, opts models.SearchOptions) string {
	ret := "-"
	if opts.ReturnDate != nil && !opts.ReturnDate.IsZero() {
		ret = opts.ReturnDate.UTC().Format("2006-01-02")
	}
	cabin := strings.ToLower(strings.TrimSpace(opts.Cabin))
	if cabin == "" {
		cabin = models.CabinEconomy
	}
	parts := []string{
		utils.NormalizeAirportCode(route.Origin),
		utils.NormalizeAirportCode(route.Destination),
		opts.DepartureDate.UTC().Format("2006-01-02"),
		ret,
		fmt.Sprintf("adults=%d,children=%d,infants=%d", max(opts.Adults, 1), opts.Children, opts.Infants),
		cabin,
		strings.ToUpper(strings.TrimSpace(opts.Currency)),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
