// scraper/provider.go
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/maous26/GG2-sub000/config"
	"github.com/maous26/GG2-sub000/models"
)

// FareProvider queries an upstream fare source for one route.
// An empty, non-nil error-free result means the upstream had no offers.
type FareProvider interface {
	Name() string
	Search(ctx context.Context, route models.StrategicRoute, opts models.SearchOptions) ([]models.PricedItinerary, error)
}

// HTTPClient is the subset of *http.Client the providers use.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ErrMalformedResponse is returned when the upstream answered but the body
// could not be understood. Like a transport failure it is retried, since
// upstreams occasionally serve truncated or error pages with a 200.
var ErrMalformedResponse = errors.New("malformed upstream response")

type malformedError struct {
	reason string
	err    error
}

func (e *malformedError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrMalformedResponse, e.reason, e.err)
	}
	return fmt.Sprintf("%s: %s", ErrMalformedResponse, e.reason)
}

func (e *malformedError) Unwrap() []error {
	if e.err != nil {
		return []error{ErrMalformedResponse, e.err}
	}
	return []error{ErrMalformedResponse}
}

func (e *malformedError) Retryable() bool { return true }

func malformed(reason string, err error) error {
	return &malformedError{reason: reason, err: err}
}

// StatusError is a non-2xx upstream answer.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("upstream status %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("upstream status %d", e.Code)
}

// Retryable is true for throttling and server errors.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// NewProvider builds the provider selected in cfg.
func NewProvider(cfg config.ProviderConfig, client HTTPClient, logger *slog.Logger) (FareProvider, error) {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	switch cfg.Kind {
	case "", "api":
		return NewAPIProvider(cfg.BaseURL, cfg.APIKey, cfg.ResultLimit, client, logger), nil
	case "html":
		return NewFarePageScraper(cfg.BaseURL, client, logger), nil
	}
	return nil, fmt.Errorf("unknown provider kind %q", cfg.Kind)
}

// cabinCode maps a cabin name to the single-letter code used upstream.
func cabinCode(cabin string) string {
	switch cabin {
	case models.CabinPremiumEconomy:
		return "W"
	case models.CabinBusiness:
		return "C"
	case models.CabinFirst:
		return "F"
	}
	return "M"
}
