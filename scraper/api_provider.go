// scraper/api_provider.go
package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/maous26/GG2-sub000/models"
	"github.com/maous26/GG2-sub000/utils"
)

// APIProvider queries a JSON flight search API (Tequila-style /v2/search).
type APIProvider struct {
	baseURL string
	apiKey  string
	limit   int
	client  HTTPClient
	logger  *slog.Logger
}

func NewAPIProvider(baseURL, apiKey string, limit int, client HTTPClient, logger *slog.Logger) *APIProvider {
	if limit <= 0 {
		limit = 50
	}
	return &APIProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		limit:   limit,
		client:  client,
		logger:  utils.OrNop(logger),
	}
}

func (p *APIProvider) Name() string { return "api" }

type apiSearchResponse struct {
	Currency string          `json:"currency"`
	Data     *[]apiItinerary `json:"data"`
}

type apiItinerary struct {
	Price          decimal.Decimal `json:"price"`
	Airlines       []string        `json:"airlines"`
	LocalDeparture string          `json:"local_departure"`
	Duration       struct {
		Total int `json:"total"`
	} `json:"duration"`
	Route []struct {
		Return         int    `json:"return"`
		LocalDeparture string `json:"local_departure"`
	} `json:"route"`
	DeepLink string `json:"deep_link"`
}

const apiDateLayout = "02/01/2006"

func (p *APIProvider) buildURL(route models.StrategicRoute, opts models.SearchOptions) string {
	q := url.Values{}
	q.Set("fly_from", route.Origin)
	q.Set("fly_to", route.Destination)
	q.Set("date_from", opts.DepartureDate.Format(apiDateLayout))
	q.Set("date_to", opts.DepartureDate.Format(apiDateLayout))
	if opts.ReturnDate != nil {
		q.Set("return_from", opts.ReturnDate.Format(apiDateLayout))
		q.Set("return_to", opts.ReturnDate.Format(apiDateLayout))
	}
	q.Set("adults", strconv.Itoa(max(opts.Adults, 1)))
	if opts.Children > 0 {
		q.Set("children", strconv.Itoa(opts.Children))
	}
	if opts.Infants > 0 {
		q.Set("infants", strconv.Itoa(opts.Infants))
	}
	q.Set("selected_cabins", cabinCode(opts.Cabin))
	if opts.Currency != "" {
		q.Set("curr", opts.Currency)
	}
	q.Set("limit", strconv.Itoa(p.limit))
	q.Set("sort", "price")
	return p.baseURL + "/v2/search?" + q.Encode()
}

// Search performs one upstream call. It never retries; the caller owns retry policy.
func (p *APIProvider) Search(ctx context.Context, route models.StrategicRoute, opts models.SearchOptions) ([]models.PricedItinerary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.buildURL(route, opts), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", route.Key(), err)
	}
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("apikey", p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request for %s failed: %w", route.Key(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response for %s: %w", route.Key(), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(snippet)}
	}

	var parsed apiSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, malformed("invalid JSON", err)
	}
	if parsed.Data == nil {
		return nil, malformed("missing data field", nil)
	}

	currency := parsed.Currency
	if currency == "" {
		currency = opts.Currency
	}
	out := make([]models.PricedItinerary, 0, len(*parsed.Data))
	for _, it := range *parsed.Data {
		price := it.Price.Round(2).InexactFloat64()
		if price <= 0 {
			p.logger.Debug("skipping itinerary without price", "route", route.Key())
			continue
		}
		out = append(out, p.toItinerary(it, price, currency, opts))
	}
	return out, nil
}

func (p *APIProvider) toItinerary(it apiItinerary, price float64, currency string, opts models.SearchOptions) models.PricedItinerary {
	pi := models.PricedItinerary{
		Price:           price,
		Currency:        strings.ToUpper(currency),
		Cabin:           opts.Cabin,
		DepartureDate:   opts.DepartureDate,
		DurationMinutes: it.Duration.Total / 60,
		DeepLink:        it.DeepLink,
	}
	if pi.Cabin == "" {
		pi.Cabin = models.CabinEconomy
	}
	if len(it.Airlines) > 0 {
		pi.Airline = strings.Join(it.Airlines, ",")
	}
	if d, ok := parseAPITime(it.LocalDeparture); ok {
		pi.DepartureDate = d
	}

	outbound := 0
	for _, leg := range it.Route {
		if leg.Return == 0 {
			outbound++
			continue
		}
		if pi.ReturnDate == nil {
			if d, ok := parseAPITime(leg.LocalDeparture); ok {
				pi.ReturnDate = &d
			}
		}
	}
	if outbound > 1 {
		pi.Stops = outbound - 1
	}
	if pi.ReturnDate == nil && opts.ReturnDate != nil {
		rd := *opts.ReturnDate
		pi.ReturnDate = &rd
	}
	return pi
}

func parseAPITime(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
