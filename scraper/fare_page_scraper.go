// scraper/fare_page_scraper.go
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/maous26/GG2-sub000/models"
	"github.com/maous26/GG2-sub000/utils"
)

// Selectors of the public fare results page.
const (
	fareResultsSelector = ".fare-results"
	fareRowSelector     = ".fare-row"
	bookLinkSelector    = "a.book"
)

// FarePageScraper reads offers from a fare results HTML page, for upstreams
// that expose no JSON API. Each offer is a row like:
//
//	<div class="fare-row" data-price="412.50" data-currency="EUR" data-airline="AF"
//	     data-stops="0" data-duration="505"><a class="book" href="...">Book</a></div>
type FarePageScraper struct {
	baseURL string
	client  HTTPClient
	logger  *slog.Logger
}

func NewFarePageScraper(baseURL string, client HTTPClient, logger *slog.Logger) *FarePageScraper {
	return &FarePageScraper{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  utils.OrNop(logger),
	}
}

func (s *FarePageScraper) Name() string { return "html" }

func (s *FarePageScraper) pageURL(route models.StrategicRoute, opts models.SearchOptions) string {
	q := url.Values{}
	q.Set("depart", opts.DepartureDate.Format("2006-01-02"))
	if opts.ReturnDate != nil {
		q.Set("return", opts.ReturnDate.Format("2006-01-02"))
	}
	q.Set("adults", strconv.Itoa(max(opts.Adults, 1)))
	if opts.Cabin != "" {
		q.Set("cabin", opts.Cabin)
	}
	if opts.Currency != "" {
		q.Set("currency", opts.Currency)
	}
	return fmt.Sprintf("%s/fares/%s-%s?%s", s.baseURL, route.Origin, route.Destination, q.Encode())
}

// Search fetches and parses one results page.
func (s *FarePageScraper) Search(ctx context.Context, route models.StrategicRoute, opts models.SearchOptions) ([]models.PricedItinerary, error) {
	pageURL := s.pageURL(route, opts)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", route.Key(), err)
	}
	req.Header.Set("Accept", "text/html")

	res, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get URL %s: %w", pageURL, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: res.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, malformed("unparseable HTML", err)
	}
	return s.parseFares(doc, route, opts)
}

func (s *FarePageScraper) parseFares(doc *goquery.Document, route models.StrategicRoute, opts models.SearchOptions) ([]models.PricedItinerary, error) {
	container := doc.Find(fareResultsSelector)
	if container.Length() == 0 {
		s.logger.Warn("fare results container not found", "route", route.Key(), "selector", fareResultsSelector)
		return nil, malformed("fare results container not found", nil)
	}

	out := []models.PricedItinerary{}
	container.Find(fareRowSelector).Each(func(i int, row *goquery.Selection) {
		rawPrice, _ := row.Attr("data-price")
		price, err := strconv.ParseFloat(strings.TrimSpace(rawPrice), 64)
		if err != nil || price <= 0 {
			s.logger.Debug("skipping fare row without usable price", "route", route.Key(), "row", i, "raw", rawPrice)
			return
		}
		it := models.PricedItinerary{
			Price:         utils.Round2(price),
			Currency:      strings.ToUpper(attrOr(row, "data-currency", opts.Currency)),
			Cabin:         attrOr(row, "data-cabin", opts.Cabin),
			Airline:       strings.TrimSpace(attrOr(row, "data-airline", "")),
			DepartureDate: opts.DepartureDate,
		}
		if it.Cabin == "" {
			it.Cabin = models.CabinEconomy
		}
		if opts.ReturnDate != nil {
			rd := *opts.ReturnDate
			it.ReturnDate = &rd
		}
		if n, err := strconv.Atoi(attrOr(row, "data-stops", "0")); err == nil && n > 0 {
			it.Stops = n
		}
		if n, err := strconv.Atoi(attrOr(row, "data-duration", "0")); err == nil && n > 0 {
			it.DurationMinutes = n
		}
		if href, ok := row.Find(bookLinkSelector).First().Attr("href"); ok {
			it.DeepLink = s.absoluteLink(href)
		}
		out = append(out, it)
	})
	return out, nil
}

func (s *FarePageScraper) absoluteLink(href string) string {
	u, err := url.Parse(href)
	if err != nil || u.IsAbs() {
		return href
	}
	base, err := url.Parse(s.baseURL + "/")
	if err != nil {
		return href
	}
	return base.ResolveReference(u).String()
}

func attrOr(sel *goquery.Selection, name, fallback string) string {
	if v, ok := sel.Attr(name); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}
