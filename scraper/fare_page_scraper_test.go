package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const farePage = `<html><body>
<section class="fare-results">
  <div class="fare-row" data-price="389.90" data-currency="eur" data-airline="AF" data-stops="0" data-duration="505">
    <a class="book" href="/book/af-1">Book</a>
  </div>
  <div class="fare-row" data-price="n/a" data-airline="ZZ"></div>
  <div class="fare-row" data-price="455" data-airline="DL" data-stops="1">
    <a class="book" href="https://partner.example/x">Book</a>
  </div>
</section>
</body></html>`

func TestFarePageScraperSearch(t *testing.T) {
	var gotPath, gotDepart string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotDepart = r.URL.Query().Get("depart")
		_, _ = w.Write([]byte(farePage))
	}))
	defer srv.Close()

	s := NewFarePageScraper(srv.URL, srv.Client(), nil)
	its, err := s.Search(context.Background(), testRoute, testOptions())
	require.NoError(t, err)

	assert.Equal(t, "/fares/CDG-JFK", gotPath)
	assert.Equal(t, "2026-11-18", gotDepart)
	require.Len(t, its, 2)
	assert.Equal(t, 389.9, its[0].Price)
	assert.Equal(t, "EUR", its[0].Currency)
	assert.Equal(t, 505, its[0].DurationMinutes)
	assert.Equal(t, srv.URL+"/book/af-1", its[0].DeepLink)
	assert.Equal(t, 1, its[1].Stops)
	assert.Equal(t, "EUR", its[1].Currency, "falls back to the requested currency")
	assert.Equal(t, "https://partner.example/x", its[1].DeepLink)
}

func TestFarePageScraperEmptyAndMalformed(t *testing.T) {
	body := `<div class="fare-results"></div>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()
	s := NewFarePageScraper(srv.URL, srv.Client(), nil)

	its, err := s.Search(context.Background(), testRoute, testOptions())
	require.NoError(t, err)
	assert.Empty(t, its)

	body = `<html><body>maintenance</body></html>`
	_, err = s.Search(context.Background(), testRoute, testOptions())
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestFarePageScraperStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewFarePageScraper(srv.URL, srv.Client(), nil).Search(context.Background(), testRoute, testOptions())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.True(t, se.Retryable())
}
