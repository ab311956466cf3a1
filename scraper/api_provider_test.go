package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maous26/GG2-sub000/models"
	"github.com/maous26/GG2-sub000/utils"
)

var testRoute = models.StrategicRoute{Origin: "CDG", Destination: "JFK", Tier: 1}

func testOptions() models.SearchOptions {
	ret := time.Date(2026, 11, 25, 0, 0, 0, 0, time.UTC)
	return models.SearchOptions{
		DepartureDate: time.Date(2026, 11, 18, 0, 0, 0, 0, time.UTC),
		ReturnDate:    &ret,
		Adults:        1,
		Cabin:         models.CabinEconomy,
		Currency:      "EUR",
	}
}

func TestAPIProviderSearch(t *testing.T) {
	var gotQuery, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/search", r.URL.Path)
		gotQuery = r.URL.RawQuery
		gotKey = r.Header.Get("apikey")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"currency": "EUR",
			"data": [
				{"price": 412.499, "airlines": ["AF"], "local_departure": "2026-11-18T08:15:00.000Z",
				 "duration": {"total": 30300},
				 "route": [{"return": 0}, {"return": 0}, {"return": 1, "local_departure": "2026-11-25T18:00:00.000Z"}],
				 "deep_link": "https://book.example/1"},
				{"price": "0", "airlines": ["XX"]},
				{"price": 530, "airlines": ["DL", "AF"], "route": [{"return": 0}]}
			]
		}`))
	}))
	defer srv.Close()

	p := NewAPIProvider(srv.URL, "k-123", 20, srv.Client(), nil)
	its, err := p.Search(context.Background(), testRoute, testOptions())
	require.NoError(t, err)
	require.Len(t, its, 2)

	assert.Equal(t, "k-123", gotKey)
	assert.Contains(t, gotQuery, "fly_from=CDG")
	assert.Contains(t, gotQuery, "date_from=18%2F11%2F2026")
	assert.Contains(t, gotQuery, "limit=20")

	first := its[0]
	assert.Equal(t, 412.5, first.Price)
	assert.Equal(t, "EUR", first.Currency)
	assert.Equal(t, "AF", first.Airline)
	assert.Equal(t, 1, first.Stops)
	assert.Equal(t, 505, first.DurationMinutes)
	require.NotNil(t, first.ReturnDate)
	assert.Equal(t, 25, first.ReturnDate.Day())
	assert.Equal(t, "https://book.example/1", first.DeepLink)

	assert.Equal(t, "DL,AF", its[1].Airline)
	assert.Equal(t, 0, its[1].Stops)
}

func TestAPIProviderEmptyResultIsValid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"currency":"EUR","data":[]}`))
	}))
	defer srv.Close()

	its, err := NewAPIProvider(srv.URL, "", 0, srv.Client(), nil).Search(context.Background(), testRoute, testOptions())
	require.NoError(t, err)
	assert.Empty(t, its)
}

func TestAPIProviderMalformed(t *testing.T) {
	for name, body := range map[string]string{
		"missing data": `{"currency":"EUR"}`,
		"not json":     `<html>oops</html>`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			_, err := NewAPIProvider(srv.URL, "", 0, srv.Client(), nil).Search(context.Background(), testRoute, testOptions())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedResponse))
			assert.True(t, utils.IsRetryable(err))
		})
	}
}

func TestAPIProviderStatusErrors(t *testing.T) {
	cases := []struct {
		code      int
		retryable bool
	}{
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusTooManyRequests, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.code)
		}))
		_, err := NewAPIProvider(srv.URL, "", 0, srv.Client(), nil).Search(context.Background(), testRoute, testOptions())
		srv.Close()

		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, tc.code, se.Code)
		assert.Equal(t, tc.retryable, utils.IsRetryable(err), "status %d", tc.code)
	}
}
