// scraper/csv_parser.go
package scraper

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jszwec/csvutil"

	"github.com/maous26/GG2-sub000/models"
	"github.com/maous26/GG2-sub000/utils"
)

// lineReader counts the records handed to the decoder so a bad row can be
// skipped without losing track of position.
type lineReader struct {
	r     *csv.Reader
	lines int
}

func (l *lineReader) Read() ([]string, error) {
	rec, err := l.r.Read()
	if !errors.Is(err, io.EOF) {
		l.lines++
	}
	return rec, err
}

// ParseRouteCatalogCsv decodes strategic routes from CSV. Headers must match the
// csv tags of models.StrategicRoute. A row that cannot be decoded is logged and
// skipped; skipped reports how many.
func ParseRouteCatalogCsv(reader io.Reader, logger *slog.Logger) (routes []models.StrategicRoute, skipped int, err error) {
	logger = utils.OrNop(logger)

	cr := csv.NewReader(reader)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	lr := &lineReader{r: cr}

	// csvutil takes the first line as the header and maps columns by tag.
	decoder, err := csvutil.NewDecoder(lr)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create CSV decoder for route catalog: %w", err)
	}

	for {
		var r models.StrategicRoute
		before := lr.lines
		err := decoder.Decode(&r)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if lr.lines == before {
				return nil, skipped, fmt.Errorf("failed to decode route catalog CSV: %w", err)
			}
			logger.Warn("skipping invalid catalog row", "line", lr.lines, "error", err)
			skipped++
			continue
		}
		routes = append(routes, r)
	}

	logger.Info("parsed route catalog", "routes", len(routes), "skipped", skipped)
	return routes, skipped, nil
}
