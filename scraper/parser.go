package scraper

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"necc_scraper/identity"
	"necc_scraper/models"
)

// ErrTableNotFound means the page no longer carries the price grid, which is
// how upstream layout changes show up.
var ErrTableNotFound = errors.New("price table not found in HTML")

const maxDayColumn = 31

var digitRunRegex = regexp.MustCompile(`\d+`)

// ParsePriceTable extracts zone/day/rate triples from the NECC monthly grid.
// Rows are emitted in document order, days ascending within a row. Anything
// that is not a positive number for a real day of the month is skipped.
func ParsePriceTable(html, tableID string, year, month int) ([]models.ScrapedPrice, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("invalid month %d", month)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	table := doc.Find(fmt.Sprintf(`table[id=%q]`, tableID)).First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("%w: #%s", ErrTableNotFound, tableID)
	}

	lastDay := DaysInMonth(year, month)
	prices := []models.ScrapedPrice{}

	// Only rows owned by this table, not by any table nested inside it
	rows := table.Find("tr").FilterFunction(func(_ int, row *goquery.Selection) bool {
		return row.Closest("table").IsSelection(table)
	})

	rows.Each(func(_ int, row *goquery.Selection) {
		cells := row.ChildrenFiltered("td")
		if cells.Length() < 2 {
			return
		}

		label := cellText(cells.First())
		if identity.NormalizeZoneName(label) == "" {
			return
		}

		cells.Each(func(day int, cell *goquery.Selection) {
			if day == 0 || day > maxDayColumn || day > lastDay {
				return
			}

			price, ok := parsePrice(cellText(cell))
			if !ok {
				return
			}

			prices = append(prices, models.ScrapedPrice{
				ZoneLabel:      label,
				Date:           FormatDate(year, month, day),
				SuggestedPrice: price,
			})
		})
	})

	return prices, nil
}

// parsePrice takes the first run of digits in a cell. Empty cells, "-"
// placeholders, text without digits and non-positive values yield false.
func parsePrice(text string) (int, bool) {
	if text == "" || text == "-" {
		return 0, false
	}

	match := digitRunRegex.FindString(text)
	if match == "" {
		return 0, false
	}

	price, err := strconv.Atoi(match)
	if err != nil || price <= 0 {
		return 0, false
	}
	return price, true
}

func cellText(cell *goquery.Selection) string {
	text := strings.ReplaceAll(cell.Text(), "\u00a0", " ")
	return strings.TrimSpace(text)
}

// DaysInMonth returns the number of calendar days in month of year
func DaysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func FormatDate(year, month, day int) string {
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}
