// Package parser turns the text of an extracted data block into canonical
// market records. Two row encodings exist in the wild: monthly quartile rows
// carrying all four monetary fields, and bare single-price rows from which
// quartiles have to be derived.
package parser

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/brickpulse/brickpulse/models"
)

// Quartile rows look like:
//
//	[new Date(2022, 0, 1), 79.35, 81.00, 85.96, 89.27, 'January 2022   $81.00 - $85.96']
//
// Single-price rows look like:
//
//	[new Date(2008, 3, 28), 18.00, '$18.00', null, null]
//
// JS Date months are zero-based in both. The site emits the Date arguments
// both with and without a space after the comma, so the separators inside
// Date(...) accept either spacing.
var (
	quartileRow    = regexp.MustCompile(`\[new Date\((\d+),\s*(\d+),\s*(\d+)\), ([\d.]+), ([\d.]+), ([\d.]+), ([\d.]+), '([^']+)'\]`)
	singlePriceRow = regexp.MustCompile(`\[new Date\((\d+),\s*(\d+),\s*(\d+)\), ([\d.]+), '\$([\d.]+)', null, null\]`)
)

// Derived-quartile multipliers applied to a single observed price.
const (
	lowFactor  = 0.9
	q1Factor   = 0.8
	q3Factor   = 1.1
	highFactor = 1.2
)

// ParseQuartileRows extracts every quartile-grammar row from a block.
// The source encodes monthly buckets with an arbitrary day component, so
// dates are pinned to the first of the stated month. A block with no
// matching rows yields an empty slice, not an error.
func ParseQuartileRows(itemID, block string) []models.MarketRecord {
	matches := quartileRow.FindAllStringSubmatch(block, -1)
	records := make([]models.MarketRecord, 0, len(matches))
	for _, m := range matches {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		records = append(records, models.MarketRecord{
			ItemID:  itemID,
			Date:    time.Date(year, time.Month(month+1), 1, 0, 0, 0, 0, time.UTC),
			Low:     mustFloat(m[4]),
			Q1:      mustFloat(m[5]),
			Q3:      mustFloat(m[6]),
			High:    mustFloat(m[7]),
			Tooltip: m[8],
		})
	}
	return records
}

// ParseSinglePriceRows extracts every single-price-grammar row from a block.
// Dates keep full day precision and the monetary fields are derived from the
// one observed price; the tooltip tags the record as approximated.
func ParseSinglePriceRows(itemID, block string) []models.MarketRecord {
	matches := singlePriceRow.FindAllStringSubmatch(block, -1)
	records := make([]models.MarketRecord, 0, len(matches))
	for _, m := range matches {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		price := mustFloat(m[4])
		records = append(records, models.MarketRecord{
			ItemID:  itemID,
			Date:    time.Date(year, time.Month(month+1), day, 0, 0, 0, 0, time.UTC),
			Low:     round2(lowFactor * price),
			Q1:      round2(q1Factor * price),
			Q3:      round2(q3Factor * price),
			High:    round2(highFactor * price),
			Tooltip: fmt.Sprintf("$%.2f (approximated quartiles)", price),
		})
	}
	return records
}

func mustFloat(s string) float64 {
	// The pattern only matches digits and dots, so this cannot fail on
	// matched input.
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
