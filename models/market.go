package models

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical date format used in the CSV store.
const DateLayout = "2006-01-02"

// BlockCategory names the semantic meaning of an embedded data block.
// The source page never labels its blocks; meaning is assigned purely by
// ordinal position among the matches, in document order.
type BlockCategory int

const (
	BlockPriceHistory BlockCategory = iota
	BlockValueSales
	BlockListedSales
)

func (c BlockCategory) String() string {
	switch c {
	case BlockPriceHistory:
		return "price_history"
	case BlockValueSales:
		return "value_sales"
	case BlockListedSales:
		return "listed_sales"
	}
	return fmt.Sprintf("unknown_%d", int(c)+1)
}

// RawBlock is one unlabeled data-block span extracted from page markup.
type RawBlock struct {
	Index int
	Text  string
}

// Category maps the block's ordinal position to its semantic category.
func (b RawBlock) Category() BlockCategory {
	return BlockCategory(b.Index)
}

// MarketRecord is one observed price-quartile sample for one minifig.
// Records built from single-price rows carry derived quartiles and are
// tagged as approximated through their tooltip.
type MarketRecord struct {
	ItemID  string
	Date    time.Time
	Low     float64
	Q1      float64
	Q3      float64
	High    float64
	Tooltip string
}

// CSVRow renders the record in canonical store order:
// SW_ID, Date, Low, Q1, Q3, High, Tooltip.
func (r MarketRecord) CSVRow() []string {
	return []string{
		r.ItemID,
		r.Date.Format(DateLayout),
		fmt.Sprintf("%.2f", r.Low),
		fmt.Sprintf("%.2f", r.Q1),
		fmt.Sprintf("%.2f", r.Q3),
		fmt.Sprintf("%.2f", r.High),
		r.Tooltip,
	}
}

// Key is the dedup identity of the record. Two records with the same key
// are the same observation and must never both be persisted.
func (r MarketRecord) Key() string {
	return KeyFromRow(r.CSVRow())
}

// KeyFromRow builds the dedup key from a canonical CSV row.
func KeyFromRow(row []string) string {
	return strings.Join(row, "\x1f")
}
