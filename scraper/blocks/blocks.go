// Package blocks locates the embedded chart-data blocks in rendered page
// markup. The source page feeds each chart through a row-insertion call of
// the form data.addRows([ ... ]); and never labels which chart a block
// belongs to. The only disambiguator is document order, so extraction
// preserves it and callers assign meaning by ordinal position.
package blocks

import (
	"regexp"

	"github.com/brickpulse/brickpulse/models"
)

// Marker is the opening of the row-insertion call syntax. Its presence in
// markup signals that the client-side charts have rendered their data.
const Marker = "data.addRows(["

var blockPattern = regexp.MustCompile(`(?s)data\.addRows\(\[(.*?)\]\);`)

// Extract returns all non-overlapping data blocks in document order.
// No semantic validation happens here; an empty slice means the page
// carried no chart data at all.
func Extract(markup string) []models.RawBlock {
	matches := blockPattern.FindAllStringSubmatch(markup, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]models.RawBlock, 0, len(matches))
	for i, m := range matches {
		out = append(out, models.RawBlock{Index: i, Text: m[1]})
	}
	return out
}
