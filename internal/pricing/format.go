package pricing

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
)

// CurrencySymbol prefixes every formatted price (Indian rupee).
const CurrencySymbol = "₹"

const displayPattern = "#,###.##"

// Format renders price as "₹12,345.67". When the grouped form cannot be built
// it falls back to an ungrouped two-decimal rendering.
func Format(price float64) string {
	s, err := formatGrouped(price)
	if err != nil {
		log.Error().Err(err).Float64("price", price).Msg("price formatting error")
		return fmt.Sprintf("%s%.2f", CurrencySymbol, price)
	}
	return s
}

func formatGrouped(price float64) (s string, err error) {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return "", fmt.Errorf("cannot group non-finite price %v", price)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("format price: %v", r)
		}
	}()

	return CurrencySymbol + humanize.FormatFloat(displayPattern, price), nil
}
