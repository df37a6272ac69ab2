package pricing

import (
	"fmt"
	"strings"
)

// Unavailable is rendered in place of a price that could not be resolved.
const Unavailable = "—"

// minorDigits lists currencies whose minor unit is not hundredths.
var minorDigits = map[string]int{
	"JPY": 0, "KRW": 0, "VND": 0, "CLP": 0, "ISK": 0, "UGX": 0,
	"BHD": 3, "KWD": 3, "OMR": 3, "JOD": 3, "TND": 3,
}

// Money is an amount in minor units of a currency.
type Money struct {
	Amount   int64
	Currency string
}

// Digits returns the number of minor-unit digits for the currency.
func (m Money) Digits() int {
	if d, ok := minorDigits[strings.ToUpper(m.Currency)]; ok {
		return d
	}
	return 2
}

// String formats the amount as "12.34 USD".
func (m Money) String() string {
	code := strings.ToUpper(m.Currency)
	digits := m.Digits()
	if digits == 0 {
		return fmt.Sprintf("%d %s", m.Amount, code)
	}

	sign := ""
	amount := m.Amount
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	scale := int64(1)
	for i := 0; i < digits; i++ {
		scale *= 10
	}
	return fmt.Sprintf("%s%d.%0*d %s", sign, amount/scale, digits, amount%scale, code)
}

// Display renders the calculated amount of a result, or the neutral
// placeholder when no price is available.
func Display(r Result) string {
	if !r.Available {
		return Unavailable
	}
	return Money{Amount: r.CalculatedAmount, Currency: r.CurrencyCode}.String()
}
