// README: Money helpers shared by pricing and the merchant dashboard.
package types

import "github.com/shopspring/decimal"

// Amounts are USD unless stated otherwise; the backend converts to bolívares
// with an explicit exchange rate.
const CurrencyUSD = "USD"

// Round2 rounds half away from zero to cents.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
