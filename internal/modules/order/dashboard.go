// README: Merchant home screen figures derived from the order list.
package order

import (
	"slices"
	"time"

	"delivery/internal/backend"
	"delivery/internal/types"

	"github.com/shopspring/decimal"
)

const dashboardPendingShown = 5

// Dashboard summarizes a merchant's orders. Week[6] is today, Week[0] six
// days ago.
type Dashboard struct {
	PendingCount int               `json:"pedidos_en_curso"`
	Pending      []backend.Order   `json:"pendientes"`
	TodayIncome  decimal.Decimal   `json:"ingresos_dia"`
	Week         []decimal.Decimal `json:"ventas_semana"`
	WeekTotal    decimal.Decimal   `json:"total_semana"`
}

// BuildDashboard computes the merchant figures at now. Only completed orders
// count as income; orders with an unreadable creation date are skipped.
func BuildDashboard(orders []backend.Order, now time.Time) Dashboard {
	pending := PendingOf(orders)
	slices.SortStableFunc(pending, func(a, b backend.Order) int {
		switch {
		case a.NumeroOrden > b.NumeroOrden:
			return -1
		case a.NumeroOrden < b.NumeroOrden:
			return 1
		}
		return 0
	})

	week := make([]decimal.Decimal, 7)
	for i := range week {
		week[i] = decimal.Zero
	}
	today := decimal.Zero
	y, m, d := now.Date()

	for _, o := range orders {
		if !o.HasStatus(backend.StatusCompleted) {
			continue
		}
		created, ok := o.CreatedAt()
		if !ok {
			continue
		}
		created = created.In(now.Location())
		if cy, cm, cd := created.Date(); cy == y && cm == m && cd == d {
			today = today.Add(o.Total)
		}
		age := now.Sub(created)
		if age < 0 {
			continue
		}
		if days := int(age / (24 * time.Hour)); days < 7 {
			week[6-days] = week[6-days].Add(o.Total)
		}
	}

	total := decimal.Zero
	for _, v := range week {
		total = total.Add(v)
	}

	shown := pending
	if len(shown) > dashboardPendingShown {
		shown = shown[:dashboardPendingShown]
	}
	return Dashboard{
		PendingCount: len(pending),
		Pending:      shown,
		TodayIncome:  types.Round2(today),
		Week:         week,
		WeekTotal:    types.Round2(total),
	}
}
