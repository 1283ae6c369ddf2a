package reports

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type Revenue struct {
	From       time.Time       `json:"from"`
	To         time.Time       `json:"to"`
	OrderCount int             `json:"order_count"`
	Total      decimal.Decimal `json:"total"`
}

type Sales struct {
	From            time.Time      `json:"from"`
	To              time.Time      `json:"to"`
	CompletedOrders int            `json:"completed_orders"`
	BestSellers     []ProductUnits `json:"best_sellers"`
}

type Dashboard struct {
	StatusCounts map[string]int  `json:"status_counts"`
	Revenue      decimal.Decimal `json:"revenue_all_time"`
	BestSellers  []ProductUnits  `json:"best_sellers"`
}

// Aggregator baca-saja di atas data orders. Agregasi uang dihitung di Go
// pakai decimal, bukan SUM numeric di SQL, biar konsisten dengan domain.
type Aggregator struct {
	Store Store
}

func (a *Aggregator) Revenue(ctx context.Context, from, to time.Time) (*Revenue, error) {
	rows, err := a.Store.CompletedOrders(ctx, from, to)
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.Total)
	}
	return &Revenue{From: from, To: to, OrderCount: len(rows), Total: total}, nil
}

// BestSellers urut units desc; seri dipecah product_id asc supaya
// hasilnya deterministik antar run.
func (a *Aggregator) BestSellers(ctx context.Context, from, to time.Time, limit int) ([]ProductUnits, error) {
	rows, err := a.Store.UnitsByProduct(ctx, from, to)
	if err != nil {
		return nil, err
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Units != rows[j].Units {
			return rows[i].Units > rows[j].Units
		}
		return rows[i].ProductID < rows[j].ProductID
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (a *Aggregator) Sales(ctx context.Context, from, to time.Time, limit int) (*Sales, error) {
	completed, err := a.Store.CompletedOrders(ctx, from, to)
	if err != nil {
		return nil, err
	}
	best, err := a.BestSellers(ctx, from, to, limit)
	if err != nil {
		return nil, err
	}
	return &Sales{From: from, To: to, CompletedOrders: len(completed), BestSellers: best}, nil
}

func (a *Aggregator) Dashboard(ctx context.Context) (*Dashboard, error) {
	counts, err := a.Store.StatusCounts(ctx)
	if err != nil {
		return nil, err
	}
	// rentang all-time
	from := time.Unix(0, 0).UTC()
	to := time.Now().UTC().Add(24 * time.Hour)
	rev, err := a.Revenue(ctx, from, to)
	if err != nil {
		return nil, err
	}
	best, err := a.BestSellers(ctx, from, to, 5)
	if err != nil {
		return nil, err
	}
	return &Dashboard{StatusCounts: counts, Revenue: rev.Total, BestSellers: best}, nil
}
