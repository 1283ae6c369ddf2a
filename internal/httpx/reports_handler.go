package httpx

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/go-order-settlement.git/internal/reports"
	"github.com/go-chi/chi/v5"
)

type ReportsHandler struct {
	Agg *reports.Aggregator
}

func (h *ReportsHandler) Register(r *chi.Mux) {
	r.Get("/reports/revenue", h.revenue)
	r.Get("/reports/sales", h.sales)
	r.Get("/reports/best-sellers", h.bestSellers)
	r.Get("/reports/dashboard", h.dashboard)
}

// from/to format RFC3339; default 30 hari terakhir.
func parseRange(r *http.Request) (time.Time, time.Time, bool) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return from, to, false
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return from, to, false
		}
		to = t
	}
	return from, to, true
}

func (h *ReportsHandler) revenue(w http.ResponseWriter, r *http.Request) {
	from, to, ok := parseRange(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid time range"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	rev, err := h.Agg.Revenue(ctx, from, to)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rev)
}

func (h *ReportsHandler) sales(w http.ResponseWriter, r *http.Request) {
	from, to, ok := parseRange(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid time range"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	s, err := h.Agg.Sales(ctx, from, to, 10)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *ReportsHandler) bestSellers(w http.ResponseWriter, r *http.Request) {
	from, to, ok := parseRange(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid time range"})
		return
	}
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	best, err := h.Agg.BestSellers(ctx, from, to, limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	if best == nil {
		best = []reports.ProductUnits{}
	}
	writeJSON(w, http.StatusOK, best)
}

func (h *ReportsHandler) dashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	d, err := h.Agg.Dashboard(ctx)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
