package httpx

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/ariefcatur/go-order-settlement.git/internal/payment"
	"github.com/go-chi/chi/v5"
)

type PaymentsHandler struct {
	Svc *payment.Service
}

type initiatePaymentReq struct {
	Method payment.Method `json:"method"`
}

type initiatePaymentResp struct {
	Payment *payment.Payment        `json:"payment"`
	Gateway *payment.InitiateResult `json:"gateway"`
}

type settleResp struct {
	Applied bool   `json:"applied"`
	Reason  string `json:"reason,omitempty"`
}

func (h *PaymentsHandler) Register(r *chi.Mux) {
	r.Post("/orders/{id}/payments", h.initiate)
	r.Post("/payments/webhook", h.webhook)
	r.Post("/payments/cod/{code}/settle", h.settleCOD)
	r.Post("/payments/{txID}/verify", h.verify)
}

func (h *PaymentsHandler) initiate(w http.ResponseWriter, r *http.Request) {
	var req initiatePaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	p, res, err := h.Svc.Initiate(ctx, chi.URLParam(r, "id"), req.Method)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, initiatePaymentResp{Payment: p, Gateway: res})
}

// webhook selalu 200 untuk event yang bisa diparse, termasuk duplikat dan
// conflict, supaya provider berhenti retry. Error infra -> 500, biar
// provider kirim ulang nanti.
func (h *PaymentsHandler) webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 64<<10))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body too large"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	res, err := h.Svc.HandleGatewayCallback(ctx, body)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settleResp{Applied: res.Applied, Reason: string(res.Reason)})
}

func (h *PaymentsHandler) settleCOD(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	res, err := h.Svc.SettleCOD(ctx, chi.URLParam(r, "code"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settleResp{Applied: res.Applied, Reason: string(res.Reason)})
}

func (h *PaymentsHandler) verify(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	res, err := h.Svc.Verify(ctx, chi.URLParam(r, "txID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settleResp{Applied: res.Applied, Reason: string(res.Reason)})
}
