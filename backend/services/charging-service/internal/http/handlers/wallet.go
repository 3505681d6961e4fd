package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"evcharge/backend/services/charging-service/internal/service"
)

// NewWalletHandler returns GET /api/users/{id}/wallet handler.
func NewWalletHandler(wallet *service.WalletService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := wallet.Summary(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"balance": summary.Balance,
			"summary": summary,
		})
	}
}

// NewTopUpHandler returns POST /api/users/{id}/wallet handler.
func NewTopUpHandler(wallet *service.WalletService, logger *zap.Logger) http.HandlerFunc {
	type request struct {
		Amount        float64 `json:"amount"`
		PaymentMethod string  `json:"paymentMethod"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		result, err := wallet.TopUp(r.Context(), mux.Vars(r)["id"], req.Amount, strings.ToLower(strings.TrimSpace(req.PaymentMethod)))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":      true,
			"newBalance":   result.Balance,
			"fee":          result.Fee,
			"bonus":        result.Bonus,
			"transactions": result.Transactions,
		})
	}
}

// NewTransactionsHandler returns GET /api/users/{id}/transactions handler.
func NewTransactionsHandler(wallet *service.WalletService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		txs, err := wallet.Transactions(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"transactions": txs,
		})
	}
}

// NewWalletOptionsHandler returns GET /api/wallet/options handler.
func NewWalletOptionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"topUpOptions":   service.TopUpOptions(),
			"paymentMethods": service.PaymentMethods(),
			"minAmount":      service.MinTopUp,
			"maxAmount":      service.MaxTopUp,
		})
	}
}
