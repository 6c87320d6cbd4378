package handlers

import (
	"errors"
	"net/http"

	"github.com/svxarena/tourneyzone/middleware"
	"github.com/svxarena/tourneyzone/models"
	"github.com/svxarena/tourneyzone/services"
)

const defaultHistoryLimit = 50

type WalletHandler struct {
	walletService services.WalletService
}

func NewWalletHandler(ws services.WalletService) *WalletHandler {
	return &WalletHandler{walletService: ws}
}

// GetWallet godoc
// @Summary      Balance and the most recent transactions
// @Tags         wallet
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  services.WalletSummary
// @Router       /wallet [get]
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	summary, err := h.walletService.GetWallet(r.Context(), userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"wallet": summary}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Transactions godoc
// @Summary      Transaction history, newest first
// @Tags         wallet
// @Produce      json
// @Security     BearerAuth
// @Param        direction      query  string  false  "credit or debit"
// @Param        status         query  string  false  "processing or done"
// @Param        source         query  string  false  "transaction source"
// @Param        tournament_id  query  int     false  "tournament id"
// @Param        limit          query  int     false  "page size"
// @Param        offset         query  int     false  "offset"
// @Success      200  {object}  map[string]interface{}
// @Router       /wallet/transactions [get]
func (h *WalletHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	filter, err := transactionFilterFromQuery(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	txs, err := h.walletService.History(r.Context(), userID, filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"transactions": txs}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Deposit godoc
// @Summary      File a manual UPI deposit claim
// @Tags         wallet
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input  body      services.DepositInput  true  "amount in paise and UTR"
// @Success      201    {object}  map[string]interface{}
// @Failure      409    {object}  map[string]interface{}
// @Router       /wallet/deposits [post]
func (h *WalletHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input services.DepositInput
	if !decodeAndValidate(w, r, &input) {
		return
	}

	id, err := h.walletService.RequestDeposit(r.Context(), userID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	resp := jsonResponse{"transaction_id": id, "status": models.TxStatusProcessing}
	if err := writeJSON(w, http.StatusCreated, resp, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Withdraw godoc
// @Summary      Request a UPI withdrawal; the amount is reserved immediately
// @Tags         wallet
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input  body      services.WithdrawalInput  true  "amount in paise and optional UPI id"
// @Success      201    {object}  map[string]interface{}
// @Failure      402    {object}  map[string]interface{}
// @Router       /wallet/withdrawals [post]
func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input services.WithdrawalInput
	if !decodeAndValidate(w, r, &input) {
		return
	}

	id, err := h.walletService.RequestWithdrawal(r.Context(), userID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	resp := jsonResponse{"transaction_id": id, "status": models.TxStatusProcessing}
	if err := writeJSON(w, http.StatusCreated, resp, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Reconcile godoc
// @Summary      Compare the stored balance with the ledger
// @Tags         wallet
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  models.Reconciliation
// @Router       /wallet/reconcile [get]
func (h *WalletHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	rec, err := h.walletService.Reconcile(r.Context(), userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"reconciliation": rec}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func transactionFilterFromQuery(r *http.Request) (models.TransactionFilter, error) {
	filter := models.TransactionFilter{Limit: defaultHistoryLimit}

	if raw := queryString(r, "direction"); raw != nil {
		d := models.Direction(*raw)
		if !d.Valid() {
			return filter, errors.New("invalid direction query parameter")
		}
		filter.Direction = &d
	}
	if raw := queryString(r, "status"); raw != nil {
		s := models.TxStatus(*raw)
		if s != models.TxStatusProcessing && s != models.TxStatusDone {
			return filter, errors.New("invalid status query parameter")
		}
		filter.Status = &s
	}
	filter.Source = queryString(r, "source")

	tournamentID, err := queryInt(r, "tournament_id")
	if err != nil {
		return filter, err
	}
	filter.TournamentID = tournamentID

	limit, err := queryInt(r, "limit")
	if err != nil {
		return filter, err
	}
	if limit != nil && *limit > 0 {
		filter.Limit = *limit
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		return filter, err
	}
	if offset != nil {
		filter.Offset = *offset
	}
	return filter, nil
}
