package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/svxarena/tourneyzone/middleware"
	"github.com/svxarena/tourneyzone/models"
	"github.com/svxarena/tourneyzone/services"
)

type AdminHandler struct {
	adminService     services.AdminService
	dashboardService services.DashboardService
}

func NewAdminHandler(as services.AdminService, ds services.DashboardService) *AdminHandler {
	return &AdminHandler{adminService: as, dashboardService: ds}
}

type verifyDepositInput struct {
	Amount int64 `json:"amount" validate:"gt=0"`
}

type completeWithdrawalInput struct {
	PayoutRef string `json:"payout_ref" validate:"required,max=64"`
}

// Dashboard godoc
// @Summary      Processing and completed UPI deposits and withdrawals
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  models.WalletDashboard
// @Router       /admin/dashboard [get]
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.dashboardService.GetWalletDashboard(r.Context())
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, dash, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// PendingTransactions godoc
// @Summary      Transactions waiting for an admin
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        direction  query  string  false  "credit (deposits) or debit (withdrawals)"
// @Success      200  {object}  map[string]interface{}
// @Router       /admin/transactions/pending [get]
func (h *AdminHandler) PendingTransactions(w http.ResponseWriter, r *http.Request) {
	var direction *models.Direction
	if raw := queryString(r, "direction"); raw != nil {
		d := models.Direction(*raw)
		if !d.Valid() {
			badRequestResponse(w, r, errors.New("invalid direction query parameter"))
			return
		}
		direction = &d
	}

	txs, err := h.adminService.PendingTransactions(r.Context(), direction)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"transactions": txs}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// VerifyDeposit godoc
// @Summary      Credit a deposit claim after checking the bank statement
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        transactionID  path      string              true  "transaction id"
// @Param        input          body      verifyDepositInput  true  "amount seen on the statement"
// @Success      200            {object}  map[string]interface{}
// @Failure      409            {object}  map[string]interface{}
// @Failure      422            {object}  map[string]interface{}
// @Router       /admin/deposits/{transactionID}/verify [post]
func (h *AdminHandler) VerifyDeposit(w http.ResponseWriter, r *http.Request) {
	adminID, txID, ok := h.adminAndTransaction(w, r)
	if !ok {
		return
	}

	var input verifyDepositInput
	if !decodeAndValidate(w, r, &input) {
		return
	}

	rec, err := h.adminService.VerifyDeposit(r.Context(), adminID, txID, input.Amount)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"transaction": rec}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// BulkDeposits godoc
// @Summary      Reconcile a bank statement against deposit claims by UTR
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input  body      []models.BulkDepositEntry  true  "statement lines"
// @Success      200    {object}  models.BulkDepositLog
// @Router       /admin/deposits/bulk [post]
func (h *AdminHandler) BulkDeposits(w http.ResponseWriter, r *http.Request) {
	adminID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var entries []models.BulkDepositEntry
	if err := readJSON(w, r, &entries); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if len(entries) == 0 {
		failedValidationResponse(w, r, map[string]string{"entries": "at least one entry is required"})
		return
	}

	batch, err := h.adminService.BulkReconcileDeposits(r.Context(), adminID, entries)
	if err != nil && batch == nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	// A batch with an error means the credits went through but the log was not saved.
	if err := writeJSON(w, http.StatusOK, batch, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// BulkDepositLogs godoc
// @Summary      The 20 most recent bulk reconciliation runs
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Router       /admin/deposits/bulk [get]
func (h *AdminHandler) BulkDepositLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.adminService.ListBulkDepositLogs(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"logs": logs}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// CompleteWithdrawal godoc
// @Summary      Mark a withdrawal as paid out
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        transactionID  path      string                   true  "transaction id"
// @Param        input          body      completeWithdrawalInput  true  "bank reference"
// @Success      200            {object}  map[string]interface{}
// @Router       /admin/withdrawals/{transactionID}/complete [post]
func (h *AdminHandler) CompleteWithdrawal(w http.ResponseWriter, r *http.Request) {
	adminID, txID, ok := h.adminAndTransaction(w, r)
	if !ok {
		return
	}

	var input completeWithdrawalInput
	if !decodeAndValidate(w, r, &input) {
		return
	}

	rec, err := h.adminService.CompleteWithdrawal(r.Context(), adminID, txID, input.PayoutRef)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"transaction": rec}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SuspendUser godoc
// @Summary      Suspend an account; it can no longer log in or receive credits
// @Tags         admin
// @Security     BearerAuth
// @Param        userID  path  int  true  "user id"
// @Success      204
// @Router       /admin/users/{userID}/suspend [post]
func (h *AdminHandler) SuspendUser(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, models.UserStatusSuspended)
}

// ReactivateUser godoc
// @Summary      Reactivate a suspended account
// @Tags         admin
// @Security     BearerAuth
// @Param        userID  path  int  true  "user id"
// @Success      204
// @Router       /admin/users/{userID}/reactivate [post]
func (h *AdminHandler) ReactivateUser(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, models.UserStatusActive)
}

// ReconcileUser godoc
// @Summary      Compare an account's stored balance with its ledger
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        userID  path  int  true  "user id"
// @Success      200  {object}  models.Reconciliation
// @Router       /admin/users/{userID}/reconcile [get]
func (h *AdminHandler) ReconcileUser(w http.ResponseWriter, r *http.Request) {
	userID, err := getIDFromURL(r, "userID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	rec, err := h.adminService.ReconcileAccount(r.Context(), userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"reconciliation": rec}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AdminHandler) setStatus(w http.ResponseWriter, r *http.Request, status models.UserStatus) {
	adminID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	userID, err := getIDFromURL(r, "userID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.adminService.SetUserStatus(r.Context(), adminID, userID, status); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) adminAndTransaction(w http.ResponseWriter, r *http.Request) (int, uuid.UUID, bool) {
	adminID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return 0, uuid.Nil, false
	}
	txID, err := uuid.Parse(chi.URLParam(r, "transactionID"))
	if err != nil {
		badRequestResponse(w, r, errors.New("invalid transactionID format"))
		return 0, uuid.Nil, false
	}
	return adminID, txID, true
}
