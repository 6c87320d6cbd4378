package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/svxarena/tourneyzone/middleware"
	"github.com/svxarena/tourneyzone/models"
	"github.com/svxarena/tourneyzone/services"
)

type caller struct {
	id   int
	role models.UserRole
}

var (
	anonymous = caller{}
	player    = caller{id: 7, role: models.RolePlayer}
	organizer = caller{id: 3, role: models.RoleOrganizer}
	admin     = caller{id: 1, role: models.RoleAdmin}
)

// serve mounts h on pattern so chi fills in URL params, then runs one request.
func serve(method, pattern, target, body string, who caller, h http.HandlerFunc) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	router.Method(method, pattern, h)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if who.id != 0 {
		req = req.WithContext(middleware.WithClaims(req.Context(), who.id, who.role))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestAuthHandler_Login(t *testing.T) {
	svc := new(mockAuthService)
	h := NewAuthHandler(svc, "test-secret")

	user := &models.User{ID: 7, Username: "neo", Role: models.RolePlayer}
	svc.On("Login", mock.Anything, services.LoginInput{Email: "neo@example.com", Password: "hunter22"}).Return(user, nil)

	rec := serve(http.MethodPost, "/auth/login", "/auth/login",
		`{"email":"neo@example.com","password":"hunter22"}`, anonymous, h.Login)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	raw, ok := decodeBody(t, rec)["token"].(string)
	require.True(t, ok)
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) { return []byte("test-secret"), nil })
	require.NoError(t, err)
	assert.Equal(t, float64(7), claims["user_id"])
	assert.Equal(t, "player", claims["role"])
	assert.Equal(t, "neo", claims["username"])
	svc.AssertExpectations(t)
}

func TestAuthHandler_LoginErrors(t *testing.T) {
	svc := new(mockAuthService)
	h := NewAuthHandler(svc, "test-secret")
	svc.On("Login", mock.Anything, mock.Anything).Return(nil, services.ErrInvalidCredentials).Once()

	rec := serve(http.MethodPost, "/auth/login", "/auth/login",
		`{"email":"neo@example.com","password":"nope"}`, anonymous, h.Login)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(http.MethodPost, "/auth/login", "/auth/login",
		`{"email":"not-an-email","password":"x"}`, anonymous, h.Login)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	errs, ok := decodeBody(t, rec)["error"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "must be a valid email address", errs["email"])

	rec = serve(http.MethodPost, "/auth/login", "/auth/login",
		`{"email":"neo@example.com","password":"x","admin":true}`, anonymous, h.Login)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertExpectations(t)
}

func TestWalletHandler_Deposit(t *testing.T) {
	svc := new(mockWalletService)
	h := NewWalletHandler(svc)
	id := uuid.New()
	svc.On("RequestDeposit", mock.Anything, player.id, services.DepositInput{Amount: 5000, UTR: "UTR-1"}).Return(id, nil)

	rec := serve(http.MethodPost, "/wallet/deposits", "/wallet/deposits",
		`{"amount":5000,"utr":"UTR-1"}`, player, h.Deposit)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, id.String(), body["transaction_id"])
	assert.Equal(t, "processing", body["status"])
	svc.AssertExpectations(t)
}

func TestWalletHandler_WriteErrors(t *testing.T) {
	tests := []struct {
		name   string
		who    caller
		body   string
		svcErr error
		want   int
	}{
		{name: "no token", who: anonymous, body: `{"amount":100}`, want: http.StatusUnauthorized},
		{name: "zero amount", who: player, body: `{"amount":0}`, want: http.StatusUnprocessableEntity},
		{name: "empty body", who: player, want: http.StatusBadRequest},
		{name: "insufficient funds", who: player, body: `{"amount":100}`, svcErr: services.ErrInsufficientFunds, want: http.StatusPaymentRequired},
		{name: "suspended", who: player, body: `{"amount":100}`, svcErr: services.ErrAccountSuspended, want: http.StatusForbidden},
		{name: "no upi id", who: player, body: `{"amount":100}`, svcErr: services.ErrUPIRequired, want: http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockWalletService)
			if tt.svcErr != nil {
				svc.On("RequestWithdrawal", mock.Anything, tt.who.id, mock.Anything).Return(uuid.Nil, tt.svcErr)
			}
			h := NewWalletHandler(svc)

			rec := serve(http.MethodPost, "/wallet/withdrawals", "/wallet/withdrawals", tt.body, tt.who, h.Withdraw)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			svc.AssertExpectations(t)
		})
	}
}

func TestWalletHandler_TransactionsFilter(t *testing.T) {
	svc := new(mockWalletService)
	h := NewWalletHandler(svc)

	debit := models.DirectionDebit
	tid := 12
	want := models.TransactionFilter{Direction: &debit, TournamentID: &tid, Limit: 10, Offset: 20}
	svc.On("History", mock.Anything, player.id, want).Return([]models.LedgerTransaction{}, nil)

	rec := serve(http.MethodGet, "/wallet/transactions",
		"/wallet/transactions?direction=debit&tournament_id=12&limit=10&offset=20", "", player, h.Transactions)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	svc.AssertExpectations(t)

	rec = serve(http.MethodGet, "/wallet/transactions", "/wallet/transactions?direction=sideways", "", player, h.Transactions)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTournamentHandler_GetPassesViewer(t *testing.T) {
	svc := new(mockTournamentService)
	h := NewTournamentHandler(svc)
	svc.On("GetTournament", mock.Anything, 5, organizer.id, models.RoleOrganizer).
		Return(&models.Tournament{ID: 5, Name: "Sunday Scrims"}, nil)
	svc.On("GetTournament", mock.Anything, 6, 0, models.UserRole("")).
		Return(nil, services.ErrTournamentNotFound)

	rec := serve(http.MethodGet, "/tournaments/{tournamentID}", "/tournaments/5", "", organizer, h.GetByIDHandler)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tournament, ok := decodeBody(t, rec)["tournament"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Sunday Scrims", tournament["name"])

	rec = serve(http.MethodGet, "/tournaments/{tournamentID}", "/tournaments/6", "", anonymous, h.GetByIDHandler)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(http.MethodGet, "/tournaments/{tournamentID}", "/tournaments/abc", "", anonymous, h.GetByIDHandler)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertExpectations(t)
}

func TestTournamentHandler_RejectBodyIsOptional(t *testing.T) {
	svc := new(mockTournamentService)
	h := NewTournamentHandler(svc)
	pattern := "/organizer/tournaments/{id}/registrations/{registrationID}/reject"

	svc.On("RejectRegistration", mock.Anything, organizer.id, 4, 9, "").
		Return(&models.Registration{ID: 9, Status: models.RegistrationRejected}, nil)
	svc.On("RejectRegistration", mock.Anything, organizer.id, 4, 10, "payment not received").
		Return(&models.Registration{ID: 10, Status: models.RegistrationRejected}, nil)
	svc.On("RejectRegistration", mock.Anything, organizer.id, 4, 11, "").
		Return(nil, services.ErrRegistrationDecided)

	rec := serve(http.MethodPost, pattern, "/organizer/tournaments/4/registrations/9/reject", "", organizer, h.RejectRegistrationHandler)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(http.MethodPost, pattern, "/organizer/tournaments/4/registrations/10/reject",
		`{"reason":"payment not received"}`, organizer, h.RejectRegistrationHandler)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(http.MethodPost, pattern, "/organizer/tournaments/4/registrations/11/reject", "", organizer, h.RejectRegistrationHandler)
	assert.Equal(t, http.StatusConflict, rec.Code)
	svc.AssertExpectations(t)
}

func TestTournamentHandler_SubmitResults(t *testing.T) {
	svc := new(mockTournamentService)
	h := NewTournamentHandler(svc)
	input := services.SubmitResultsInput{FirstPlace: "alpha", SecondPlace: "bravo", ThirdPlace: "charlie"}
	svc.On("SubmitResults", mock.Anything, organizer.id, 4, input).
		Return(&models.SettlementRecord{TournamentID: 4, Pool: 700}, nil).Once()
	svc.On("SubmitResults", mock.Anything, organizer.id, 4, input).
		Return(nil, services.ErrAlreadySettled).Once()

	body := `{"first_place":"alpha","second_place":"bravo","third_place":"charlie"}`
	rec := serve(http.MethodPost, "/organizer/tournaments/{id}/results", "/organizer/tournaments/4/results", body, organizer, h.SubmitResultsHandler)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, decodeBody(t, rec), "settlement")

	rec = serve(http.MethodPost, "/organizer/tournaments/{id}/results", "/organizer/tournaments/4/results", body, organizer, h.SubmitResultsHandler)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(http.MethodPost, "/organizer/tournaments/{id}/results", "/organizer/tournaments/4/results",
		`{"first_place":"alpha"}`, organizer, h.SubmitResultsHandler)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	svc.AssertExpectations(t)
}

func TestRegistrationHandler_RegisterTeam(t *testing.T) {
	svc := new(mockRegistrationService)
	h := NewRegistrationHandler(svc)
	input := services.RegisterTeamInput{TeamName: "Night Owls", PayerName: "Neo", UTR: "UTR-77", Amount: 100}
	svc.On("Register", mock.Anything, player.id, 4, input).
		Return(&models.Registration{ID: 1, TournamentID: 4, Status: models.RegistrationPending}, nil).Once()
	svc.On("Register", mock.Anything, player.id, 4, input).
		Return(nil, services.ErrRegistrationConflict).Once()

	body := `{"team_name":"Night Owls","payer_name":"Neo","utr":"UTR-77","amount":100}`
	rec := serve(http.MethodPost, "/player/tournaments/{id}/register", "/player/tournaments/4/register", body, player, h.RegisterTeam)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = serve(http.MethodPost, "/player/tournaments/{id}/register", "/player/tournaments/4/register", body, player, h.RegisterTeam)
	assert.Equal(t, http.StatusConflict, rec.Code)
	svc.AssertExpectations(t)
}

func TestAdminHandler_VerifyDeposit(t *testing.T) {
	svc := new(mockAdminService)
	h := NewAdminHandler(svc, new(mockDashboardService))
	id := uuid.New()
	svc.On("VerifyDeposit", mock.Anything, admin.id, id, int64(300)).
		Return(nil, fmt.Errorf("%w: claim is 500", services.ErrAmountMismatch))

	pattern := "/admin/deposits/{transactionID}/verify"
	rec := serve(http.MethodPost, pattern, "/admin/deposits/"+id.String()+"/verify", `{"amount":300}`, admin, h.VerifyDeposit)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	rec = serve(http.MethodPost, pattern, "/admin/deposits/not-a-uuid/verify", `{"amount":300}`, admin, h.VerifyDeposit)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertExpectations(t)
}

func TestAdminHandler_BulkDeposits(t *testing.T) {
	svc := new(mockAdminService)
	h := NewAdminHandler(svc, new(mockDashboardService))
	entries := []models.BulkDepositEntry{{UTR: "UTR-1", Amount: 500}, {UTR: "", Amount: 100}}
	batch := &models.BulkDepositLog{Processed: 1, Failed: 1}
	svc.On("BulkReconcileDeposits", mock.Anything, admin.id, entries).Return(batch, nil)

	rec := serve(http.MethodPost, "/admin/deposits/bulk", "/admin/deposits/bulk",
		`[{"utr":"UTR-1","amount":500},{"utr":"","amount":100}]`, admin, h.BulkDeposits)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["processed"])
	assert.Equal(t, float64(1), body["failed"])

	rec = serve(http.MethodPost, "/admin/deposits/bulk", "/admin/deposits/bulk", `[]`, admin, h.BulkDeposits)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = serve(http.MethodPost, "/admin/deposits/bulk", "/admin/deposits/bulk", `{"utr":"x"}`, admin, h.BulkDeposits)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertExpectations(t)
}

func TestAdminHandler_SuspendAndReactivate(t *testing.T) {
	svc := new(mockAdminService)
	h := NewAdminHandler(svc, new(mockDashboardService))
	svc.On("SetUserStatus", mock.Anything, admin.id, 7, models.UserStatusSuspended).Return(nil)
	svc.On("SetUserStatus", mock.Anything, admin.id, 8, models.UserStatusActive).Return(services.ErrAccountNotFound)

	rec := serve(http.MethodPost, "/admin/users/{userID}/suspend", "/admin/users/7/suspend", "", admin, h.SuspendUser)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(http.MethodPost, "/admin/users/{userID}/reactivate", "/admin/users/8/reactivate", "", admin, h.ReactivateUser)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	svc.AssertExpectations(t)
}

func TestMapServiceErrorToHTTP(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{services.ErrTransactionNotFound, http.StatusNotFound},
		{fmt.Errorf("verify: %w", services.ErrAlreadyProcessed), http.StatusConflict},
		{services.ErrDuplicateExternalRef, http.StatusConflict},
		{services.ErrTournamentFull, http.StatusConflict},
		{services.ErrInsufficientFunds, http.StatusPaymentRequired},
		{services.ErrInvalidPayoutPlan, http.StatusUnprocessableEntity},
		{services.ErrResultsTooEarly, http.StatusUnprocessableEntity},
		{services.ErrInvalidCredentials, http.StatusUnauthorized},
		{services.ErrForbiddenOperation, http.StatusForbidden},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			mapServiceErrorToHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
