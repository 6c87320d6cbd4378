package services

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/svxarena/tourneyzone/models"
	"github.com/svxarena/tourneyzone/repositories"
)

var errOutsideTx = errors.New("directory read outside a transaction")

// fakeLedgerStore is an in-memory stand-in for the users, wallet_transactions
// and tournament_settlements tables. Writes made through a journaled
// transaction are undone when that transaction rolls back.
type fakeLedgerStore struct {
	mu          sync.Mutex
	users       map[int]*models.User
	txs         map[uuid.UUID]*models.LedgerTransaction
	settlements map[int]*models.SettlementRecord
	nextUserID  int

	journals    map[repositories.SQLExecutor][]func()
	failCredits map[int]error
}

func newFakeLedgerStore() *fakeLedgerStore {
	return &fakeLedgerStore{
		users:       make(map[int]*models.User),
		txs:         make(map[uuid.UUID]*models.LedgerTransaction),
		settlements: make(map[int]*models.SettlementRecord),
		nextUserID:  1,
		journals:    make(map[repositories.SQLExecutor][]func()),
		failCredits: make(map[int]error),
	}
}

// journaled wraps next so every transaction it opens keeps an undo log.
func (s *fakeLedgerStore) journaled(next txRunner) txRunner {
	return func(ctx context.Context, fn func(tx *sql.Tx) error) error {
		var opened *sql.Tx
		err := next(ctx, func(tx *sql.Tx) error {
			opened = tx
			s.mu.Lock()
			s.journals[tx] = nil
			s.mu.Unlock()
			return fn(tx)
		})
		if opened != nil {
			s.finish(opened, err == nil)
		}
		return err
	}
}

func (s *fakeLedgerStore) finish(tx *sql.Tx, committed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	undo := s.journals[tx]
	delete(s.journals, tx)
	if committed {
		return
	}
	for i := len(undo) - 1; i >= 0; i-- {
		undo[i]()
	}
}

// record must be called with mu held.
func (s *fakeLedgerStore) record(exec repositories.SQLExecutor, undo func()) {
	if exec == nil {
		return
	}
	if log, ok := s.journals[exec]; ok {
		s.journals[exec] = append(log, undo)
	}
}

func (s *fakeLedgerStore) failCreditsTo(id int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCredits[id] = err
}

func (s *fakeLedgerStore) settled(tournamentID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.settlements[tournamentID]
	return ok
}

func (s *fakeLedgerStore) addUser(username string, role models.UserRole, balance int64) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &models.User{
		ID:       s.nextUserID,
		Username: username,
		Email:    username + "@example.com",
		Role:     role,
		Status:   models.UserStatusActive,
		Balance:  balance,
	}
	s.users[u.ID] = u
	s.nextUserID++
	return u
}

func (s *fakeLedgerStore) balance(id int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id].Balance
}

func (s *fakeLedgerStore) tx(id uuid.UUID) models.LedgerTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.txs[id]
}

func (s *fakeLedgerStore) txCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.txs)
}

type fakeUserRepo struct{ store *fakeLedgerStore }

func (r *fakeUserRepo) Create(_ context.Context, exec repositories.SQLExecutor, user *models.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, u := range r.store.users {
		if u.Email == user.Email {
			return repositories.ErrUserEmailConflict
		}
		if u.Username == user.Username {
			return repositories.ErrUserUsernameConflict
		}
	}
	user.ID = r.store.nextUserID
	user.Status = models.UserStatusActive
	user.CreatedAt = time.Now()
	r.store.nextUserID++
	cp := *user
	r.store.users[user.ID] = &cp
	id := user.ID
	r.store.record(exec, func() { delete(r.store.users, id) })
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	u, ok := r.store.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, u := range r.store.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, _ repositories.SQLExecutor, username string) (*models.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, u := range r.store.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *fakeUserRepo) SetStatus(_ context.Context, id int, status models.UserStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	u, ok := r.store.users[id]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.Status = status
	return nil
}

func (r *fakeUserRepo) Credit(_ context.Context, exec repositories.SQLExecutor, id int, amount int64) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failCredits[id]; err != nil {
		return 0, err
	}
	u, ok := r.store.users[id]
	if !ok {
		return 0, repositories.ErrUserNotFound
	}
	u.Balance += amount
	r.store.record(exec, func() { u.Balance -= amount })
	return u.Balance, nil
}

func (r *fakeUserRepo) Debit(_ context.Context, exec repositories.SQLExecutor, id int, amount int64) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	u, ok := r.store.users[id]
	if !ok {
		return 0, repositories.ErrUserNotFound
	}
	if u.Balance < amount {
		return 0, repositories.ErrInsufficientBalance
	}
	u.Balance -= amount
	r.store.record(exec, func() { u.Balance += amount })
	return u.Balance, nil
}

func (r *fakeUserRepo) Resolve(ctx context.Context, exec repositories.SQLExecutor, handle string) (int, error) {
	if exec == nil {
		return 0, errOutsideTx
	}
	u, err := r.GetByUsername(ctx, exec, handle)
	if err != nil {
		return 0, err
	}
	return u.ID, nil
}

func (r *fakeUserRepo) CreditsAllowed(ctx context.Context, exec repositories.SQLExecutor, accountID int) (bool, error) {
	if exec == nil {
		return false, errOutsideTx
	}
	u, err := r.GetByID(ctx, exec, accountID)
	if err != nil {
		return false, err
	}
	return !u.IsSuspended(), nil
}

type fakeTxRepo struct{ store *fakeLedgerStore }

func (r *fakeTxRepo) Create(_ context.Context, exec repositories.SQLExecutor, tx *models.LedgerTransaction) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.users[tx.AccountID]; !ok {
		return repositories.ErrTransactionAccountFK
	}
	if tx.Direction == models.DirectionCredit && tx.ExternalRef != nil {
		for _, existing := range r.store.txs {
			if existing.Direction == models.DirectionCredit && existing.ExternalRef != nil && *existing.ExternalRef == *tx.ExternalRef {
				return repositories.ErrExternalRefConflict
			}
		}
	}
	tx.CreatedAt = time.Now()
	cp := *tx
	r.store.txs[tx.ID] = &cp
	id := tx.ID
	r.store.record(exec, func() { delete(r.store.txs, id) })
	return nil
}

func (r *fakeTxRepo) GetForUpdate(_ context.Context, _ repositories.SQLExecutor, id uuid.UUID) (*models.LedgerTransaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	tx, ok := r.store.txs[id]
	if !ok {
		return nil, repositories.ErrTransactionNotFound
	}
	cp := *tx
	return &cp, nil
}

func (r *fakeTxRepo) GetCreditByExternalRefForUpdate(_ context.Context, _ repositories.SQLExecutor, ref string) (*models.LedgerTransaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, tx := range r.store.txs {
		if tx.Direction == models.DirectionCredit && tx.ExternalRef != nil && *tx.ExternalRef == ref {
			cp := *tx
			return &cp, nil
		}
	}
	return nil, repositories.ErrTransactionNotFound
}

func (r *fakeTxRepo) MarkDone(_ context.Context, exec repositories.SQLExecutor, id uuid.UUID, balanceAfter *int64, externalRef *string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	tx, ok := r.store.txs[id]
	if !ok || tx.Status != models.TxStatusProcessing {
		return repositories.ErrTransactionNotProcessing
	}
	before := *tx
	r.store.record(exec, func() { *tx = before })
	now := time.Now()
	tx.Status = models.TxStatusDone
	tx.CompletedAt = &now
	if balanceAfter != nil {
		tx.BalanceAfter = balanceAfter
	}
	if externalRef != nil {
		tx.ExternalRef = externalRef
	}
	return nil
}

func (r *fakeTxRepo) List(_ context.Context, accountID *int, filter models.TransactionFilter) ([]models.LedgerTransaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]models.LedgerTransaction, 0)
	for _, tx := range r.store.txs {
		if accountID != nil && tx.AccountID != *accountID {
			continue
		}
		if filter.Direction != nil && tx.Direction != *filter.Direction {
			continue
		}
		if filter.Status != nil && tx.Status != *filter.Status {
			continue
		}
		if filter.Source != nil && tx.Source != *filter.Source {
			continue
		}
		if filter.TournamentID != nil && (tx.TournamentID == nil || *tx.TournamentID != *filter.TournamentID) {
			continue
		}
		out = append(out, *tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeTxRepo) DerivedBalance(_ context.Context, accountID int) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var derived int64
	for _, tx := range r.store.txs {
		if tx.AccountID != accountID {
			continue
		}
		switch {
		case tx.Direction == models.DirectionCredit && tx.Status == models.TxStatusDone:
			derived += tx.Amount
		case tx.Direction == models.DirectionDebit:
			derived -= tx.Amount
		}
	}
	return derived, nil
}

type fakeSettlementRepo struct{ store *fakeLedgerStore }

func (r *fakeSettlementRepo) Insert(_ context.Context, exec repositories.SQLExecutor, rec *models.SettlementRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.settlements[rec.TournamentID]; ok {
		return repositories.ErrSettlementExists
	}
	rec.CreatedAt = time.Now()
	cp := *rec
	r.store.settlements[rec.TournamentID] = &cp
	tournamentID := rec.TournamentID
	r.store.record(exec, func() { delete(r.store.settlements, tournamentID) })
	return nil
}

func (r *fakeSettlementRepo) Finalize(_ context.Context, exec repositories.SQLExecutor, tournamentID int, paidOut, remainder int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	rec, ok := r.store.settlements[tournamentID]
	if !ok {
		return repositories.ErrSettlementNotFound
	}
	before := *rec
	r.store.record(exec, func() { *rec = before })
	rec.PaidOut = paidOut
	rec.OrganizerRemainder = remainder
	return nil
}

func (r *fakeSettlementRepo) GetByTournamentID(_ context.Context, tournamentID int) (*models.SettlementRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	rec, ok := r.store.settlements[tournamentID]
	if !ok {
		return nil, repositories.ErrSettlementNotFound
	}
	cp := *rec
	return &cp, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
