package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/svxarena/tourneyzone/models"
	"github.com/svxarena/tourneyzone/repositories"
)

// fakeTournamentStore keeps tournaments and registrations next to the ledger
// store so settlement state and leader accounts are shared.
type fakeTournamentStore struct {
	ledger *fakeLedgerStore

	mu            sync.Mutex
	tournaments   map[int]*models.Tournament
	registrations map[int]*models.Registration
	nextID        int
	decisions     int
}

func newFakeTournamentStore(ledger *fakeLedgerStore) *fakeTournamentStore {
	return &fakeTournamentStore{
		ledger:        ledger,
		tournaments:   make(map[int]*models.Tournament),
		registrations: make(map[int]*models.Registration),
		nextID:        1,
	}
}

func (s *fakeTournamentStore) addRegistration(tournamentID int, leader *models.User, status models.RegistrationStatus) *models.Registration {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg := &models.Registration{
		ID:           s.nextID,
		TournamentID: tournamentID,
		LeaderID:     leader.ID,
		TeamName:     leader.Username + " squad",
		PayerName:    leader.Username,
		UTR:          "UTR-" + leader.Username,
		Status:       status,
		CreatedAt:    time.Now(),
	}
	s.nextID++
	if status != models.RegistrationPending {
		s.stampDecision(reg)
	}
	s.registrations[reg.ID] = reg
	return reg
}

func (s *fakeTournamentStore) registration(id int) models.Registration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.registrations[id]
}

func (s *fakeTournamentStore) stampDecision(reg *models.Registration) {
	s.decisions++
	at := time.Date(2026, 1, 1, 0, 0, s.decisions, 0, time.UTC)
	reg.DecidedAt = &at
}

func (s *fakeTournamentStore) hydrate(t *models.Tournament) models.Tournament {
	cp := *t
	accepted := 0
	for _, reg := range s.registrations {
		if reg.TournamentID == t.ID && reg.Status == models.RegistrationAccepted {
			accepted++
		}
	}
	cp.AcceptedTeams = accepted
	s.ledger.mu.Lock()
	_, cp.Settled = s.ledger.settlements[t.ID]
	s.ledger.mu.Unlock()
	if t.Room != nil {
		room := *t.Room
		cp.Room = &room
	}
	cp.Status = cp.StatusAt(time.Now())
	return cp
}

type fakeTournamentRepo struct{ store *fakeTournamentStore }

func (r *fakeTournamentRepo) Create(_ context.Context, _ repositories.SQLExecutor, t *models.Tournament) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	t.ID = r.store.nextID
	r.store.nextID++
	t.CreatedAt = time.Now()
	cp := *t
	r.store.tournaments[t.ID] = &cp
	return nil
}

func (r *fakeTournamentRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Tournament, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	t, ok := r.store.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	cp := r.store.hydrate(t)
	return &cp, nil
}

func (r *fakeTournamentRepo) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	return r.GetByID(ctx, exec, id)
}

func (r *fakeTournamentRepo) List(_ context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]models.Tournament, 0)
	for _, t := range r.store.tournaments {
		if filter.OrganizerID != nil && t.OrganizerID != *filter.OrganizerID {
			continue
		}
		if filter.Game != nil && !strings.EqualFold(t.Game, *filter.Game) {
			continue
		}
		out = append(out, r.store.hydrate(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *fakeTournamentRepo) ListWithResults(_ context.Context, limit int) ([]models.Tournament, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]models.Tournament, 0)
	for _, t := range r.store.tournaments {
		if t.Result != nil {
			out = append(out, r.store.hydrate(t))
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeTournamentRepo) Update(_ context.Context, t *models.Tournament) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.tournaments[t.ID]; !ok {
		return repositories.ErrTournamentNotFound
	}
	cp := *t
	r.store.tournaments[t.ID] = &cp
	return nil
}

func (r *fakeTournamentRepo) UpdateRoomDetails(_ context.Context, id int, room *models.RoomDetails) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	t, ok := r.store.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	cp := *room
	t.Room = &cp
	return nil
}

func (r *fakeTournamentRepo) UpdateResult(_ context.Context, _ repositories.SQLExecutor, id int, res *models.TournamentResult) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	t, ok := r.store.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	cp := *res
	t.Result = &cp
	return nil
}

func (r *fakeTournamentRepo) Delete(_ context.Context, id int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.tournaments[id]; !ok {
		return repositories.ErrTournamentNotFound
	}
	delete(r.store.tournaments, id)
	return nil
}

type fakeRegistrationRepo struct{ store *fakeTournamentStore }

func (r *fakeRegistrationRepo) Create(_ context.Context, reg *models.Registration) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.tournaments[reg.TournamentID]; !ok {
		return repositories.ErrRegistrationInvalidRef
	}
	for _, existing := range r.store.registrations {
		if existing.TournamentID == reg.TournamentID && existing.LeaderID == reg.LeaderID {
			return repositories.ErrRegistrationConflict
		}
	}
	reg.ID = r.store.nextID
	r.store.nextID++
	reg.Status = models.RegistrationPending
	reg.CreatedAt = time.Now()
	cp := *reg
	r.store.registrations[reg.ID] = &cp
	return nil
}

func (r *fakeRegistrationRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Registration, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	reg, ok := r.store.registrations[id]
	if !ok {
		return nil, repositories.ErrRegistrationNotFound
	}
	cp := *reg
	return &cp, nil
}

func (r *fakeRegistrationRepo) Decide(_ context.Context, _ repositories.SQLExecutor, id int, status models.RegistrationStatus, reason *string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	reg, ok := r.store.registrations[id]
	if !ok {
		return repositories.ErrRegistrationNotFound
	}
	if reg.Status != models.RegistrationPending {
		return repositories.ErrRegistrationDecided
	}
	reg.Status = status
	reg.RejectionReason = reason
	r.store.stampDecision(reg)
	return nil
}

func (r *fakeRegistrationRepo) CountAccepted(_ context.Context, _ repositories.SQLExecutor, tournamentID int) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	count := 0
	for _, reg := range r.store.registrations {
		if reg.TournamentID == tournamentID && reg.Status == models.RegistrationAccepted {
			count++
		}
	}
	return count, nil
}

func (r *fakeRegistrationRepo) ListByTournament(_ context.Context, tournamentID int, status *models.RegistrationStatus) ([]models.Registration, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]models.Registration, 0)
	for _, reg := range r.store.registrations {
		if reg.TournamentID != tournamentID || (status != nil && reg.Status != *status) {
			continue
		}
		cp := *reg
		r.store.ledger.mu.Lock()
		if u, ok := r.store.ledger.users[reg.LeaderID]; ok {
			cp.Leader = &models.User{ID: u.ID, Username: u.Username, Email: u.Email}
		}
		r.store.ledger.mu.Unlock()
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].DecidedAt, out[j].DecidedAt
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.Before(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *fakeRegistrationRepo) ListByLeader(_ context.Context, leaderID int) ([]models.Registration, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]models.Registration, 0)
	for _, reg := range r.store.registrations {
		if reg.LeaderID == leaderID {
			out = append(out, *reg)
		}
	}
	return out, nil
}

type fakeBulkRepo struct {
	mu   sync.Mutex
	logs []models.BulkDepositLog
}

func (r *fakeBulkRepo) Create(_ context.Context, l *models.BulkDepositLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l.ProcessedAt = time.Now()
	r.logs = append(r.logs, *l)
	return nil
}

func (r *fakeBulkRepo) ListRecent(_ context.Context, limit int) ([]models.BulkDepositLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.BulkDepositLog, 0, len(r.logs))
	for i := len(r.logs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.logs[i])
	}
	return out, nil
}

type sentRoomEmail struct {
	To   string
	Data RoomDetailsEmail
}

type fakeEmailService struct {
	mu        sync.Mutex
	rooms     []sentRoomEmail
	decisions []string
	welcomes  []string
}

func (f *fakeEmailService) Enqueue(context.Context, string, string, string) error { return nil }

func (f *fakeEmailService) SendRoomDetails(_ context.Context, to string, data RoomDetailsEmail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms = append(f.rooms, sentRoomEmail{To: to, Data: data})
	return nil
}

func (f *fakeEmailService) SendRegistrationDecision(_ context.Context, to, _, _ string, _ bool, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decisions = append(f.decisions, to)
	return nil
}

func (f *fakeEmailService) SendWelcome(_ context.Context, to, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.welcomes = append(f.welcomes, to)
	return nil
}

func (f *fakeEmailService) Start(context.Context) {}

func (f *fakeEmailService) QueueLength(context.Context) int64 { return 0 }

type recordedEvent struct {
	TournamentID int
	Type         string
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeBroadcaster) BroadcastToTournament(tournamentID int, eventType string, _ interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{TournamentID: tournamentID, Type: eventType})
}

func (f *fakeBroadcaster) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.Type
	}
	return out
}

