package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/svxarena/tourneyzone/models"
)

var (
	ErrTournamentNotFound     = errors.New("tournament not found")
	ErrTournamentInUse        = errors.New("tournament is referenced by ledger or settlement records")
	ErrTournamentInvalidOrg   = errors.New("invalid organizer reference")
	ErrTournamentInvalidDates = errors.New("tournament end date before start date")
)

type ListTournamentsFilter struct {
	OrganizerID *int
	Game        *string
	Type        *models.TournamentType
	Status      *models.TournamentStatus
	Limit       int
	Offset      int
}

type TournamentRepository interface {
	Create(ctx context.Context, exec SQLExecutor, tournament *models.Tournament) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	// GetByIDForUpdate locks the tournament row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error)
	ListWithResults(ctx context.Context, limit int) ([]models.Tournament, error)
	Update(ctx context.Context, tournament *models.Tournament) error
	UpdateRoomDetails(ctx context.Context, id int, room *models.RoomDetails) error
	UpdateResult(ctx context.Context, exec SQLExecutor, id int, result *models.TournamentResult) error
	Delete(ctx context.Context, id int) error
}

type postgresTournamentRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db, now: time.Now}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const tournamentSelect = `
		SELECT
			t.id, t.name, t.game, t.description, t.organizer_id, t.entry_fee, t.team_limit, t.type, t.time_slot,
			t.start_date, t.end_date, t.match_time, t.room_id, t.room_password, t.room_shared_at,
			t.first_place, t.second_place, t.third_place, t.result_notes, t.results_submitted_at, t.created_at,
			EXISTS (SELECT 1 FROM tournament_settlements s WHERE s.tournament_id = t.id),
			(SELECT COUNT(*) FROM registrations g WHERE g.tournament_id = t.id AND g.status = 'accepted')
		FROM tournaments t`

func (r *postgresTournamentRepository) Create(ctx context.Context, exec SQLExecutor, t *models.Tournament) error {
	query := `
		INSERT INTO tournaments
			(name, game, description, organizer_id, entry_fee, team_limit, type, time_slot, start_date, end_date, match_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		t.Name, t.Game, t.Description, t.OrganizerID, t.EntryFee, t.TeamLimit, t.Type, t.TimeSlot,
		t.StartDate, t.EndDate, t.MatchTime,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return handleTournamentError(err)
	}
	t.Status = t.StatusAt(r.now())
	return nil
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	query := tournamentSelect + ` WHERE t.id = $1`
	return r.scanTournament(r.getExecutor(exec).QueryRowContext(ctx, query, id))
}

func (r *postgresTournamentRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	query := tournamentSelect + ` WHERE t.id = $1 FOR UPDATE OF t`
	return r.scanTournament(r.getExecutor(exec).QueryRowContext(ctx, query, id))
}

func (r *postgresTournamentRepository) List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error) {
	query := tournamentSelect + ` WHERE 1=1`

	args := []interface{}{}
	argID := 1

	if filter.OrganizerID != nil {
		query += fmt.Sprintf(" AND t.organizer_id = $%d", argID)
		args = append(args, *filter.OrganizerID)
		argID++
	}
	if filter.Game != nil {
		query += fmt.Sprintf(" AND t.game ILIKE $%d", argID)
		args = append(args, *filter.Game)
		argID++
	}
	if filter.Type != nil {
		query += fmt.Sprintf(" AND t.type = $%d", argID)
		args = append(args, *filter.Type)
		argID++
	}
	if filter.Status != nil {
		switch *filter.Status {
		case models.StatusUpcoming:
			query += fmt.Sprintf(" AND t.start_date > $%d", argID)
		case models.StatusOngoing:
			query += fmt.Sprintf(" AND t.start_date <= $%d AND t.end_date >= $%d", argID, argID)
		case models.StatusCompleted:
			query += fmt.Sprintf(" AND t.end_date < $%d", argID)
		default:
			return nil, fmt.Errorf("unknown tournament status %q", *filter.Status)
		}
		args = append(args, r.now())
		argID++
	}

	query += " ORDER BY t.start_date DESC, t.id DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	return r.queryTournaments(ctx, query, args...)
}

func (r *postgresTournamentRepository) ListWithResults(ctx context.Context, limit int) ([]models.Tournament, error) {
	query := tournamentSelect + ` WHERE t.results_submitted_at IS NOT NULL ORDER BY t.results_submitted_at DESC LIMIT $1`
	return r.queryTournaments(ctx, query, limit)
}

func (r *postgresTournamentRepository) Update(ctx context.Context, t *models.Tournament) error {
	query := `
		UPDATE tournaments SET
			name = $1, game = $2, description = $3, entry_fee = $4, team_limit = $5,
			type = $6, time_slot = $7, start_date = $8, end_date = $9, match_time = $10
		WHERE id = $11`

	result, err := r.db.ExecContext(ctx, query,
		t.Name, t.Game, t.Description, t.EntryFee, t.TeamLimit,
		t.Type, t.TimeSlot, t.StartDate, t.EndDate, t.MatchTime,
		t.ID,
	)
	if err != nil {
		return handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateRoomDetails(ctx context.Context, id int, room *models.RoomDetails) error {
	query := `
		UPDATE tournaments SET room_id = $1, room_password = $2, match_time = COALESCE($3, match_time), room_shared_at = $4
		WHERE id = $5`

	result, err := r.db.ExecContext(ctx, query, room.RoomID, room.Password, room.MatchTime, room.SharedAt, id)
	if err != nil {
		return handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateResult(ctx context.Context, exec SQLExecutor, id int, res *models.TournamentResult) error {
	query := `
		UPDATE tournaments SET first_place = $1, second_place = $2, third_place = $3, result_notes = $4, results_submitted_at = $5
		WHERE id = $6`

	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		res.FirstPlace, res.SecondPlace, res.ThirdPlace, res.Notes, res.SubmittedAt, id,
	)
	if err != nil {
		return handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tournaments WHERE id = $1`, id)
	if err != nil {
		return handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *postgresTournamentRepository) scanTournament(row rowScanner) (*models.Tournament, error) {
	t := &models.Tournament{}
	var (
		roomID, roomPassword      sql.NullString
		roomSharedAt, submittedAt sql.NullTime
		first, second, third      sql.NullString
		notes                     *string
	)

	err := row.Scan(
		&t.ID, &t.Name, &t.Game, &t.Description, &t.OrganizerID, &t.EntryFee, &t.TeamLimit, &t.Type, &t.TimeSlot,
		&t.StartDate, &t.EndDate, &t.MatchTime, &roomID, &roomPassword, &roomSharedAt,
		&first, &second, &third, &notes, &submittedAt, &t.CreatedAt,
		&t.Settled, &t.AcceptedTeams,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to scan tournament: %w", err)
	}

	if roomID.Valid {
		t.Room = &models.RoomDetails{
			RoomID:    roomID.String,
			Password:  roomPassword.String,
			MatchTime: t.MatchTime,
			SharedAt:  roomSharedAt.Time,
		}
	}
	if submittedAt.Valid {
		t.Result = &models.TournamentResult{
			FirstPlace:  first.String,
			SecondPlace: second.String,
			ThirdPlace:  third.String,
			Notes:       notes,
			SubmittedAt: submittedAt.Time,
		}
	}
	t.Status = t.StatusAt(r.now())
	return t, nil
}

func (r *postgresTournamentRepository) queryTournaments(ctx context.Context, query string, args ...interface{}) ([]models.Tournament, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	defer rows.Close()

	tournaments := make([]models.Tournament, 0)
	for rows.Next() {
		t, err := r.scanTournament(rows)
		if err != nil {
			return nil, err
		}
		tournaments = append(tournaments, *t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return tournaments, nil
}

func handleTournamentError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23503":
			if pqErr.Constraint == "tournaments_organizer_id_fkey" {
				return ErrTournamentInvalidOrg
			}
			// Deleting a tournament still referenced by a settlement marker.
			return ErrTournamentInUse
		case "23514":
			if pqErr.Constraint == "tournaments_dates_check" {
				return ErrTournamentInvalidDates
			}
		}
	}
	return fmt.Errorf("tournament query failed: %w", err)
}
