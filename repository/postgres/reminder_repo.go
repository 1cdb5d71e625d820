package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/followup/domain"
	"github.com/fastygo/followup/repository"
)

const reminderColumns = `id, title, note, contact_ref, contact_name, interaction_type, due_at, status,
	triggered_at, completed_at, cancelled_at, version, created_at, updated_at`

type reminderRepository struct {
	pool *pgxpool.Pool
}

// NewReminderRepository returns a Postgres-backed implementation of ReminderRepository.
func NewReminderRepository(pool *pgxpool.Pool) repository.ReminderRepository {
	return &reminderRepository{pool: pool}
}

func (r *reminderRepository) Create(ctx context.Context, reminder *domain.Reminder) (*domain.Reminder, error) {
	if reminder == nil {
		return nil, domain.ErrInvalidPayload
	}

	created := *reminder
	repository.PrepareNew(&created, uuid.NewString(), time.Now())

	const query = `
	INSERT INTO reminders (id, title, note, contact_ref, contact_name, interaction_type, due_at, status, version)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING created_at, updated_at
	`

	if err := r.pool.QueryRow(ctx, query,
		created.ID,
		created.Title,
		created.Note,
		created.ContactRef,
		created.ContactName,
		string(created.InteractionType),
		created.DueAt,
		string(created.Status),
		created.Version,
	).Scan(&created.CreatedAt, &created.UpdatedAt); err != nil {
		return nil, err
	}

	return &created, nil
}

func (r *reminderRepository) GetByID(ctx context.Context, id string) (*domain.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE id = $1`
	return scanReminder(r.pool.QueryRow(ctx, query, id))
}

func (r *reminderRepository) GetPending(ctx context.Context) ([]domain.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE status = $1`
	rows, err := r.pool.Query(ctx, query, string(domain.StatusPending))
	if err != nil {
		return nil, err
	}
	return collectReminders(rows)
}

func (r *reminderRepository) List(ctx context.Context, filter repository.ReminderFilter) ([]domain.Reminder, error) {
	query := `SELECT ` + reminderColumns + `
	FROM reminders
	WHERE ($1 = '' OR status = $1)
	  AND ($2 = '' OR contact_ref = $2)
	ORDER BY due_at ASC
	LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query, string(filter.Status), filter.ContactRef, repository.ClampLimit(filter.Limit), filter.Offset)
	if err != nil {
		return nil, err
	}
	return collectReminders(rows)
}

// Update locks the row, checks the expectation and writes the patched record
// inside one transaction, so concurrent writers serialize on the row lock.
func (r *reminderRepository) Update(ctx context.Context, id string, patch repository.ReminderPatch, expect repository.Expectation) (*domain.Reminder, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE id = $1 FOR UPDATE`
	current, err := scanReminder(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if err := expect.Check(current); err != nil {
		return nil, err
	}
	patch.Apply(current, time.Now())
	if err := current.CheckInvariants(); err != nil {
		return nil, err
	}

	const update = `
	UPDATE reminders
	SET title = $2,
		note = $3,
		status = $4,
		due_at = $5,
		triggered_at = $6,
		completed_at = $7,
		cancelled_at = $8,
		version = $9,
		updated_at = NOW()
	WHERE id = $1
	RETURNING updated_at
	`
	if err := tx.QueryRow(ctx, update,
		current.ID,
		current.Title,
		current.Note,
		string(current.Status),
		current.DueAt,
		nullTimePtr(current.TriggeredAt),
		nullTimePtr(current.CompletedAt),
		nullTimePtr(current.CancelledAt),
		current.Version,
	).Scan(&current.UpdatedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return current, nil
}

// Delete is idempotent: removing an absent row is not an error.
func (r *reminderRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM reminders WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

func collectReminders(rows pgx.Rows) ([]domain.Reminder, error) {
	defer rows.Close()

	var reminders []domain.Reminder
	for rows.Next() {
		reminder, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, *reminder)
	}
	return reminders, rows.Err()
}

func scanReminder(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Reminder, error) {
	var reminder domain.Reminder
	var (
		interaction string
		status      string
	)

	if err := row.Scan(
		&reminder.ID,
		&reminder.Title,
		&reminder.Note,
		&reminder.ContactRef,
		&reminder.ContactName,
		&interaction,
		&reminder.DueAt,
		&status,
		&reminder.TriggeredAt,
		&reminder.CompletedAt,
		&reminder.CancelledAt,
		&reminder.Version,
		&reminder.CreatedAt,
		&reminder.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrReminderNotFound
		}
		return nil, err
	}

	reminder.InteractionType = domain.InteractionType(interaction)
	reminder.Status = domain.ReminderStatus(status)
	return &reminder, nil
}
