package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/repair-desk/internal/access"
	"github.com/spec-kit/repair-desk/internal/domain"
	"github.com/spec-kit/repair-desk/internal/sequence"
)

const uniqueViolation = "23505"

const ticketColumns = `doc_key, human_id, customer_name, phone, address, city,
               product_category, product_model, serial_number, warranty_status,
               service_type, issue_description, urgency, status, notes,
               technician_id, scheduled_date, feedback_rating, customer_signature, photos,
               service_charge, parts_charge, commission, created_at, updated_at`

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the postgres repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) RunInTx(ctx context.Context, fn func(tx TicketTx) error) error {
	return WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&pgTicketTx{tx: tx})
	})
}

func (r *ticketRepository) Update(ctx context.Context, key string, patch domain.TicketPatch, now time.Time) (*domain.Ticket, error) {
	var updated *domain.Ticket
	err := WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		ticket, err := fetchSingle(ctx, tx, `SELECT `+ticketColumns+` FROM tickets WHERE doc_key=$1 FOR UPDATE`, key)
		if err != nil {
			return err
		}
		if err := access.CanUpdate(ctx, ticket); err != nil {
			return err
		}
		if err := patch.Check(ticket); err != nil {
			return err
		}

		patch.Apply(ticket)
		ticket.UpdatedAt = nextUpdatedAt(ticket.UpdatedAt, now)
		normalize(ticket)

		const query = `
        UPDATE tickets SET customer_name=$1, phone=$2, address=$3, city=$4,
            product_category=$5, product_model=$6, serial_number=$7, warranty_status=$8,
            service_type=$9, issue_description=$10, urgency=$11, status=$12, notes=$13,
            technician_id=$14, scheduled_date=$15, feedback_rating=$16, customer_signature=$17,
            photos=$18, service_charge=$19, parts_charge=$20, commission=$21, updated_at=$22
        WHERE doc_key=$23`
		cmd, err := tx.Exec(ctx, query,
			ticket.CustomerName,
			ticket.Phone,
			ticket.Address,
			ticket.City,
			ticket.ProductCategory,
			ticket.ProductModel,
			ticket.SerialNumber,
			ticket.WarrantyStatus,
			ticket.ServiceType,
			ticket.IssueDescription,
			ticket.Urgency,
			ticket.Status,
			ticket.Notes,
			ticket.TechnicianID,
			ticket.ScheduledDate,
			ticket.FeedbackRating,
			ticket.CustomerSignature,
			ticket.Photos,
			ticket.ServiceCharge,
			ticket.PartsCharge,
			ticket.Commission,
			ticket.UpdatedAt,
			ticket.Key,
		)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrTicketNotFound
		}
		updated = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *ticketRepository) GetByKey(ctx context.Context, key string) (*domain.Ticket, error) {
	if err := access.CanRead(ctx); err != nil {
		return nil, err
	}
	return fetchSingle(ctx, r.pool, `SELECT `+ticketColumns+` FROM tickets WHERE doc_key=$1`, key)
}

func (r *ticketRepository) List(ctx context.Context) ([]domain.Ticket, error) {
	if err := access.CanRead(ctx); err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+ticketColumns+` FROM tickets ORDER BY created_at DESC, doc_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) Counter(ctx context.Context, prefix string) (int64, error) {
	return loadCounter(ctx, r.pool, prefix)
}

type pgTicketTx struct {
	tx pgx.Tx
}

func (t *pgTicketTx) LoadCounter(ctx context.Context, prefix string) (int64, error) {
	return loadCounter(ctx, t.tx, prefix)
}

func (t *pgTicketTx) StoreCounter(ctx context.Context, prefix string, expected, next int64) error {
	var (
		cmd pgconn.CommandTag
		err error
	)
	if expected == 0 {
		cmd, err = t.tx.Exec(ctx, `
            INSERT INTO ticket_counters (prefix, count) VALUES ($1, $2)
            ON CONFLICT (prefix) DO NOTHING`, prefix, next)
	} else {
		cmd, err = t.tx.Exec(ctx, `
            UPDATE ticket_counters SET count=$3 WHERE prefix=$1 AND count=$2`, prefix, expected, next)
	}
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return sequence.ErrCounterConflict
	}
	return nil
}

func (t *pgTicketTx) InsertTicket(ctx context.Context, ticket *domain.Ticket) error {
	if err := access.CanCreate(ctx); err != nil {
		return err
	}
	normalize(ticket)
	const query = `
        INSERT INTO tickets (` + ticketColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25)`
	_, err := t.tx.Exec(ctx, query,
		ticket.Key,
		ticket.ID,
		ticket.CustomerName,
		ticket.Phone,
		ticket.Address,
		ticket.City,
		ticket.ProductCategory,
		ticket.ProductModel,
		ticket.SerialNumber,
		ticket.WarrantyStatus,
		ticket.ServiceType,
		ticket.IssueDescription,
		ticket.Urgency,
		ticket.Status,
		ticket.Notes,
		ticket.TechnicianID,
		ticket.ScheduledDate,
		ticket.FeedbackRating,
		ticket.CustomerSignature,
		ticket.Photos,
		ticket.ServiceCharge,
		ticket.PartsCharge,
		ticket.Commission,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return sequence.ErrCounterConflict
	}
	return err
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func loadCounter(ctx context.Context, q querier, prefix string) (int64, error) {
	var count int64
	err := q.QueryRow(ctx, `SELECT count FROM ticket_counters WHERE prefix=$1`, prefix).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return count, err
}

func fetchSingle(ctx context.Context, q querier, query string, arg any) (*domain.Ticket, error) {
	ticket, err := scanTicket(q.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.Key,
		&ticket.ID,
		&ticket.CustomerName,
		&ticket.Phone,
		&ticket.Address,
		&ticket.City,
		&ticket.ProductCategory,
		&ticket.ProductModel,
		&ticket.SerialNumber,
		&ticket.WarrantyStatus,
		&ticket.ServiceType,
		&ticket.IssueDescription,
		&ticket.Urgency,
		&ticket.Status,
		&ticket.Notes,
		&ticket.TechnicianID,
		&ticket.ScheduledDate,
		&ticket.FeedbackRating,
		&ticket.CustomerSignature,
		&ticket.Photos,
		&ticket.ServiceCharge,
		&ticket.PartsCharge,
		&ticket.Commission,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	normalize(&ticket)
	return &ticket, nil
}
