package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/Bidon15/printspool/internal/models"
)

// ClientRepository defines the interface for print client registry
// operations.
type ClientRepository interface {
	Upsert(ctx context.Context, clientID string, ipAddress, hostname *string) (*models.Client, error)
	Get(ctx context.Context, clientID string) (*models.Client, error)
	List(ctx context.Context) ([]*models.Client, error)
	IncrementStats(ctx context.Context, clientID string, jobs, pages int64) error
	WithTx(tx pgx.Tx) ClientRepository
}

type clientRepo struct {
	db DB
}

// NewClientRepository creates a new client repository.
func NewClientRepository(db DB) ClientRepository {
	return &clientRepo{db: db}
}

// WithTx returns a copy of the repository bound to the transaction.
func (r *clientRepo) WithTx(tx pgx.Tx) ClientRepository {
	return &clientRepo{db: tx}
}

const clientColumns = `
	client_id, hostname, ip_address, is_active, last_seen, total_jobs, total_pages, created_at, updated_at`

func scanClient(row rowScanner) (*models.Client, error) {
	var c models.Client
	err := row.Scan(
		&c.ClientID,
		&c.Hostname,
		&c.IPAddress,
		&c.IsActive,
		&c.LastSeen,
		&c.TotalJobs,
		&c.TotalPages,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Upsert registers a client or refreshes its last-seen details. Absent
// hostname or address never clobbers a previously recorded value.
func (r *clientRepo) Upsert(ctx context.Context, clientID string, ipAddress, hostname *string) (*models.Client, error) {
	query := `
		INSERT INTO clients (client_id, hostname, ip_address, last_seen)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (client_id) DO UPDATE SET
			hostname   = COALESCE(EXCLUDED.hostname, clients.hostname),
			ip_address = COALESCE(EXCLUDED.ip_address, clients.ip_address),
			is_active  = TRUE,
			last_seen  = now(),
			updated_at = now()
		RETURNING` + clientColumns

	return scanClient(r.db.QueryRow(ctx, query, clientID, hostname, ipAddress))
}

// Get retrieves a client by id, or nil when absent.
func (r *clientRepo) Get(ctx context.Context, clientID string) (*models.Client, error) {
	query := `SELECT` + clientColumns + ` FROM clients WHERE client_id = $1`

	client, err := scanClient(r.db.QueryRow(ctx, query, clientID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}

// List returns all known clients, most recently seen first.
func (r *clientRepo) List(ctx context.Context) ([]*models.Client, error) {
	query := `SELECT` + clientColumns + ` FROM clients ORDER BY last_seen DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []*models.Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	return clients, rows.Err()
}

// IncrementStats adds to a client's lifetime job and page counters.
func (r *clientRepo) IncrementStats(ctx context.Context, clientID string, jobs, pages int64) error {
	query := `
		UPDATE clients
		SET total_jobs = total_jobs + $2,
		    total_pages = total_pages + $3,
		    updated_at = now()
		WHERE client_id = $1`

	tag, err := r.db.Exec(ctx, query, clientID, jobs, pages)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Compile-time check to ensure clientRepo implements ClientRepository.
var _ ClientRepository = (*clientRepo)(nil)
