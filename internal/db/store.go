package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/Kamar-Folarin/brand-sync/internal/models"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

var (
	// ErrJobNotFound is returned when no job has the requested id
	ErrJobNotFound = errors.New("sync job not found")
	// ErrJobFinalized is returned when an update would leave a terminal state
	// or skip a lifecycle edge. The stored job is left unchanged.
	ErrJobFinalized = errors.New("sync job is finalized")
	// ErrDuplicateJob is returned when a job id is reused
	ErrDuplicateJob = errors.New("sync job already exists")
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// JobStore persists sync job records
type JobStore interface {
	CreateJob(ctx context.Context, job *models.SyncJob) error
	GetJob(ctx context.Context, jobID string) (*models.SyncJob, error)
	// UpdateJob applies u if the job's current status permits it and returns the updated job
	UpdateJob(ctx context.Context, jobID string, u models.JobUpdate) (*models.SyncJob, error)
	// ListJobs returns matching jobs, newest first
	ListJobs(ctx context.Context, filter models.JobFilter) ([]*models.SyncJob, error)
}

// ContentStore persists the records pulled from external sources. Upserts are
// idempotent on each record's natural key.
type ContentStore interface {
	UpsertBrands(ctx context.Context, brands []*models.Brand) error
	ListBrands(ctx context.Context) ([]*models.Brand, error)
	UpsertPrompts(ctx context.Context, prompts []*models.Prompt) error
	UpsertResponses(ctx context.Context, responses []*models.Response) error
	UpsertTrafficRows(ctx context.Context, rows []*models.TrafficRow) error
	UpsertCampaigns(ctx context.Context, campaigns []*models.Campaign) error
	UpsertKeywordRankings(ctx context.Context, rankings []*models.KeywordRanking) error
}

// Store defines the interface for database operations
type Store interface {
	JobStore
	ContentStore
	Ping(ctx context.Context) error
	Close() error
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(connectionString string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewPostgresStoreFromDB(db), nil
}

// NewPostgresStoreFromDB wraps an open connection pool
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies the embedded schema migrations
func (s *PostgresStore) Migrate() error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
