//go:build integration

package containers

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// PostgresContainer wraps a testcontainers Postgres instance with an open
// database handle.
type PostgresContainer struct {
	Container testcontainers.Container
	URL       string
	DB        *sql.DB
}

// NewPostgresContainer starts a Postgres container torn down with the test.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("vitae_test"),
		tcpostgres.WithUsername("vitae"),
		tcpostgres.WithPassword("vitae"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", url)
	if err != nil {
		t.Fatalf("failed to open postgres: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("failed to ping postgres: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return &PostgresContainer{
		Container: container,
		URL:       url,
		DB:        db,
	}
}

// Reset empties the registry tables and zeroes the reward settings row.
// Tables that do not exist yet are fine; schema application is the
// store's job.
func (p *PostgresContainer) Reset(ctx context.Context) error {
	_, err := p.DB.ExecContext(ctx, `
		DO $$
		BEGIN
			IF to_regclass('account_claims') IS NOT NULL THEN
				TRUNCATE account_claims, ledger, claims, bank_accounts RESTART IDENTITY CASCADE;
				UPDATE reward_settings SET
					root = '00000000-0000-0000-0000-000000000000',
					root_set = FALSE, enabled = FALSE, interval_claims = 0,
					amount = 0, balance = 0, total_paid = 0, claim_counter = 0;
			END IF;
			IF to_regclass('event_archive') IS NOT NULL THEN
				TRUNCATE event_archive;
			END IF;
		END $$;
	`)
	return err
}
