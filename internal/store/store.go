// Package store appends quote snapshots and alert records to SQL storage.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"quotealert/internal/alert"
	"quotealert/internal/quote"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

//go:embed migrations
var migrations embed.FS

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Store is append-only: it never updates snapshots and only moves alerts
// out of pending.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
	now    func() time.Time
}

// Open connects, pings and migrates. dsn is a file path for sqlite (not
// ":memory:", migrations use their own connection) and a connection URL for
// postgres.
func Open(ctx context.Context, driver, dsn string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			dsn = "alerts.db"
		}
	case DriverPostgres:
		if dsn == "" {
			return nil, errors.New("store: postgres requires a DSN")
		}
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if driver == DriverSQLite {
		// One writer; avoids SQLITE_BUSY between pooled connections.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w, and failed to close connection: %w", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, logger: logger, now: time.Now}
	if err := s.migrate(driver, dsn); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("store ready", zap.String("driver", driver))
	return s, nil
}

// migrate runs the embedded migrations over a connection pool of its own,
// since closing the migrate instance closes the database it was given.
func (s *Store) migrate(driver, dsn string) error {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	return runMigrations(db, driver, s.logger)
}

// runMigrations migrates db up and closes it.
func runMigrations(db *sql.DB, driver string, logger *zap.Logger) (err error) {
	src, err := iofs.New(migrations, "migrations/"+driver)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	var drv database.Driver
	switch driver {
	case DriverSQLite:
		drv, err = migratesqlite.WithInstance(db, &migratesqlite.Config{})
	case DriverPostgres:
		drv, err = migratepg.WithInstance(db, &migratepg.Config{})
	default:
		err = fmt.Errorf("unsupported driver %q", driver)
	}
	if err != nil {
		_ = src.Close()
		_ = db.Close()
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, driver, drv)
	if err != nil {
		_ = src.Close()
		_ = drv.Close()
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if closeErr := errors.Join(srcErr, dbErr); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close migrations: %w", closeErr)
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	version, dirty, verr := m.Version()
	if verr != nil {
		logger.Warn("could not get migration version", zap.Error(verr))
	} else {
		logger.Debug("migration completed", zap.Uint("version", version), zap.Bool("dirty", dirty))
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type snapshotRow struct {
	ID          uuid.UUID `db:"id"`
	CycleID     uuid.UUID `db:"cycle_id"`
	Symbol      string    `db:"symbol"`
	Exchange    string    `db:"exchange"`
	Token       string    `db:"token"`
	LTP         string    `db:"ltp"`
	Volume      int64     `db:"volume"`
	OptionChain *string   `db:"option_chain"`
	FetchedAt   string    `db:"fetched_at"`
	RecordedAt  string    `db:"recorded_at"`
}

const insertSnapshot = `INSERT INTO snapshots
	(id, cycle_id, symbol, exchange, token, ltp, volume, option_chain, fetched_at, recorded_at)
	VALUES (:id, :cycle_id, :symbol, :exchange, :token, :ltp, :volume, :option_chain, :fetched_at, :recorded_at)`

// AppendQuotes writes one row per quote in a single transaction. Rows are
// never deduplicated, so a retried cycle may append twice.
func (s *Store) AppendQuotes(ctx context.Context, cycleID uuid.UUID, quotes []quote.Quote) error {
	if len(quotes) == 0 {
		return nil
	}
	recorded := timestamp(s.now())
	rows := make([]snapshotRow, 0, len(quotes))
	for _, q := range quotes {
		row := snapshotRow{
			ID:         uuid.New(),
			CycleID:    cycleID,
			Symbol:     q.Symbol,
			Exchange:   q.Exchange,
			Token:      q.Token,
			LTP:        q.LTP.String(),
			Volume:     q.Volume,
			FetchedAt:  timestamp(q.FetchedAt),
			RecordedAt: recorded,
		}
		if q.OptionChain != nil {
			b, err := json.Marshal(q.OptionChain)
			if err != nil {
				return fmt.Errorf("encoding option chain for %s: %w", q.Symbol, err)
			}
			oc := string(b)
			row.OptionChain = &oc
		}
		rows = append(rows, row)
	}

	return s.withTransaction(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PrepareNamedContext(ctx, insertSnapshot)
		if err != nil {
			return fmt.Errorf("preparing snapshot insert: %w", err)
		}
		defer stmt.Close()
		for _, row := range rows {
			if _, err := stmt.ExecContext(ctx, row); err != nil {
				return fmt.Errorf("inserting snapshot %s: %w", row.Symbol, err)
			}
		}
		return nil
	})
}

type alertRow struct {
	ID          uuid.UUID `db:"id"`
	CycleID     uuid.UUID `db:"cycle_id"`
	CreatedAt   string    `db:"created_at"`
	Message     string    `db:"message"`
	Status      string    `db:"status"`
	Error       string    `db:"error"`
	DeliveredAt *string   `db:"delivered_at"`
}

// InsertAlert stores a new alert record.
func (s *Store) InsertAlert(ctx context.Context, rec *alert.Record) error {
	row := alertRow{
		ID:        rec.ID,
		CycleID:   rec.CycleID,
		CreatedAt: timestamp(rec.CreatedAt),
		Message:   rec.Message,
		Status:    string(rec.Status),
		Error:     rec.Error,
	}
	if rec.DeliveredAt != nil {
		ts := timestamp(*rec.DeliveredAt)
		row.DeliveredAt = &ts
	}
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO alerts
		(id, cycle_id, created_at, message, status, error, delivered_at)
		VALUES (:id, :cycle_id, :created_at, :message, :status, :error, :delivered_at)`, row)
	if err != nil {
		return fmt.Errorf("inserting alert: %w", err)
	}
	return nil
}

// ErrAlertNotPending is returned when an alert has already left pending or
// does not exist.
var ErrAlertNotPending = errors.New("alert not found or not pending")

// UpdateAlertStatus records the delivery outcome. at is stored as delivered_at
// only for sent alerts.
func (s *Store) UpdateAlertStatus(ctx context.Context, id uuid.UUID, status alert.Status, errText string, at time.Time) error {
	var delivered *string
	if status == alert.StatusSent {
		ts := timestamp(at)
		delivered = &ts
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(
		`UPDATE alerts SET status = ?, error = ?, delivered_at = ? WHERE id = ? AND status = ?`),
		string(status), errText, delivered, id, string(alert.StatusPending))
	if err != nil {
		return fmt.Errorf("updating alert %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating alert %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("updating alert %s: %w", id, ErrAlertNotPending)
	}
	return nil
}

func (s *Store) withTransaction(ctx context.Context, fn func(*sqlx.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Error("failed to rollback transaction", zap.Error(rbErr))
			}
			return
		}
		if commitErr := tx.Commit(); commitErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", commitErr)
		}
	}()
	return fn(tx)
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
