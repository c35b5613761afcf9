package cache

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/matzehuels/jarprobe/pkg/errors"
	"github.com/matzehuels/jarprobe/pkg/gav"
)

const pgTable = "verified_artifacts"

// pgColumns is the expected column layout, in ordinal order.
var pgColumns = []pgColumn{
	{"hash", "text"},
	{"group_id", "text"},
	{"artifact_id", "text"},
	{"version", "text"},
	{"repository", "text"},
	{"private", "boolean"},
}

type pgColumn struct {
	Name string
	Type string
}

const pgCreate = `CREATE TABLE IF NOT EXISTS verified_artifacts (
	hash        text PRIMARY KEY,
	group_id    text NOT NULL,
	artifact_id text NOT NULL,
	version     text NOT NULL,
	repository  text NOT NULL,
	private     boolean NOT NULL
)`

// PostgresStore keeps entries in a single table with the hash as primary
// key; ON CONFLICT DO NOTHING makes the first insert win.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects with the pgx driver and checks the table.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "open postgres cache")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "connect postgres cache")
	}
	s := &PostgresStore{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables
		 WHERE table_schema = current_schema() AND table_name = $1)`, pgTable).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		if _, err := s.db.ExecContext(ctx, pgCreate); err != nil {
			return err
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT column_name, data_type FROM information_schema.columns
		 WHERE table_schema = current_schema() AND table_name = $1
		 ORDER BY ordinal_position`, pgTable)
	if err != nil {
		return err
	}
	defer rows.Close()

	var found []pgColumn
	for rows.Next() {
		var c pgColumn
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return err
		}
		found = append(found, c)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if len(found) != len(pgColumns) {
		return schemaMismatch("postgres", found)
	}
	for i := range found {
		if found[i] != pgColumns[i] {
			return schemaMismatch("postgres", found)
		}
	}
	return nil
}

// Get retrieves the entry for hash.
func (s *PostgresStore) Get(ctx context.Context, hash string) (Entry, bool, error) {
	var (
		e Entry
		g gav.Coordinate
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT group_id, artifact_id, version, repository, private
		 FROM verified_artifacts WHERE hash = $1`, hash).
		Scan(&g.Group, &g.Artifact, &g.Version, &e.Repository, &e.Private)
	if stderrors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	e.Coordinate = g
	return e, true, nil
}

// Put inserts e unless a row for hash exists.
func (s *PostgresStore) Put(ctx context.Context, hash string, e Entry) (bool, error) {
	if err := e.Validate(); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO verified_artifacts (hash, group_id, artifact_id, version, repository, private)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (hash) DO NOTHING`,
		hash, e.Coordinate.Group, e.Coordinate.Artifact, e.Coordinate.Version, e.Repository, e.Private)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

var _ Store = (*PostgresStore)(nil)
