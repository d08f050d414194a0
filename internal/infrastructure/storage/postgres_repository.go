package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"HealthIngest/internal/domain"
	"HealthIngest/internal/ports"
)

const (
	defaultChunkSize = 5000
	// Postgres caps a statement at 65535 bind parameters.
	maxBindParams = 65535

	typeBigint = "BIGINT"
	typeDouble = "DOUBLE PRECISION"
	typeText   = "TEXT"
)

// DB is the part of *pgxpool.Pool the repository relies on.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// PostgresRepository bulk-loads normalized tables into Postgres.
type PostgresRepository struct {
	db        DB
	chunkSize int
}

var _ ports.RelationalStore = (*PostgresRepository)(nil)

// NewPostgresRepository wires a pool; chunkSize defaults to 5000 rows per INSERT.
func NewPostgresRepository(db DB, chunkSize int) *PostgresRepository {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &PostgresRepository{db: db, chunkSize: chunkSize}
}

// Ping checks the database answers.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	if r.db == nil {
		return domain.NewStoreError(domain.StoreRelational, errors.New("database is not configured"))
	}
	return domain.NewStoreError(domain.StoreRelational, r.db.Ping(ctx))
}

type column struct {
	ident   string
	sqlType string
}

// WriteTable creates the table from the inferred schema (dropping it first in
// replace mode) and inserts every row inside one transaction.
func (r *PostgresRepository) WriteTable(ctx context.Context, name string, table domain.Table, mode domain.WriteMode) (written int, err error) {
	if table.Len() == 0 {
		return 0, nil
	}
	if name == "" || len(table.Columns) == 0 {
		return 0, fmt.Errorf("%w: relational write needs a table name and columns", domain.ErrContractViolation)
	}
	if mode != domain.WriteReplace && mode != domain.WriteAppend {
		return 0, fmt.Errorf("%w: unknown write mode %q", domain.ErrContractViolation, mode)
	}
	if r.db == nil {
		return 0, domain.NewStoreError(domain.StoreRelational, errors.New("database is not configured"))
	}

	tableIdent := pgx.Identifier{name}.Sanitize()
	schema := inferSchema(table)

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, domain.NewStoreError(domain.StoreRelational, fmt.Errorf("begin tx: %w", err))
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = fmt.Errorf("%w; rollback: %v", err, rbErr)
			}
			written = 0
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = domain.NewStoreError(domain.StoreRelational, fmt.Errorf("commit: %w", commitErr))
			written = 0
		}
	}()

	if mode == domain.WriteReplace {
		if _, err = tx.Exec(ctx, "DROP TABLE IF EXISTS "+tableIdent); err != nil {
			return 0, domain.NewStoreError(domain.StoreRelational, fmt.Errorf("drop %s: %w", name, err))
		}
	}
	if _, err = tx.Exec(ctx, createTableSQL(tableIdent, schema)); err != nil {
		return 0, domain.NewStoreError(domain.StoreRelational, fmt.Errorf("create %s: %w", name, err))
	}

	chunk := chunkRows(r.chunkSize, len(schema))
	for start := 0; start < table.Len(); start += chunk {
		end := min(start+chunk, table.Len())
		query, args, buildErr := insertSQL(tableIdent, schema, table.Rows[start:end])
		if buildErr != nil {
			err = fmt.Errorf("build insert: %w", buildErr)
			return 0, err
		}
		tag, execErr := tx.Exec(ctx, query, args...)
		if execErr != nil {
			err = domain.NewStoreError(domain.StoreRelational, fmt.Errorf("insert rows %d-%d into %s: %w", start, end, name, execErr))
			return 0, err
		}
		written += int(tag.RowsAffected())
	}

	return written, nil
}

func chunkRows(chunkSize, columns int) int {
	if columns == 0 {
		return chunkSize
	}
	return max(1, min(chunkSize, maxBindParams/columns))
}

func createTableSQL(tableIdent string, schema []column) string {
	defs := make([]string, 0, len(schema))
	for _, c := range schema {
		defs = append(defs, c.ident+" "+c.sqlType)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", tableIdent, strings.Join(defs, ", "))
}

func insertSQL(tableIdent string, schema []column, rows []domain.Row) (string, []any, error) {
	idents := make([]string, len(schema))
	for i, c := range schema {
		idents[i] = c.ident
	}

	builder := sq.Insert(tableIdent).Columns(idents...).PlaceholderFormat(sq.Dollar)
	for _, row := range rows {
		values := make([]any, len(schema))
		for i, c := range schema {
			var v domain.Value
			if i < len(row) {
				v = row[i]
			}
			values[i] = sqlValue(v, c.sqlType)
		}
		builder = builder.Values(values...)
	}
	return builder.ToSql()
}

// inferSchema types every column from its present values: all integers give
// BIGINT, integers and decimals give DOUBLE PRECISION, anything else TEXT.
func inferSchema(t domain.Table) []column {
	schema := make([]column, len(t.Columns))
	for c, name := range t.Columns {
		seen, allInt, allFloat := false, true, true
		for _, row := range t.Rows {
			if c >= len(row) || row[c].IsMissing() {
				continue
			}
			seen = true
			v := row[c]
			if v.Kind == domain.ValueCode {
				continue
			}
			if _, err := strconv.ParseInt(v.Text, 10, 64); err != nil {
				allInt = false
			}
			if !isFinite(v.Text) {
				allFloat = false
			}
			if !allInt && !allFloat {
				break
			}
		}

		sqlType := typeText
		switch {
		case seen && allInt:
			sqlType = typeBigint
		case seen && allFloat:
			sqlType = typeDouble
		}
		schema[c] = column{ident: pgx.Identifier{name}.Sanitize(), sqlType: sqlType}
	}
	return schema
}

func isFinite(s string) bool {
	f, err := strconv.ParseFloat(s, 64)
	return err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
}

func sqlValue(v domain.Value, sqlType string) any {
	if v.IsMissing() {
		return nil
	}
	switch sqlType {
	case typeBigint:
		if v.Kind == domain.ValueCode {
			return int64(v.Code)
		}
		n, _ := strconv.ParseInt(v.Text, 10, 64)
		return n
	case typeDouble:
		if v.Kind == domain.ValueCode {
			return float64(v.Code)
		}
		f, _ := strconv.ParseFloat(v.Text, 64)
		return f
	default:
		return v.String()
	}
}
