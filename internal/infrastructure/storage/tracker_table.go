package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"MailTracker/internal/domain"
	"MailTracker/internal/ports"
)

// Field names of the logical tracker row. The location maps to the id column.
const (
	FieldPrimary    = "primary"
	FieldSecondary  = "secondary"
	FieldStatus     = "status"
	FieldPeakStatus = "peak_status"
	FieldLastUpdate = "last_update"
	FieldSubject    = "subject"
	FieldPermalink  = "permalink"
	FieldMessageID  = "message_id"
	FieldThreadID   = "thread_id"
	FieldNotes      = "notes"
)

var fieldOrder = []string{
	FieldPrimary,
	FieldSecondary,
	FieldStatus,
	FieldPeakStatus,
	FieldLastUpdate,
	FieldSubject,
	FieldPermalink,
	FieldMessageID,
	FieldThreadID,
	FieldNotes,
}

const idColumn = "id"

// TrackerTable stores tracked entities in one SQL table. The row id is the
// entity location.
type TrackerTable struct {
	db      *DB
	table   string
	columns map[string]string
}

var _ ports.TrackerTable = (*TrackerTable)(nil)

// NewTrackerTable maps logical fields to physical columns. Unmapped fields
// use their own name.
func NewTrackerTable(db *DB, table string, columns map[string]string) (*TrackerTable, error) {
	if db == nil {
		return nil, fmt.Errorf("tracker table: nil database")
	}
	if strings.TrimSpace(table) == "" {
		return nil, fmt.Errorf("tracker table: empty table name")
	}

	mapped := make(map[string]string, len(fieldOrder))
	for _, f := range fieldOrder {
		mapped[f] = f
	}
	seen := map[string]string{}
	for field, column := range columns {
		if _, ok := mapped[field]; !ok {
			return nil, fmt.Errorf("tracker table: unknown field %q in column mapping", field)
		}
		column = strings.TrimSpace(column)
		if column == "" || strings.EqualFold(column, idColumn) {
			return nil, fmt.Errorf("tracker table: invalid column %q for field %q", column, field)
		}
		mapped[field] = column
	}
	for _, f := range fieldOrder {
		key := strings.ToLower(mapped[f])
		if other, dup := seen[key]; dup {
			return nil, fmt.Errorf("tracker table: fields %q and %q share column %q", other, f, mapped[f])
		}
		seen[key] = f
	}

	return &TrackerTable{db: db, table: table, columns: mapped}, nil
}

// Migrate creates the table when it does not exist.
func (t *TrackerTable) Migrate(ctx context.Context) error {
	defs := []string{quoteIdent(idColumn) + " " + t.db.idColumnDDL()}
	for _, f := range fieldOrder {
		defs = append(defs, quoteIdent(t.columns[f])+" TEXT NOT NULL DEFAULT ''")
	}
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(t.table), strings.Join(defs, ", "))
	if _, err := t.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create tracker table %s: %w", t.table, err)
	}
	return nil
}

// LoadAll returns every row in table order.
func (t *TrackerTable) LoadAll(ctx context.Context) ([]domain.Entity, error) {
	cols := []string{quoteIdent(idColumn)}
	for _, f := range fieldOrder {
		cols = append(cols, quoteIdent(t.columns[f]))
	}
	query, args, err := t.db.builder.
		Select(cols...).
		From(quoteIdent(t.table)).
		OrderBy(quoteIdent(idColumn)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tracker rows: %w", err)
	}

	var result []domain.Entity
	for rows.Next() {
		var (
			e          domain.Entity
			lastUpdate string
		)
		if err := rows.Scan(
			&e.Location,
			&e.Primary,
			&e.Secondary,
			&e.Status,
			&e.PeakStatus,
			&lastUpdate,
			&e.Subject,
			&e.Permalink,
			&e.MessageID,
			&e.ThreadID,
			&e.Notes,
		); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan tracker row: %w", err)
		}
		e.LastUpdate = parseTime(lastUpdate)
		result = append(result, e)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}
	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}
	return result, nil
}

// UpdateRow overwrites the row at e.Location.
func (t *TrackerTable) UpdateRow(ctx context.Context, e domain.Entity) error {
	if e.Location < 0 {
		return fmt.Errorf("update row: entity has no location")
	}

	set := sq.Eq{}
	for field, value := range t.values(e) {
		set[quoteIdent(t.columns[field])] = value
	}
	query, args, err := t.db.builder.
		Update(quoteIdent(t.table)).
		SetMap(set).
		Where(sq.Eq{quoteIdent(idColumn): e.Location}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	res, err := t.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update row %d: %w", e.Location, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update row %d: %w", e.Location, domain.ErrRowNotFound)
	}
	return nil
}

// AppendRows inserts rows in one transaction and returns their ids in order.
// Either every row is written or none is.
func (t *TrackerTable) AppendRows(ctx context.Context, rows []domain.Entity) (ids []int64, err error) {
	if len(rows) == 0 {
		return nil, nil
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin append: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	cols := make([]string, len(fieldOrder))
	for i, f := range fieldOrder {
		cols[i] = quoteIdent(t.columns[f])
	}

	ids = make([]int64, 0, len(rows))
	for _, e := range rows {
		values := t.values(e)
		args := make([]any, len(fieldOrder))
		for i, f := range fieldOrder {
			args[i] = values[f]
		}

		query, qargs, buildErr := t.db.builder.
			Insert(quoteIdent(t.table)).
			Columns(cols...).
			Values(args...).
			Suffix("RETURNING " + quoteIdent(idColumn)).
			ToSql()
		if buildErr != nil {
			return nil, fmt.Errorf("build insert: %w", buildErr)
		}

		var id int64
		if err = tx.QueryRowContext(ctx, query, qargs...).Scan(&id); err != nil {
			return nil, fmt.Errorf("insert row: %w", err)
		}
		ids = append(ids, id)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit append: %w", err)
	}
	return ids, nil
}

func (t *TrackerTable) values(e domain.Entity) map[string]any {
	return map[string]any{
		FieldPrimary:    e.Primary,
		FieldSecondary:  e.Secondary,
		FieldStatus:     e.Status,
		FieldPeakStatus: e.PeakStatus,
		FieldLastUpdate: formatTime(e.LastUpdate),
		FieldSubject:    e.Subject,
		FieldPermalink:  e.Permalink,
		FieldMessageID:  e.MessageID,
		FieldThreadID:   e.ThreadID,
		FieldNotes:      e.Notes,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

// isNoRows reports a missing single-row result.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
