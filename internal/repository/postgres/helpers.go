package postgres

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	ierr "github.com/flexprice/parkingpermits/internal/errors"
	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"
	"github.com/lib/pq"
	"github.com/samber/lo"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// jsonb stores a value as a postgres jsonb column
type jsonb[T any] struct {
	V T
}

func (j jsonb[T]) Value() (driver.Value, error) {
	return json.Marshal(j.V)
}

func (j *jsonb[T]) Scan(src interface{}) error {
	switch s := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(s, &j.V)
	case string:
		return json.Unmarshal([]byte(s), &j.V)
	default:
		return fmt.Errorf("unsupported jsonb source %T", src)
	}
}

// toDate converts a civil date to the time.Time lib/pq sends for a DATE column
func toDate(d civil.Date) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// fromDate reads a DATE column back as a civil date
func fromDate(t time.Time) civil.Date {
	return civil.Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// toNullableDate converts an optional civil date for a nullable DATE column
func toNullableDate(d *civil.Date) *time.Time {
	if d == nil {
		return nil
	}
	return lo.ToPtr(toDate(*d))
}

// fromNullableDate reads a nullable DATE column back as an optional civil date
func fromNullableDate(t *time.Time) *civil.Date {
	if t == nil {
		return nil
	}
	return lo.ToPtr(fromDate(*t))
}

func stringArray[T ~string](values []T) pq.StringArray {
	return lo.Map(values, func(v T, _ int) string { return string(v) })
}

// whereClause joins named conditions into a WHERE clause
type whereClause struct {
	conds  []string
	params map[string]interface{}
}

func newWhere() *whereClause {
	return &whereClause{params: map[string]interface{}{}}
}

func (w *whereClause) add(cond, name string, value interface{}) {
	w.conds = append(w.conds, cond)
	w.params[name] = value
}

func (w *whereClause) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// scanOne reads the single row of a named query, mapping no rows to ErrNotFound
func scanOne(rows *sqlx.Rows, dest interface{}, entity, id string) error {
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return dbError(err, "failed to read "+entity)
		}
		return ierr.NewError(entity+" not found").
			WithHintf("%s %s was not found", entity, id).
			WithReportableDetails(map[string]any{"id": id}).
			Mark(ierr.ErrNotFound)
	}
	if err := rows.StructScan(dest); err != nil {
		return dbError(err, "failed to scan "+entity)
	}
	return nil
}

// scanAll reads every row of a named query into newly allocated rows
func scanAll[T any](rows *sqlx.Rows, entity string) ([]*T, error) {
	defer rows.Close()

	var out []*T
	for rows.Next() {
		var row T
		if err := rows.StructScan(&row); err != nil {
			return nil, dbError(err, "failed to scan "+entity)
		}
		out = append(out, &row)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "failed to list "+entity)
	}
	return out, nil
}

func dbError(err error, msg string) error {
	if err == sql.ErrNoRows {
		return ierr.WithError(err).WithMessage(msg).Mark(ierr.ErrNotFound)
	}
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return ierr.WithError(err).
			WithMessage(msg).
			WithHint("A record with the same identity already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	return ierr.WithError(err).WithMessage(msg).Mark(ierr.ErrDatabase)
}

// checkAffected turns an update that touched no row into ErrNotFound
func checkAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return dbError(err, "failed to update "+entity)
	}
	if n == 0 {
		return ierr.NewError(entity+" not found").
			WithHintf("%s %s was not found", entity, id).
			Mark(ierr.ErrNotFound)
	}
	return nil
}
