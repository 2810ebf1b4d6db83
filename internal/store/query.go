package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ILIKE pattern matching q anywhere in a column.
func containsPattern(q string) string {
	return "%" + likeEscaper.Replace(q) + "%"
}

// searchClause returns a WHERE clause matching $1 against any of columns,
// or "" when q is empty.
func searchClause(q string, columns ...string) string {
	if q == "" {
		return ""
	}
	parts := make([]string, 0, len(columns))
	for _, column := range columns {
		parts = append(parts, column+" ILIKE $1")
	}
	return " WHERE " + strings.Join(parts, " OR ")
}

// countGroups counts rows of table grouped by column. Both names come from
// constants in this package, never from request input.
func countGroups(ctx context.Context, db *sql.DB, table, column string) (map[string]int, error) {
	query := fmt.Sprintf(`SELECT %s, COUNT(1) FROM %s GROUP BY %s`, column, table, column)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		counts[key] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullIntPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

// validID reports whether id can address a row. Ids are UUID columns, so
// anything else would fail the cast in Postgres instead of matching nothing.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
