// Package sqlrender renders compiled queries as SQL with squirrel. Relations
// become LEFT JOINs, so a record without related records is tested once
// against NULL columns, the same way the native evaluator does it.
package sqlrender

import (
	"fmt"
	"math"
	"strings"

	"github.com/Masterminds/squirrel"

	"metaquery/internal/domain/predicate"
)

// Dialect captures the SQL differences between the supported databases.
type Dialect struct {
	Name        string
	Placeholder squirrel.PlaceholderFormat

	// contains renders a substring test on an already qualified column.
	contains func(col string, l predicate.Like) squirrel.Sqlizer

	// nullsFirst appends explicit NULLS FIRST/LAST to ORDER BY items so absent
	// values sort before present ones in ascending order.
	nullsFirst bool

	// offsetNeedsLimit marks dialects that reject OFFSET without LIMIT.
	offsetNeedsLimit bool
}

var (
	// Postgres uses LIKE/ILIKE with backslash-escaped patterns.
	Postgres = Dialect{
		Name:        "postgres",
		Placeholder: squirrel.Dollar,
		contains: func(col string, l predicate.Like) squirrel.Sqlizer {
			pattern := "%" + EscapeLike(l.Substring) + "%"
			if l.FoldCase {
				return squirrel.ILike{col: pattern}
			}
			return squirrel.Like{col: pattern}
		},
		nullsFirst: true,
	}

	// SQLite's LIKE ignores ASCII case, so substring tests go through instr.
	SQLite = Dialect{
		Name:        "sqlite",
		Placeholder: squirrel.Question,
		contains: func(col string, l predicate.Like) squirrel.Sqlizer {
			if l.FoldCase {
				return squirrel.Expr("instr(UPPER("+col+"), ?) > 0", strings.ToUpper(l.Substring))
			}
			return squirrel.Expr("instr("+col+", ?) > 0", l.Substring)
		},
		offsetNeedsLimit: true,
	}

	// MySQL compares with the column collation; the binary cast makes the
	// default test case-sensitive.
	MySQL = Dialect{
		Name:        "mysql",
		Placeholder: squirrel.Question,
		contains: func(col string, l predicate.Like) squirrel.Sqlizer {
			if l.FoldCase {
				return squirrel.Expr("INSTR(UPPER("+col+"), UPPER(?)) > 0", l.Substring)
			}
			return squirrel.Expr("INSTR(CAST("+col+" AS BINARY), CAST(? AS BINARY)) > 0", l.Substring)
		},
		offsetNeedsLimit: true,
	}
)

// unboundedLimit stands for "no limit" where LIMIT is required by OFFSET.
const unboundedLimit = math.MaxInt64

// DialectByName returns the dialect for a driver name.
func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "mysql":
		return MySQL, nil
	}
	return Dialect{}, fmt.Errorf("unsupported SQL dialect %q", name)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes LIKE wildcards so s matches literally.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}
