package sqlstore

import (
	"database/sql"

	"github.com/uptrace/bun"
)

func isAffected(res sql.Result) bool {
	rows, err := res.RowsAffected()
	if err != nil {
		return true
	}
	return rows != 0
}

func getAffected(res sql.Result) int64 {
	ret, err := res.RowsAffected()
	if err != nil {
		return -1
	}
	return ret
}

// lockRow applies a row-level SELECT ... FOR UPDATE lock when the
// dialect supports it. sqlite has no row locking (its single-writer
// model makes it unnecessary); postgres and mysql both understand
// FOR UPDATE.
func (s *SQLStore) lockRow(q *bun.SelectQuery) *bun.SelectQuery {
	if s.dialect == DialectSQLite {
		return q
	}
	return q.For("UPDATE")
}
