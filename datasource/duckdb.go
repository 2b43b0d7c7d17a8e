/*
- @Author: aztec
- @Date: 2024-03-14 16:52:08
- @Description: duckdb行情数据源
- @表为长表：time, code, 及各字段列（列名见ColumnOf），NULL视为NaN
- @Copyright (c) 2024 by aztec, All Rights Reserved.
*/
package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/aztecqt/factest/panel"
	_ "github.com/marcboeker/go-duckdb"
)

const DefaultBarTable = "bars"

var reTableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type DuckDB struct {
	db    *sql.DB
	table string
}

// path可以是文件，或":memory:"
func OpenDuckDB(path string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}
	return db, nil
}

func NewDuckDB(db *sql.DB, table string) (*DuckDB, error) {
	if table == "" {
		table = DefaultBarTable
	}
	if !reTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &DuckDB{db: db, table: table}, nil
}

func (d *DuckDB) Name() string {
	return fmt.Sprintf("duckdb(%s)", d.table)
}

func (d *DuckDB) hasColumn(ctx context.Context, col string) (bool, error) {
	n := 0
	err := d.db.QueryRowContext(ctx,
		`SELECT count(*) FROM information_schema.columns WHERE table_name = ? AND column_name = ?`,
		d.table, col).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query columns of %s: %w", d.table, err)
	}
	return n > 0, nil
}

func (d *DuckDB) Load(ctx context.Context, f Field, params Params) (*panel.Panel, error) {
	col := ColumnOf(f)
	ok, err := d.hasColumn(ctx, col)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s (no column %q in %s)", ErrFieldNotSupported, f, col, d.table)
	}

	begin, end := params.Begin, params.End
	if begin.IsZero() {
		begin = time.Unix(0, 0).UTC()
	}
	if end.IsZero() {
		end = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	}

	// 列名与表名都已校验过
	query := fmt.Sprintf(`SELECT "time", code, "%s" FROM %s WHERE "time" >= ? AND "time" <= ? ORDER BY "time", code`, col, d.table)
	rows, err := d.db.QueryContext(ctx, query, begin, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", f, err)
	}
	defer rows.Close()

	keys := []panel.Key{}
	values := []float64{}
	for rows.Next() {
		var t time.Time
		var code string
		var v sql.NullFloat64
		if err := rows.Scan(&t, &code, &v); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", f, err)
		}
		code = FormatSecurityCode(code)
		if !params.InUniverse(code) {
			continue
		}
		keys = append(keys, panel.Key{Date: t.UTC(), Asset: code})
		values = append(values, nullToNaN(v))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return panel.New(keys, values)
}

func nullToNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
