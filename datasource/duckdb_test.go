package datasource

import (
	"context"
	"database/sql"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openBars(t *testing.T) *sql.DB {
	db, err := OpenDuckDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE bars ("time" TIMESTAMP, code VARCHAR, open DOUBLE, close DOUBLE)`)
	require.NoError(t, err)
	rows := []struct {
		d     int
		code  string
		open  interface{}
		close interface{}
	}{
		{1, "000001.XSHE", 10.0, 11.0},
		{1, "600000.XSHG", 20.0, nil},
		{2, "000001.XSHE", 11.0, 12.0},
		{2, "600000.XSHG", 21.0, 22.0},
	}
	for _, r := range rows {
		_, err := db.Exec(`INSERT INTO bars VALUES (?, ?, ?, ?)`, day(r.d), r.code, r.open, r.close)
		require.NoError(t, err)
	}
	return db
}

func TestDuckDBLoad(t *testing.T) {
	src, err := NewDuckDB(openBars(t), "")
	require.NoError(t, err)
	ctx := context.Background()

	p, err := src.Load(ctx, Close, Params{})
	require.NoError(t, err)
	assert.Equal(t, []string{"000001.XSHE", "600000.XSHG"}, p.Assets())
	v, ok := p.Get(day(1), "600000.XSHG")
	require.True(t, ok)
	assert.True(t, math.IsNaN(v))
	v, _ = p.Get(day(2), "600000.XSHG")
	assert.Equal(t, 22.0, v)

	p, err = src.Load(ctx, Open, Params{Universe: []string{"000001.XSHE"}, Begin: day(2)})
	require.NoError(t, err)
	assert.Equal(t, []float64{11}, p.Values)

	_, err = src.Load(ctx, Vwap, Params{})
	assert.ErrorIs(t, err, ErrFieldNotSupported)
}

func TestDuckDBTableName(t *testing.T) {
	_, err := NewDuckDB(nil, "bars; DROP TABLE bars")
	assert.Error(t, err)
}
