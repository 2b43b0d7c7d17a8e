package datasource

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const barsCSV = `code,time,open,close,money
000001,2024-01-01,10,11,100
600000,2024-01-01,20,21,
000001,2024-01-02,11,12,110
600000,2024-01-02,21,22,220
`

func writeBarsCSV(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, os.WriteFile(path, []byte(barsCSV), 0644))
	return path
}

func TestCSVLoad(t *testing.T) {
	src := NewCSV(writeBarsCSV(t))
	ctx := context.Background()

	p, err := src.Load(ctx, Close, Params{})
	require.NoError(t, err)
	assert.Equal(t, []string{"000001.XSHE", "600000.XSHG"}, p.Assets())
	assert.Equal(t, []float64{11, 21, 12, 22}, p.Values)

	amount, err := src.Load(ctx, Amount, Params{})
	require.NoError(t, err)
	v, ok := amount.Get(day(1), "600000.XSHG")
	require.True(t, ok)
	assert.True(t, math.IsNaN(v))
	v, _ = amount.Get(day(2), "600000.XSHG")
	assert.Equal(t, 220.0, v)
}

func TestCSVFilterAndUnsupported(t *testing.T) {
	src := NewCSV(writeBarsCSV(t))
	ctx := context.Background()

	p, err := src.Load(ctx, Open, Params{Universe: []string{"600000.XSHG"}, Begin: day(2)})
	require.NoError(t, err)
	assert.Equal(t, []float64{21}, p.Values)

	_, err = src.Load(ctx, Turnover, Params{})
	assert.ErrorIs(t, err, ErrFieldNotSupported)

	_, err = NewCSV(filepath.Join(t.TempDir(), "missing.csv")).Load(ctx, Close, Params{})
	assert.Error(t, err)
}

func TestCSVThroughCache(t *testing.T) {
	src := NewCached(NewCSV(writeBarsCSV(t)), Params{})
	src.SetUniverse([]string{"1"})

	p, err := src.Field(context.Background(), Close)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001.XSHE"}, p.Assets())
	assert.Equal(t, []float64{11, 12}, p.Values)
}
