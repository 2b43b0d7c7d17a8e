package datasource

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/aztecqt/factest/panel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nan = math.NaN()

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func grid(t *testing.T, assets []string, rows ...[]float64) *panel.Panel {
	t.Helper()
	keys := []panel.Key{}
	values := []float64{}
	for i, row := range rows {
		for j, a := range assets {
			keys = append(keys, panel.Key{Date: day(i + 1), Asset: a})
			values = append(values, row[j])
		}
	}
	p, err := panel.New(keys, values)
	require.NoError(t, err)
	return p
}

type countingLoader struct {
	*Memory
	calls map[Field]int
}

func (c *countingLoader) Load(ctx context.Context, f Field, params Params) (*panel.Panel, error) {
	c.calls[f]++
	return c.Memory.Load(ctx, f, params)
}

func TestParseField(t *testing.T) {
	f, ok := ParseField("CLOSE")
	assert.True(t, ok)
	assert.Equal(t, Close, f)

	_, ok = ParseField("close")
	assert.False(t, ok)
	_, ok = ParseField("RANK")
	assert.False(t, ok)

	assert.Len(t, Fields(), 31)
	for _, f := range Fields() {
		g, ok := ParseField(string(f))
		assert.True(t, ok)
		assert.Equal(t, f, g)
	}
}

func TestColumnOf(t *testing.T) {
	assert.Equal(t, "close", ColumnOf(Close))
	assert.Equal(t, "money", ColumnOf(Amount))
	assert.Equal(t, "avg", ColumnOf(Vwap))
	assert.Equal(t, "high_limit", ColumnOf(HighLimit))
	assert.Equal(t, "turnover", ColumnOf(Turnover))
}

func TestDealMethod(t *testing.T) {
	for d, want := range map[DealMethod]Field{"": Close, DealClose: Close, DealOpen: Open, DealVwap: Vwap} {
		f, err := d.Field()
		require.NoError(t, err)
		assert.Equal(t, want, f)
	}
	_, err := DealMethod("twap").Field()
	assert.Error(t, err)
}

func TestFormatSecurityCode(t *testing.T) {
	cases := map[string]string{
		"1":           "000001.XSHE",
		"600000":      "600000.XSHG",
		"510300":      "510300.XSHG",
		"300750":      "300750.XSHE",
		"000001.sz":   "000001.XSHE",
		"600519.SH":   "600519.XSHG",
		"sh600519":    "600519.XSHG",
		"000001.XSHE": "000001.XSHE",
		"btc_usdt":    "btc_usdt",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatSecurityCode(in), in)
	}
}

func TestBenchmarkCode(t *testing.T) {
	assert.Equal(t, "hs300", BenchmarkCode("沪深300"))
	assert.Equal(t, "zz1000", BenchmarkCode("中证1000"))
	assert.Equal(t, "zzqz", BenchmarkCode("中证全指"))
	assert.Equal(t, "zz500", BenchmarkCode("zz500"))
}

func TestParamsFilter(t *testing.T) {
	p := grid(t, []string{"A", "B"}, []float64{1, 2}, []float64{3, 4}, []float64{5, 6})
	params := Params{Universe: []string{"B"}, Begin: day(2), End: day(3)}
	out := params.Filter(p)
	assert.Equal(t, []float64{4, 6}, out.Values)
}

func TestCachedLoadsEachFieldOnce(t *testing.T) {
	mem := NewMemory().
		Set(Close, grid(t, []string{"A", "B"}, []float64{1, 2}, []float64{3, 4})).
		Set(Open, grid(t, []string{"A", "B"}, []float64{1, 1}, []float64{1, 1}))
	loader := &countingLoader{Memory: mem, calls: map[Field]int{}}
	src := NewCached(loader, Params{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := src.Field(ctx, Close)
		require.NoError(t, err)
	}
	_, err := src.Field(ctx, Open)
	require.NoError(t, err)
	assert.Equal(t, 1, loader.calls[Close])
	assert.Equal(t, 1, loader.calls[Open])

	// 参数变化后重新加载
	src.SetUniverse([]string{"A"})
	p, err := src.Field(ctx, Close)
	require.NoError(t, err)
	assert.Equal(t, 2, loader.calls[Close])
	assert.Equal(t, []string{"A"}, p.Assets())

	src.SetDateRange(day(2), day(2))
	p, err = src.Field(ctx, Close)
	require.NoError(t, err)
	assert.Equal(t, 3, loader.calls[Close])
	assert.Equal(t, []float64{3}, p.Values)

	src.SetDealMethod(DealOpen)
	src.SetBenchmark("沪深300")
	_, err = src.Field(ctx, Close)
	require.NoError(t, err)
	assert.Equal(t, 4, loader.calls[Close])
	assert.Equal(t, "hs300", src.Params().Benchmark)
}

func TestCachedFillsGrid(t *testing.T) {
	p, err := panel.New(
		[]panel.Key{{Date: day(1), Asset: "A"}, {Date: day(1), Asset: "B"}, {Date: day(2), Asset: "A"}},
		[]float64{1, 2, 3})
	require.NoError(t, err)
	src := NewCached(NewMemory().Set(Close, p), Params{})

	out, err := src.Field(context.Background(), Close)
	require.NoError(t, err)
	assert.Equal(t, 4, out.Len())
	v, ok := out.Get(day(2), "B")
	assert.True(t, ok)
	assert.True(t, math.IsNaN(v))
}

func TestCachedErrors(t *testing.T) {
	src := NewCached(NewMemory().Set(Close, grid(t, []string{"A"}, []float64{1})), Params{})
	ctx := context.Background()

	_, err := src.Field(ctx, Open)
	assert.ErrorIs(t, err, ErrFieldNotSupported)

	src.SetDateRange(day(10), day(20))
	_, err = src.Field(ctx, Close)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestQuoteIsNextPeriodPrice(t *testing.T) {
	mem := NewMemory().
		Set(Close, grid(t, []string{"A"}, []float64{1}, []float64{2}, []float64{3})).
		Set(Open, grid(t, []string{"A"}, []float64{10}, []float64{20}, []float64{30}))
	src := NewCached(mem, Params{})
	ctx := context.Background()

	q, err := src.Quote(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2.0, q.Data[0][0])
	assert.Equal(t, 3.0, q.Data[1][0])
	assert.True(t, math.IsNaN(q.Data[2][0]))

	src.SetDealMethod(DealOpen)
	q, err = src.Quote(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20.0, q.Data[0][0])

	src.SetDealMethod("twap")
	_, err = src.Quote(ctx)
	assert.Error(t, err)
}

func TestCachedFieldsShareGrid(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory().
		Set(Close, grid(t, []string{"A", "B"}, []float64{10, 20}, []float64{11, 21})).
		Set(Vwap, grid(t, []string{"A"}, []float64{9}))
	src := NewCached(mem, Params{})

	// 先取稀疏字段，网格只有A和第一天
	vwap, err := src.Field(ctx, Vwap)
	require.NoError(t, err)
	assert.Equal(t, 1, vwap.Len())

	closePx, err := src.Field(ctx, Close)
	require.NoError(t, err)
	assert.Equal(t, 4, closePx.Len())

	// 网格扩大后，已缓存的字段被重排到新网格
	vwap, err = src.Field(ctx, Vwap)
	require.NoError(t, err)
	require.NoError(t, vwap.Aligned(closePx))
	assert.Equal(t, 9.0, vwap.Values[0])
	for _, v := range vwap.Values[1:] {
		assert.True(t, math.IsNaN(v))
	}

	dates, assets := src.cache.Grid()
	assert.Len(t, dates, 2)
	assert.Equal(t, []string{"A", "B"}, assets)

	q, err := src.Quote(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, q.Assets)

	src.SetDateRange(day(1), day(1))
	dates, assets = src.cache.Grid()
	assert.Empty(t, dates)
	assert.Empty(t, assets)
	closePx, err = src.Field(ctx, Close)
	require.NoError(t, err)
	assert.Equal(t, 2, closePx.Len())
}
