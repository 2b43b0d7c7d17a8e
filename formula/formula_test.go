package formula

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/aztecqt/factest/datasource"
	"github.com/aztecqt/factest/operator"
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

// 记录每个字段被取的次数
type countingSource struct {
	*datasource.Memory
	calls map[datasource.Field]int
}

func (c *countingSource) Field(ctx context.Context, f datasource.Field) (*panel.Panel, error) {
	c.calls[f]++
	return c.Memory.Field(ctx, f)
}

// 两个品种、两个日期
func fixture(t *testing.T) *countingSource {
	assets := []string{"A", "B"}
	mem := datasource.NewMemory().
		Set(datasource.Open, grid(t, assets, []float64{10, 20}, []float64{11, 25})).
		Set(datasource.Close, grid(t, assets, []float64{11, 18}, []float64{11, 30}))
	return &countingSource{Memory: mem, calls: map[datasource.Field]int{}}
}

func evaluate(t *testing.T, src datasource.Source, formula string) (*panel.Panel, error) {
	return NewEvaluator(src, operator.Default()).Evaluate(context.Background(), formula)
}

func assertValues(t *testing.T, want []float64, got *panel.Panel) {
	t.Helper()
	require.Len(t, got.Values, len(want))
	for i := range want {
		if math.IsNaN(want[i]) {
			assert.True(t, math.IsNaN(got.Values[i]), "index %d: want NaN, got %v", i, got.Values[i])
		} else {
			assert.InDelta(t, want[i], got.Values[i], 1e-9, "index %d", i)
		}
	}
}

func TestAbsRelativeChange(t *testing.T) {
	src := fixture(t)
	p, err := evaluate(t, src, "ABS(CLOSE/OPEN - 1)")
	require.NoError(t, err)

	// (d1,A) (d1,B) (d2,A) (d2,B)
	assertValues(t, []float64{0.1, 0.1, 0, 0.2}, p)
	assert.Equal(t, "A", p.Keys[0].Asset)
	assert.Equal(t, "B", p.Keys[1].Asset)
	assert.True(t, p.Keys[3].Date.Equal(day(2)))
}

func TestFieldsFetchedOnce(t *testing.T) {
	src := fixture(t)
	_, err := evaluate(t, src, "CLOSE/OPEN + CLOSE*2 - RANK(CLOSE)")
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls[datasource.Close])
	assert.Equal(t, 1, src.calls[datasource.Open])
	assert.Len(t, src.calls, 2)
}

func TestResultDoesNotShareMemory(t *testing.T) {
	src := fixture(t)
	p, err := evaluate(t, src, "CLOSE")
	require.NoError(t, err)
	p.Values[0] = 999

	closePx, err := src.Memory.Field(context.Background(), datasource.Close)
	require.NoError(t, err)
	assert.Equal(t, 11.0, closePx.Values[0])
}

func TestDeltaThroughFormula(t *testing.T) {
	mem := datasource.NewMemory().Set(datasource.Close,
		grid(t, []string{"A", "B"}, []float64{1, 2}, []float64{2, 2}, []float64{0, 3}))
	p, err := evaluate(t, mem, "DELTA(CLOSE, 1)")
	require.NoError(t, err)
	assertValues(t, []float64{nan, nan, 1, 0, -2, 1}, p)
}

func TestComparisonAndLogic(t *testing.T) {
	assets := []string{"A", "B"}
	mem := datasource.NewMemory().
		Set(datasource.Open, grid(t, assets, []float64{10, 20})).
		Set(datasource.Close, grid(t, assets, []float64{11, nan}))

	p, err := evaluate(t, mem, "CLOSE > OPEN")
	require.NoError(t, err)
	assertValues(t, []float64{1, 0}, p)

	p, err = evaluate(t, mem, "CLOSE != OPEN")
	require.NoError(t, err)
	assertValues(t, []float64{1, 1}, p)

	p, err = evaluate(t, mem, "(CLOSE > OPEN) & (OPEN < 15)")
	require.NoError(t, err)
	assertValues(t, []float64{1, 0}, p)

	p, err = evaluate(t, mem, "(CLOSE > OPEN) | ~(OPEN < 15)")
	require.NoError(t, err)
	assertValues(t, []float64{1, 1}, p)

	p, err = evaluate(t, mem, "TRD(CLOSE > OPEN, CLOSE, -OPEN)")
	require.NoError(t, err)
	assertValues(t, []float64{11, -20}, p)
}

func TestConstants(t *testing.T) {
	mem := datasource.NewMemory().Set(datasource.Close, grid(t, []string{"A"}, []float64{2}))
	p, err := evaluate(t, mem, "CLOSE * True + FALSE")
	require.NoError(t, err)
	assertValues(t, []float64{2}, p)

	p, err = evaluate(t, mem, "CLOSE + NaN")
	require.NoError(t, err)
	assertValues(t, []float64{nan}, p)

	p, err = evaluate(t, mem, "CLOSE ** 2 + 1e-1")
	require.NoError(t, err)
	assertValues(t, []float64{4.1}, p)
}

func TestEvaluateErrors(t *testing.T) {
	src := fixture(t)

	_, err := evaluate(t, src, "CLOSE +")
	assert.ErrorIs(t, err, ErrSyntax)
	var se *SyntaxError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 7, se.Pos)
	assert.Empty(t, src.calls, "malformed formula must not load data")

	_, err = evaluate(t, src, "CLOSE $ 1")
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 6, se.Pos)

	_, err = evaluate(t, src, "FOO + CLOSE")
	assert.ErrorIs(t, err, ErrUnknownIdentifier)

	_, err = evaluate(t, src, "BAR(CLOSE)")
	assert.ErrorIs(t, err, ErrUnknownIdentifier)

	// 白名单内但数据源不支持
	_, err = evaluate(t, src, "VWAP * 2")
	assert.ErrorIs(t, err, ErrUnknownIdentifier)
	assert.ErrorIs(t, err, datasource.ErrFieldNotSupported)

	_, err = evaluate(t, src, "1 + 2")
	assert.ErrorIs(t, err, ErrNotPanel)

	_, err = evaluate(t, src, "SEQUENCE(3)")
	assert.ErrorIs(t, err, ErrNotPanel)

	_, err = evaluate(t, src, "STD(CLOSE, 0)")
	assert.ErrorIs(t, err, operator.ErrArgument)

	_, err = evaluate(t, src, "RANK")
	assert.ErrorIs(t, err, ErrUnknownIdentifier)
}

func TestMisalignedFieldsFail(t *testing.T) {
	mem := datasource.NewMemory().
		Set(datasource.Open, grid(t, []string{"A", "B"}, []float64{10, 20})).
		Set(datasource.Close, grid(t, []string{"A", "C"}, []float64{11, 18}))
	_, err := evaluate(t, mem, "CLOSE/OPEN")
	assert.ErrorIs(t, err, panel.ErrAlignment)
}

func TestParsePrecedence(t *testing.T) {
	cases := map[string]string{
		"1+2*3":            "(1 + (2 * 3))",
		"(1+2)*3":          "((1 + 2) * 3)",
		"-2**2":            "(-(2 ** 2))",
		"2**3**2":          "(2 ** (3 ** 2))",
		"a & b | c":        "((a && b) || c)",
		"a || b && c":      "(a || (b && c))",
		"a - b - c":        "((a - b) - c)",
		"a < b + 1":        "(a < (b + 1))",
		"!a == b":          "((!a) == b)",
		"RANK(A, B + 1)":   "RANK(A, (B + 1))",
		"SEQUENCE()":       "SEQUENCE()",
		"中文因子 / 2":         "(中文因子 / 2)",
		"TRD(a>b, a, -b)":  "TRD((a > b), a, (-b))",
		"CLOSE_1 * 1.5e2":  "(CLOSE_1 * 150)",
	}
	for src, want := range cases {
		n, err := Parse(src)
		require.NoError(t, err, src)
		assert.Equal(t, want, n.String(), src)
	}
}

func TestParseErrors(t *testing.T) {
	cases := map[string]int{
		"":             0,
		"a < b < c":    6,
		"RANK(CLOSE":   10,
		"(1 + 2":       6,
		"1 + * 2":      4,
		"RANK(A B)":    7,
		"1 2":          2,
		"A @ B":        2,
	}
	for src, pos := range cases {
		_, err := Parse(src)
		var se *SyntaxError
		require.True(t, errors.As(err, &se), src)
		assert.Equal(t, pos, se.Pos, src)
		assert.ErrorIs(t, err, ErrSyntax)
	}
}

func TestIdentifiers(t *testing.T) {
	assert.Equal(t,
		[]string{"RANK", "CLOSE", "中文因子", "OPEN"},
		Identifiers("RANK(CLOSE)/中文因子 + 2*CLOSE - OPEN**0.5"))
	assert.Empty(t, Identifiers("1 + 2"))
}

func TestValidate(t *testing.T) {
	e := NewEvaluator(datasource.NewMemory(), operator.Default())
	assert.NoError(t, e.Validate("STD(CLOSE, 5) / MEAN(OPEN, 5)"))
	assert.NoError(t, e.Validate("rank(CLOSE) > 0.5 & True"))
	assert.ErrorIs(t, e.Validate("RANK(CLOSE, 1)"), operator.ErrArgument)
	assert.ErrorIs(t, e.Validate("FOO(CLOSE)"), ErrUnknownIdentifier)
	assert.ErrorIs(t, e.Validate("close * 2"), ErrUnknownIdentifier)
	assert.ErrorIs(t, e.Validate("CLOSE +"), ErrSyntax)
}

// 某品种在某字段完全没有数据时，经缓存数据源取到的面板仍与其他字段同网格
func TestSparseFieldThroughCache(t *testing.T) {
	mem := datasource.NewMemory().
		Set(datasource.Close, grid(t, []string{"A", "B"}, []float64{10, 20}, []float64{12, 24})).
		Set(datasource.Vwap, grid(t, []string{"A"}, []float64{5}, []float64{6}))

	for _, f := range []string{"CLOSE/VWAP", "VWAP/CLOSE"} {
		src := datasource.NewCached(mem, datasource.Params{})
		p, err := evaluate(t, src, f)
		require.NoError(t, err, f)
		assert.Equal(t, []string{"A", "B"}, p.Assets(), f)
		if f == "CLOSE/VWAP" {
			assertValues(t, []float64{2, nan, 2, nan}, p)
		} else {
			assertValues(t, []float64{0.5, nan, 0.5, nan}, p)
		}
	}
}

func TestSequenceAsRegressor(t *testing.T) {
	src := fixture(t)
	p, err := evaluate(t, src, "REGBETA(CLOSE, SEQUENCE(2), 2)")
	require.NoError(t, err)
	assertValues(t, []float64{nan, nan, 0, 12}, p)

	_, err = evaluate(t, src, "SEQUENCE(2) + 1")
	assert.ErrorIs(t, err, operator.ErrArgument)
}
