package evaluate

import (
	"math"
	"testing"
	"time"

	"github.com/aztecqt/factest/panel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var assets = []string{"A", "B", "C", "D"}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func quoteFixture() *panel.Matrix {
	m := panel.NewMatrix([]time.Time{day(1), day(2), day(3), day(4)}, assets)
	m.Data[0] = []float64{10, 10, 10, 10}
	m.Data[1] = []float64{11, 9, 10.5, 9.5}
	m.Data[2] = []float64{12.1, 8.1, 11, 9}
	m.Data[3] = []float64{13, 8, 11, 9}
	return m
}

func factorFixture(t *testing.T, rows ...[]float64) *panel.Panel {
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

func prepared(t *testing.T) PrepResultSeq {
	factors := factorFixture(t,
		[]float64{4, 1, 3, 2},
		[]float64{4, 1, 3, 2},
		[]float64{1, 4, 2, 3},
		[]float64{1, 2, 3, 4})
	seq, err := Preprocess(factors, quoteFixture(), PrepConfig{Quantiles: 2, Periods: []int{1}, MaxLoss: 0.5})
	require.NoError(t, err)
	return seq
}

func TestPreprocess(t *testing.T) {
	seq := prepared(t)

	// 最后一个截面没有未来收益
	require.Len(t, seq.Data, 3)
	assert.InDelta(t, 0.25, seq.Loss, 1e-9)
	assert.Equal(t, 2, seq.Quantiles)

	d1 := seq.Data[0]
	quantiles := map[string]int{}
	for _, d := range d1.Details {
		quantiles[d.Asset] = d.Quantile
	}
	assert.Equal(t, map[string]int{"A": 2, "B": 1, "C": 2, "D": 1}, quantiles)
	assert.InDelta(t, 0.1, d1.Details[0].ForwardReturns[0], 1e-9)
	assert.InDelta(t, -0.1, d1.Details[1].ForwardReturns[0], 1e-9)
}

func TestPreprocessErrors(t *testing.T) {
	factors := factorFixture(t, []float64{4, 1, 3, 2}, []float64{4, 1, 3, 2})

	_, err := Preprocess(&panel.Panel{}, quoteFixture(), NewPrepConfig())
	assert.ErrorIs(t, err, ErrNoData)

	_, err = Preprocess(factors, quoteFixture(), PrepConfig{Quantiles: 5, Periods: []int{1}, MaxLoss: 0.35})
	assert.ErrorIs(t, err, ErrTooFewAssets)

	other, err := panel.New([]panel.Key{{Date: day(1), Asset: "E"}}, []float64{1})
	require.NoError(t, err)
	_, err = Preprocess(other, quoteFixture(), NewPrepConfig())
	assert.ErrorIs(t, err, ErrMisaligned)

	late, err := panel.New([]panel.Key{{Date: day(9), Asset: "A"}}, []float64{1})
	require.NoError(t, err)
	_, err = Preprocess(late, quoteFixture(), NewPrepConfig())
	assert.ErrorIs(t, err, ErrMisaligned)
}

func TestAnalysis(t *testing.T) {
	ar := Analysis(prepared(t))
	require.Len(t, ar.Data, 3)
	assert.InDelta(t, 1, ar.Data[0].ICs[0], 1e-9)
	assert.InDelta(t, 1, ar.Data[1].ICs[0], 1e-9)
	assert.InDelta(t, -0.948683, ar.Data[2].ICs[0], 1e-6)
	assert.InDelta(t, 0.350439, ar.MeanIC()[0], 1e-6)
	assert.False(t, math.IsNaN(ar.ICIR()[0]))
}

func TestMeanReturnByQuantile(t *testing.T) {
	mr := MeanReturnByQuantile(prepared(t))
	require.Len(t, mr, 2)
	assert.Less(t, mr[0][0], mr[1][0])
}

func TestQuantileTurnover(t *testing.T) {
	tr := QuantileTurnover(prepared(t), 1)
	require.Len(t, tr.Turnover, 3)
	assert.True(t, math.IsNaN(tr.Turnover[0][0]))
	assert.Equal(t, []float64{0, 0}, tr.Turnover[1])
	assert.Equal(t, []float64{1, 1}, tr.Turnover[2])
}

func TestRankAutocorrelation(t *testing.T) {
	ac := RankAutocorrelation(prepared(t), 1)
	require.Len(t, ac.Values, 3)
	assert.True(t, math.IsNaN(ac.Values[0]))
	assert.InDelta(t, 1, ac.Values[1], 1e-9)
	assert.InDelta(t, -1, ac.Values[2], 1e-9)
}

func TestSpearman(t *testing.T) {
	assert.InDelta(t, 1, SpearmanCorr([]float64{1, 2, 3}, []float64{10, 200, 3000}), 1e-9)
	assert.True(t, math.IsNaN(SpearmanCorr([]float64{1}, []float64{1})))
	assert.True(t, math.IsNaN(SpearmanCorr([]float64{1, 1, 1}, []float64{1, 2, 3})))
}
