/*
- @Author: aztec
- @Date: 2024-03-15 11:27:52
- @Description: 因子测试
- @持有公式与测试参数，任一参数变化时清空已算好的因子与预处理结果
- @Copyright (c) 2024 by aztec, All Rights Reserved.
*/
package factest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/aztecqt/factest/common"
	"github.com/aztecqt/factest/datasource"
	"github.com/aztecqt/factest/factor/evaluate"
	"github.com/aztecqt/factest/formula"
	"github.com/aztecqt/factest/operator"
	"github.com/aztecqt/factest/panel"
)

const logPrefix = "factest"

// 分位数不够时最多重试的次数
const maxQuantileRetry = 9

var ErrNoFormula = errors.New("formula not set")

type FactorTest struct {
	src  *datasource.Cached
	eval *formula.Evaluator
	prep evaluate.PrepConfig

	formula string

	// 缓存
	factors    *panel.Panel
	factorData *evaluate.PrepResultSeq
}

func NewFactorTest(src *datasource.Cached, ops *operator.Registry) *FactorTest {
	return &FactorTest{
		src:  src,
		eval: formula.NewEvaluator(src, ops),
		prep: evaluate.NewPrepConfig(),
	}
}

// 按配置创建
func NewFactorTestFromConfig(src *datasource.Cached, ops *operator.Registry, cfg Config) *FactorTest {
	f := NewFactorTest(src, ops)
	f.prep = cfg.PrepConfig()
	f.formula = cfg.Formula
	return f
}

func (f *FactorTest) Formula() string {
	return f.formula
}

func (f *FactorTest) Periods() []int {
	return slices.Clone(f.prep.Periods)
}

func (f *FactorTest) Quantiles() int {
	return f.prep.Quantiles
}

func (f *FactorTest) Source() *datasource.Cached {
	return f.src
}

func (f *FactorTest) clearFactors() {
	f.factors = nil
	f.factorData = nil
}

func (f *FactorTest) clearFactorData() {
	f.factorData = nil
}

func (f *FactorTest) SetFormula(formula string) {
	f.formula = formula
	f.clearFactors()
}

func (f *FactorTest) SetPeriods(periods []int) {
	f.prep.Periods = slices.Clone(periods)
	f.clearFactorData()
}

func (f *FactorTest) SetQuantiles(quantiles int) {
	f.prep.Quantiles = quantiles
	f.clearFactorData()
}

func (f *FactorTest) SetMaxLoss(maxLoss float64) {
	f.prep.MaxLoss = maxLoss
	f.clearFactorData()
}

// universe为["all"]时使用数据源中的全部品种
func (f *FactorTest) SetUniverse(universe []string) {
	if slices.Contains(universe, UniverseAll) {
		universe = nil
	}
	f.src.SetUniverse(universe)
	f.clearFactors()
}

func (f *FactorTest) SetDateRange(begin, end time.Time) {
	f.src.SetDateRange(begin, end)
	f.clearFactors()
}

func (f *FactorTest) SetDealMethod(d datasource.DealMethod) {
	f.src.SetDealMethod(d)
	f.clearFactors()
}

func (f *FactorTest) SetBenchmark(benchmark string) {
	f.src.SetBenchmark(benchmark)
	f.clearFactors()
}

// 计算因子面板
func (f *FactorTest) Factors(ctx context.Context) (*panel.Panel, error) {
	if f.factors != nil {
		return f.factors, nil
	}
	if f.formula == "" {
		return nil, ErrNoFormula
	}

	p, err := f.eval.Evaluate(ctx, f.formula)
	if err != nil {
		return nil, err
	}
	f.factors = p
	return p, nil
}

// 成交报价
func (f *FactorTest) Prices(ctx context.Context) (*panel.Matrix, error) {
	return f.src.Quote(ctx)
}

// 因子与未来收益对齐、分层后的数据
// 因品种太少无法分层时，逐次减少分位数重试
func (f *FactorTest) FactorData(ctx context.Context) (evaluate.PrepResultSeq, error) {
	if f.factorData != nil {
		return *f.factorData, nil
	}

	factors, err := f.Factors(ctx)
	if err != nil {
		return evaluate.PrepResultSeq{}, err
	}
	quote, err := f.Prices(ctx)
	if err != nil {
		return evaluate.PrepResultSeq{}, err
	}

	for try := 1; ; try++ {
		seq, err := evaluate.Preprocess(factors, quote, f.prep)
		if err == nil {
			f.factorData = &seq
			return seq, nil
		}
		if !errors.Is(err, evaluate.ErrTooFewAssets) || try > maxQuantileRetry || f.prep.Quantiles <= 1 {
			return evaluate.PrepResultSeq{}, err
		}

		f.prep.Quantiles--
		common.LogNormal(logPrefix, "try %d--decreasing quantile number to: %d", try, f.prep.Quantiles)
	}
}

// IC分析
func (f *FactorTest) InformationAnalysis(ctx context.Context) (evaluate.AnalysisResultSeq, error) {
	seq, err := f.FactorData(ctx)
	if err != nil {
		return evaluate.AnalysisResultSeq{}, err
	}
	return evaluate.Analysis(seq), nil
}

// 分位收益
func (f *FactorTest) ReturnAnalysis(ctx context.Context) ([][]float64, error) {
	seq, err := f.FactorData(ctx)
	if err != nil {
		return nil, err
	}
	return evaluate.MeanReturnByQuantile(seq), nil
}

// 换手分析：每个持仓周期上的分位换手率与因子排名自相关
func (f *FactorTest) TurnoverAnalysis(ctx context.Context) ([]evaluate.TurnoverResult, []evaluate.AutocorrelationResult, error) {
	seq, err := f.FactorData(ctx)
	if err != nil {
		return nil, nil, err
	}

	turnovers := make([]evaluate.TurnoverResult, 0, len(seq.Periods))
	autocorrs := make([]evaluate.AutocorrelationResult, 0, len(seq.Periods))
	for _, p := range seq.Periods {
		turnovers = append(turnovers, evaluate.QuantileTurnover(seq, p))
		autocorrs = append(autocorrs, evaluate.RankAutocorrelation(seq, p))
	}
	return turnovers, autocorrs, nil
}

// 报价中出现的全部品种
func (f *FactorTest) AllStocks(ctx context.Context) ([]string, error) {
	quote, err := f.Prices(ctx)
	if err != nil {
		return nil, err
	}
	if quote.Cols() == 0 {
		return nil, fmt.Errorf("%w: empty quote", datasource.ErrNoData)
	}
	return slices.Clone(quote.Assets), nil
}
