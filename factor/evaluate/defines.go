/*
- @Author: aztec
- @Date: 2024-01-15 11:44:19
- @Description: 因子评估的配置与结果定义
- @
- @Copyright (c) 2024 by aztec, All Rights Reserved.
*/
package evaluate

import (
	"errors"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

const logPrefix = "evaluate"

var (
	ErrNoData       = errors.New("no factor or quote data")
	ErrMisaligned   = errors.New("factor and quote are not aligned")
	ErrTooFewAssets = errors.New("too few assets to bin into quantiles")
)

// 因子预处理配置参数
// Prep=PreProcessing
// （alphalens还有很多很多参数，但是很少用到，所以这里暂时仅支持一小部分）
type PrepConfig struct {
	Quantiles int     // 分多少个分位（等数量法）
	Periods   []int   // 持仓周期。用来计算未来收益
	MaxLoss   float64 // 因缺失未来收益、无法分层而丢弃的数据比例上限
}

// 默认参数
func NewPrepConfig() PrepConfig {
	return PrepConfig{Quantiles: 5, Periods: []int{1, 5, 10}, MaxLoss: 0.35}
}

// 因子预处理结果(单品种)
type PrepResultDetailOfUnit struct {
	Asset          string    // 品种
	FactorValue    float64   // 因子值
	ForwardReturns []float64 // 未来收益，对应Periods
	Quantile       int       // 所属分位[1~n]
}

// 因子预处理结果（一个截面）
type PrepResult struct {
	Time    time.Time
	Details []PrepResultDetailOfUnit
}

// 因子预处理结果序列
type PrepResultSeq struct {
	Periods   []int        // 持仓周期
	Quantiles int          // 实际使用的分位数
	Loss      float64      // 丢弃比例
	Data      []PrepResult // 数据序列
}

// 一个横截面上的分析结果
type AnalysisResult struct {
	Time time.Time
	ICs  []float64 // 不同持仓周期上的IC值
}

// 分析结果序列
type AnalysisResultSeq struct {
	Periods []int            // 持仓周期
	Data    []AnalysisResult // 数据序列
}

// 各持仓周期的IC均值
func (a AnalysisResultSeq) MeanIC() []float64 {
	out := make([]float64, len(a.Periods))
	for i := range a.Periods {
		out[i], _ = a.stats(i)
	}
	return out
}

// 各持仓周期的IC均值/IC标准差
func (a AnalysisResultSeq) ICIR() []float64 {
	out := make([]float64, len(a.Periods))
	for i := range a.Periods {
		mean, std := a.stats(i)
		if std == 0 || math.IsNaN(std) {
			out[i] = math.NaN()
		} else {
			out[i] = mean / std
		}
	}
	return out
}

func (a AnalysisResultSeq) stats(i int) (mean, std float64) {
	ics := []float64{}
	for _, ar := range a.Data {
		if !math.IsNaN(ar.ICs[i]) {
			ics = append(ics, ar.ICs[i])
		}
	}
	switch len(ics) {
	case 0:
		return math.NaN(), math.NaN()
	case 1:
		return ics[0], math.NaN()
	}
	return stat.MeanStdDev(ics, nil)
}

// 分位换手率。Turnover[i][q-1] 为第i个截面上第q分位相对period个截面之前的新进比例
type TurnoverResult struct {
	Period   int
	Times    []time.Time
	Turnover [][]float64
}

// 因子排名自相关
type AutocorrelationResult struct {
	Period int
	Times  []time.Time
	Values []float64
}
