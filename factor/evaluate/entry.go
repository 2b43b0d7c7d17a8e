/*
- @Author: aztec
- @Date: 2024-01-15 09:51:41
- @Description: 因子评估
- @
- @Copyright (c) 2024 by aztec, All Rights Reserved.
*/
package evaluate

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/aztecqt/factest/common"
	"github.com/aztecqt/factest/operator"
	"github.com/aztecqt/factest/panel"
	"gonum.org/v1/gonum/stat"
)

// 对应alphalens的get_clean_factor_and_forward_returns
// 输入因子面板与成交报价（已上移一期的宽表），计算未来收益率并分层
// 因子值或任一未来收益为NaN的数据丢弃；截面上剩余品种数少于分位数时整个截面丢弃
// 丢弃比例超过cfg.MaxLoss时返回ErrTooFewAssets
func Preprocess(factors *panel.Panel, quote *panel.Matrix, cfg PrepConfig) (PrepResultSeq, error) {
	// 首先验证factors数据和quote数据
	if factors == nil || factors.Len() == 0 || quote == nil || quote.Rows() == 0 {
		return PrepResultSeq{}, ErrNoData
	}
	if cfg.Quantiles < 1 {
		return PrepResultSeq{}, fmt.Errorf("%w: quantiles=%d", ErrTooFewAssets, cfg.Quantiles)
	}

	fm := panel.ToMatrix(factors)
	qRows := make(map[int64]int, quote.Rows())
	for i, d := range quote.Dates {
		qRows[d.UnixNano()] = i
	}
	qCols := make(map[string]int, quote.Cols())
	for j, a := range quote.Assets {
		qCols[a] = j
	}

	rowOf := make([]int, len(fm.Dates))
	for i, d := range fm.Dates {
		qi, ok := qRows[d.UnixNano()]
		if !ok {
			return PrepResultSeq{}, fmt.Errorf("%w: no quote at %s", ErrMisaligned, d.Format("2006-01-02"))
		}
		rowOf[i] = qi
	}
	colOf := make([]int, len(fm.Assets))
	for j, a := range fm.Assets {
		qj, ok := qCols[a]
		if !ok {
			return PrepResultSeq{}, fmt.Errorf("%w: no quote for %s", ErrMisaligned, a)
		}
		colOf[j] = qj
	}

	// 数据完全ok，接下来按照时间，逐一进行预处理
	seq := PrepResultSeq{Periods: slices.Clone(cfg.Periods), Quantiles: cfg.Quantiles}
	initial, kept := 0, 0
	for i, d := range fm.Dates {
		details := []PrepResultDetailOfUnit{}
		for j, a := range fm.Assets {
			fv := fm.Data[i][j]
			if math.IsNaN(fv) {
				continue
			}
			initial++

			detail := PrepResultDetailOfUnit{Asset: a, FactorValue: fv, ForwardReturns: make([]float64, len(cfg.Periods))}
			valid := true
			for k, period := range cfg.Periods {
				r := forwardReturn(quote, rowOf[i], colOf[j], period)
				if math.IsNaN(r) {
					valid = false
					break
				}
				detail.ForwardReturns[k] = r
			}
			if valid {
				details = append(details, detail)
			}
		}

		if len(details) < cfg.Quantiles || len(details) == 0 {
			continue
		}
		assignQuantiles(details, cfg.Quantiles)
		kept += len(details)
		seq.Data = append(seq.Data, PrepResult{Time: d, Details: details})
	}

	if initial == 0 {
		return PrepResultSeq{}, ErrNoData
	}
	seq.Loss = float64(initial-kept) / float64(initial)
	common.LogNormal(logPrefix, "preprocess: %d sections, %d/%d rows kept, quantiles=%d", len(seq.Data), kept, initial, cfg.Quantiles)
	if seq.Loss > cfg.MaxLoss {
		return PrepResultSeq{}, fmt.Errorf("%w: %.1f%% of factor data dropped, max %.1f%%", ErrTooFewAssets, seq.Loss*100, cfg.MaxLoss*100)
	}
	return seq, nil
}

// 第i行买入，第i+period行卖出的收益率
func forwardReturn(quote *panel.Matrix, i, j, period int) float64 {
	if period < 1 || i+period >= quote.Rows() {
		return math.NaN()
	}
	px0 := quote.Data[i][j]
	px1 := quote.Data[i+period][j]
	if px0 == 0 {
		return math.NaN()
	}
	return (px1 - px0) / px0
}

// 按因子值排序后等数量分层，分位序号从1开始
func assignQuantiles(details []PrepResultDetailOfUnit, quantiles int) {
	idx := make([]int, len(details))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return details[idx[a]].FactorValue < details[idx[b]].FactorValue
	})

	n := len(details)
	for r, i := range idx {
		details[i].Quantile = r*quantiles/n + 1
	}
}

// 对应alphalens的factor_information_coefficient
// 因子值与未来收益率之间的Spearman相关系数即为ic值
func Analysis(seq PrepResultSeq) AnalysisResultSeq {
	aRstSeq := AnalysisResultSeq{Periods: seq.Periods, Data: make([]AnalysisResult, 0, len(seq.Data))}
	lp := len(seq.Periods)

	for _, pr := range seq.Data {
		ar := AnalysisResult{Time: pr.Time, ICs: make([]float64, lp)}

		// 先收集所有品种的因子值和各持仓周期的未来收益率
		factorValues := make([]float64, len(pr.Details))
		forwardReturns := make([][]float64, lp)
		for i, d := range pr.Details {
			factorValues[i] = d.FactorValue
			for k, v := range d.ForwardReturns {
				forwardReturns[k] = append(forwardReturns[k], v)
			}
		}

		for k := 0; k < lp; k++ {
			ar.ICs[k] = SpearmanCorr(factorValues, forwardReturns[k])
		}
		aRstSeq.Data = append(aRstSeq.Data, ar)
	}

	return aRstSeq
}

// 各分位在各持仓周期上的平均未来收益，结果为[分位][周期]
func MeanReturnByQuantile(seq PrepResultSeq) [][]float64 {
	sums := make([][]float64, seq.Quantiles)
	counts := make([]int, seq.Quantiles)
	for q := range sums {
		sums[q] = make([]float64, len(seq.Periods))
	}
	for _, pr := range seq.Data {
		for _, d := range pr.Details {
			q := d.Quantile - 1
			counts[q]++
			for k, r := range d.ForwardReturns {
				sums[q][k] += r
			}
		}
	}
	for q := range sums {
		for k := range sums[q] {
			if counts[q] == 0 {
				sums[q][k] = math.NaN()
			} else {
				sums[q][k] /= float64(counts[q])
			}
		}
	}
	return sums
}

// 对应alphalens的quantile_turnover
// 每个分位：本截面中、period个截面之前不在该分位的品种占比
func QuantileTurnover(seq PrepResultSeq, period int) TurnoverResult {
	tr := TurnoverResult{Period: period}
	members := make([][]map[string]bool, len(seq.Data))
	for i, pr := range seq.Data {
		members[i] = make([]map[string]bool, seq.Quantiles)
		for q := range members[i] {
			members[i][q] = map[string]bool{}
		}
		for _, d := range pr.Details {
			members[i][d.Quantile-1][d.Asset] = true
		}
	}

	for i, pr := range seq.Data {
		tr.Times = append(tr.Times, pr.Time)
		row := make([]float64, seq.Quantiles)
		for q := range row {
			cur := members[i][q]
			if i < period || len(cur) == 0 {
				row[q] = math.NaN()
				continue
			}
			prev := members[i-period][q]
			added := 0
			for a := range cur {
				if !prev[a] {
					added++
				}
			}
			row[q] = float64(added) / float64(len(cur))
		}
		tr.Turnover = append(tr.Turnover, row)
	}
	return tr
}

// 对应alphalens的factor_rank_autocorrelation
// 截面排名与period个截面之前排名的相关系数，只用两个截面都有的品种
func RankAutocorrelation(seq PrepResultSeq, period int) AutocorrelationResult {
	ar := AutocorrelationResult{Period: period}
	ranks := make([]map[string]float64, len(seq.Data))
	for i, pr := range seq.Data {
		values := make([]float64, len(pr.Details))
		for k, d := range pr.Details {
			values[k] = d.FactorValue
		}
		r := operator.AverageRank(values)
		ranks[i] = make(map[string]float64, len(r))
		for k, d := range pr.Details {
			ranks[i][d.Asset] = r[k]
		}
	}

	for i, pr := range seq.Data {
		ar.Times = append(ar.Times, pr.Time)
		if i < period {
			ar.Values = append(ar.Values, math.NaN())
			continue
		}
		x, y := []float64{}, []float64{}
		for _, d := range pr.Details {
			if prev, ok := ranks[i-period][d.Asset]; ok {
				x = append(x, ranks[i][d.Asset])
				y = append(y, prev)
			}
		}
		ar.Values = append(ar.Values, pearson(x, y))
	}
	return ar
}

// Spearman秩相关系数
func SpearmanCorr(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return math.NaN()
	}
	return pearson(operator.AverageRank(x), operator.AverageRank(y))
}

func pearson(x, y []float64) float64 {
	if len(x) < 2 {
		return math.NaN()
	}
	return stat.Correlation(x, y, nil)
}
