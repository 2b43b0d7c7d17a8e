/*
- @Author: aztec
- @Date: 2024-03-06 16:40:25
- @Description: 时间序列算子
- @每个品种独立地沿日期方向计算（宽表的一列），品种之间互不影响
- @Copyright (c) 2024 by aztec, All Rights Reserved.
*/
package operator

import (
	"fmt"
	"math"

	"github.com/aztecqt/factest/panel"
	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// 滚动标准差（样本标准差），窗口内至少n/2个有效值
func Std(p *panel.Panel, n int) (*panel.Panel, error) {
	if err := checkWindow(n); err != nil {
		return nil, err
	}
	return tsApply(p, func(m *panel.Matrix) *panel.Matrix {
		return rolling(m, n, n/2, func(w []float64) float64 {
			if len(w) < 2 {
				return math.NaN()
			}
			return stat.StdDev(w, nil)
		})
	}), nil
}

// 滚动求和，窗口内至少n/2个有效值
func Sum(p *panel.Panel, n int) (*panel.Panel, error) {
	if err := checkWindow(n); err != nil {
		return nil, err
	}
	return tsApply(p, func(m *panel.Matrix) *panel.Matrix {
		return rolling(m, n, n/2, floats.Sum)
	}), nil
}

// 滚动求和，要求完整窗口
// 与Sum功能重复，保留是为了兼容旧公式；两者的最小观测数不同
func SumAC(p *panel.Panel, n int) (*panel.Panel, error) {
	if err := checkWindow(n); err != nil {
		return nil, err
	}
	return tsApply(p, func(m *panel.Matrix) *panel.Matrix {
		return rollingFull(m, n, floats.Sum)
	}), nil
}

// 滚动均值，至少1个有效值
func Mean(p *panel.Panel, n int) (*panel.Panel, error) {
	if err := checkWindow(n); err != nil {
		return nil, err
	}
	return tsApply(p, func(m *panel.Matrix) *panel.Matrix {
		return rolling(m, n, 1, func(w []float64) float64 { return stat.Mean(w, nil) })
	}), nil
}

func TsMin(p *panel.Panel, n int) (*panel.Panel, error) {
	if err := checkWindow(n); err != nil {
		return nil, err
	}
	return tsApply(p, func(m *panel.Matrix) *panel.Matrix {
		return rolling(m, n, 1, floats.Min)
	}), nil
}

func TsMax(p *panel.Panel, n int) (*panel.Panel, error) {
	if err := checkWindow(n); err != nil {
		return nil, err
	}
	return tsApply(p, func(m *panel.Matrix) *panel.Matrix {
		return rolling(m, n, 1, floats.Max)
	}), nil
}

// n期前的值
func Delay(p *panel.Panel, n int) (*panel.Panel, error) {
	if err := checkWindow(n); err != nil {
		return nil, err
	}
	return tsApply(p, func(m *panel.Matrix) *panel.Matrix {
		return m.Shift(n)
	}), nil
}

// 当前值减去n期前的值
func Delta(p *panel.Panel, n int) (*panel.Panel, error) {
	if err := checkWindow(n); err != nil {
		return nil, err
	}
	return tsApply(p, func(m *panel.Matrix) *panel.Matrix {
		prev := m.Shift(n)
		r := m.Like()
		for i := range m.Data {
			for j := range m.Data[i] {
				r.Data[i][j] = m.Data[i][j] - prev.Data[i][j]
			}
		}
		return r
	}), nil
}

// 滚动Pearson相关系数，窗口内n对值都有效才计算
func Corr(a, b *panel.Panel, n int) (*panel.Panel, error) {
	if err := checkWindow(n); err != nil {
		return nil, err
	}
	return tsApply2(a, b, func(ma, mb *panel.Matrix) *panel.Matrix {
		return rollingPair(ma, mb, n, func(x, y []float64) float64 {
			if len(x) < n || n < 2 {
				return math.NaN()
			}
			if stat.StdDev(x, nil) == 0 || stat.StdDev(y, nil) == 0 {
				return math.NaN()
			}
			return stat.Correlation(x, y, nil)
		})
	})
}

// 滚动协方差（样本协方差），首n-1期为NaN，窗口内剔除缺失对
func Coviance(a, b *panel.Panel, n int) (*panel.Panel, error) {
	if err := checkWindow(n); err != nil {
		return nil, err
	}
	return tsApply2(a, b, func(ma, mb *panel.Matrix) *panel.Matrix {
		return rollingPair(ma, mb, n, func(x, y []float64) float64 {
			if len(x) < 2 {
				return math.NaN()
			}
			return stat.Covariance(x, y, nil)
		})
	})
}

// 最新值在窗口内的升序名次（1起）除以n，结果在(0, 1]
// 与最新值相等的旧值排在它前面，即并列时取最高名次
func TsRank(p *panel.Panel, n int) (*panel.Panel, error) {
	if err := checkWindow(n); err != nil {
		return nil, err
	}
	return tsApply(p, func(m *panel.Matrix) *panel.Matrix {
		return rollingFull(m, n, func(w []float64) float64 {
			last := w[len(w)-1]
			pos := 0
			for _, v := range w {
				if v <= last {
					pos++
				}
			}
			return float64(pos) / float64(n)
		})
	}), nil
}

// 滚动连乘，要求完整的n个有效值。序列开头不足n期为NaN
func Prod(p *panel.Panel, n int) (*panel.Panel, error) {
	if err := checkWindow(n); err != nil {
		return nil, err
	}
	return tsApply(p, func(m *panel.Matrix) *panel.Matrix {
		return rollingFull(m, n, floats.Prod)
	}), nil
}

// 过去n期内条件成立的次数。要求完整的n个有效观测
func Count(cond *panel.Panel, n int) (*panel.Panel, error) {
	if err := checkWindow(n); err != nil {
		return nil, err
	}
	return tsApply(cond, func(m *panel.Matrix) *panel.Matrix {
		return rollingFull(m, n, func(w []float64) float64 {
			c := 0.0
			for _, v := range w {
				if truthy(v) {
					c++
				}
			}
			return c
		})
	}), nil
}

// 滚动回归 B = alpha + beta*A 的beta
// 首n-1期为NaN，窗口内剔除含缺失值的行；样本不足或A无波动时为NaN
func PrRegBetaOD(a, b *panel.Panel, n int) (*panel.Panel, error) {
	if err := checkWindow(n); err != nil {
		return nil, err
	}
	return tsApply2(a, b, func(ma, mb *panel.Matrix) *panel.Matrix {
		return rollingPair(ma, mb, n, func(x, y []float64) float64 {
			if len(x) < 2 || stat.Variance(x, nil) == 0 {
				return math.NaN()
			}
			_, beta := stat.LinearRegression(x, y, nil, false)
			return beta
		})
	})
}

// 滚动回归 A = alpha + beta*X 的beta，X为长度n的序列
// 以SEQUENCE(n)为X时即A在窗口内的线性趋势斜率
// 首n-1期为NaN，窗口内剔除A缺失的行；样本不足2个时为NaN
func RegBeta(p *panel.Panel, x []float64, n int) (*panel.Panel, error) {
	if err := checkWindow(n); err != nil {
		return nil, err
	}
	if len(x) != n {
		return nil, fmt.Errorf("%w: sequence length %d does not match window %d", ErrArgument, len(x), n)
	}
	return tsApply(p, func(m *panel.Matrix) *panel.Matrix {
		return byColumn(m, func(col []float64) []float64 {
			out := nanSlice(len(col))
			for i := n - 1; i < len(col); i++ {
				xs, ys := dropNaNPairs(x, col[i-n+1:i+1])
				if len(xs) < 2 || stat.Variance(xs, nil) == 0 {
					continue
				}
				_, beta := stat.LinearRegression(xs, ys, nil, false)
				out[i] = beta
			}
			return out
		})
	}), nil
}

// 窗口内最大值距今的期数（0表示当前即最大），并列取最近一次
func HighDay(p *panel.Panel, n int) (*panel.Panel, error) {
	return extremeDay(p, n, func(v, best float64) bool { return v >= best })
}

// 窗口内最小值距今的期数
func LowDay(p *panel.Panel, n int) (*panel.Panel, error) {
	return extremeDay(p, n, func(v, best float64) bool { return v <= best })
}

func extremeDay(p *panel.Panel, n int, better func(v, best float64) bool) (*panel.Panel, error) {
	if err := checkWindow(n); err != nil {
		return nil, err
	}
	return tsApply(p, func(m *panel.Matrix) *panel.Matrix {
		return rollingFull(m, n, func(w []float64) float64 {
			idx := 0
			for i, v := range w {
				if better(v, w[idx]) {
					idx = i
				}
			}
			return float64(len(w) - 1 - idx)
		})
	}), nil
}

// 简单移动平均（talib.SMA）
func SMA(p *panel.Panel, n int) (*panel.Panel, error) {
	return talibApply(p, n, talib.Sma)
}

// 线性加权移动平均（talib.WMA），最新值权重为n
func WMA(p *panel.Panel, n int) (*panel.Panel, error) {
	return talibApply(p, n, talib.Wma)
}

// talib不认NaN，也不会把预热期置为NaN
// 这里把每列切成连续的有效段分别计算，段内前n-1个值置NaN
func talibApply(p *panel.Panel, n int, fn func(in []float64, period int) []float64) (*panel.Panel, error) {
	if err := checkWindow(n); err != nil {
		return nil, err
	}
	return tsApply(p, func(m *panel.Matrix) *panel.Matrix {
		return byColumn(m, func(col []float64) []float64 {
			out := nanSlice(len(col))
			for s := 0; s < len(col); {
				if math.IsNaN(col[s]) {
					s++
					continue
				}
				e := s
				for e < len(col) && !math.IsNaN(col[e]) {
					e++
				}
				if e-s >= n {
					seg := fn(col[s:e], n)
					copy(out[s+n-1:e], seg[n-1:])
				}
				s = e
			}
			return out
		})
	}), nil
}
