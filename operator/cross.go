/*
- @Author: aztec
- @Date: 2024-03-07 10:15:44
- @Description: 截面算子与逐元素算子
- @截面算子在每个日期上独立地跨品种计算（按日期分组的长表）
- @Copyright (c) 2024 by aztec, All Rights Reserved.
*/
package operator

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/aztecqt/factest/panel"
	"gonum.org/v1/gonum/stat"
)

// 截面升序排名，并列取平均名次，NaN不参与排名
// 结果在常规的1起名次上再加1，与旧版公式库的输出保持一致
func Rank(p *panel.Panel) *panel.Panel {
	r := CSRank(p)
	for i := range r.Values {
		r.Values[i] += 1
	}
	return r
}

// 截面升序排名（1起，并列取平均）
func CSRank(p *panel.Panel) *panel.Panel {
	values := nanSlice(p.Len())
	p.EachDate(func(_ time.Time, i0, i1 int) {
		ranks := AverageRank(p.Values[i0:i1])
		copy(values[i0:i1], ranks)
	})
	return p.WithValues(values)
}

// 1起的升序名次，并列取平均名次，NaN保持NaN且不占名次
func AverageRank(x []float64) []float64 {
	out := nanSlice(len(x))
	idx := make([]int, 0, len(x))
	for i, v := range x {
		if !math.IsNaN(v) {
			idx = append(idx, i)
		}
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		if x[a] < x[b] {
			return -1
		} else if x[a] > x[b] {
			return 1
		}
		return 0
	})

	for s := 0; s < len(idx); {
		e := s + 1
		for e < len(idx) && x[idx[e]] == x[idx[s]] {
			e++
		}
		// 名次 s+1 .. e 的平均
		avg := float64(s+1+e) / 2
		for k := s; k < e; k++ {
			out[idx[k]] = avg
		}
		s = e
	}
	return out
}

// 逐元素最大值，任一侧NaN则为NaN
func Max(a, b Value) (Value, error) {
	return Binary(a, b, func(x, y float64) float64 {
		if math.IsNaN(x) || math.IsNaN(y) {
			return math.NaN()
		}
		return math.Max(x, y)
	})
}

// 逐元素最小值，任一侧NaN则为NaN
func Min(a, b Value) (Value, error) {
	return Binary(a, b, func(x, y float64) float64 {
		if math.IsNaN(x) || math.IsNaN(y) {
			return math.NaN()
		}
		return math.Min(x, y)
	})
}

// 三目运算：条件成立取a，否则取b。a、b可以是标量
// 条件为NaN视为不成立
func Trd(cond, a, b Value) (Value, error) {
	if cond.Kind != KindPanel {
		return Value{}, fmt.Errorf("%w: TRD condition must be a panel, got %s", ErrArgument, cond.Kind)
	}
	return ternary(cond, a, b, func(c, x, y float64) float64 {
		if truthy(c) {
			return x
		}
		return y
	})
}

// 逐元素逻辑与，结果为1/0
func And(a, b Value) (Value, error) {
	return Binary(a, b, func(x, y float64) float64 { return boolValue(truthy(x) && truthy(y)) })
}

// 逐元素逻辑或，结果为1/0
func Or(a, b Value) (Value, error) {
	return Binary(a, b, func(x, y float64) float64 { return boolValue(truthy(x) || truthy(y)) })
}

// 逐元素逻辑非
func Not(a Value) (Value, error) {
	return Unary(a, func(x float64) float64 { return boolValue(!truthy(x)) })
}

// 截面回归残差（与其他时间序列算子不同，这里在每个日期上跨品种计算）
// 每个日期上做无截距回归 A = beta*B，返回 A - beta*B
// 任一侧缺失的品种不参与回归，残差为NaN；B全为0时整个截面为NaN
func Tregresi(a, b *panel.Panel) (*panel.Panel, error) {
	if err := a.Aligned(b); err != nil {
		return nil, err
	}

	values := nanSlice(a.Len())
	a.EachDate(func(_ time.Time, i0, i1 int) {
		y, x := dropNaNPairs(a.Values[i0:i1], b.Values[i0:i1])
		sxx := 0.0
		for _, v := range x {
			sxx += v * v
		}
		if len(x) == 0 || sxx == 0 {
			return
		}

		_, beta := stat.LinearRegression(x, y, nil, true)
		for i := i0; i < i1; i++ {
			ya, xb := a.Values[i], b.Values[i]
			if !math.IsNaN(ya) && !math.IsNaN(xb) {
				values[i] = ya - beta*xb
			}
		}
	})
	return a.WithValues(values), nil
}

func Log(v Value) (Value, error) {
	return Unary(v, math.Log)
}

func Abs(v Value) (Value, error) {
	return Unary(v, math.Abs)
}

// 符号函数：正1，负-1，零0，NaN保持
func Sign(v Value) (Value, error) {
	return Unary(v, sign)
}

func sign(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return x
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

// 等差数列 1..n
func Seq(n int) ([]float64, error) {
	if err := checkWindow(n); err != nil {
		return nil, err
	}
	s := make([]float64, n)
	for i := range s {
		s[i] = float64(i + 1)
	}
	return s, nil
}
