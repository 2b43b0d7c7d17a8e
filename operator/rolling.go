/*
- @Author: aztec
- @Date: 2024-03-06 15:03:12
- @Description: 滚动窗口工具。所有时间序列算子都在宽表上按列（品种）独立计算
- @
- @Copyright (c) 2024 by aztec, All Rights Reserved.
*/
package operator

import (
	"fmt"
	"math"

	"github.com/aztecqt/factest/panel"
)

// 面板 -> 宽表 -> 计算 -> 面板，输出与输入面板同键
func tsApply(p *panel.Panel, fn func(m *panel.Matrix) *panel.Matrix) *panel.Panel {
	return panel.ToPanelLike(fn(panel.ToMatrix(p)), p)
}

// 两个面板的时间序列计算。两者必须同键，因此宽表同形
func tsApply2(a, b *panel.Panel, fn func(ma, mb *panel.Matrix) *panel.Matrix) (*panel.Panel, error) {
	if err := a.Aligned(b); err != nil {
		return nil, err
	}
	return panel.ToPanelLike(fn(panel.ToMatrix(a), panel.ToMatrix(b)), a), nil
}

// 按列计算：col为某品种的完整时间序列，返回同长度的结果
func byColumn(m *panel.Matrix, fn func(col []float64) []float64) *panel.Matrix {
	r := m.Like()
	for j := range m.Assets {
		r.SetColumn(j, fn(m.Column(j)))
	}
	return r
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

// 尾部窗口[i-n+1, i]中的有效值（起点截断到0）
func validWindow(col []float64, i, n int) []float64 {
	start := max(i-n+1, 0)
	w := make([]float64, 0, i-start+1)
	for _, v := range col[start : i+1] {
		if !math.IsNaN(v) {
			w = append(w, v)
		}
	}
	return w
}

// 滚动窗口，窗口内有效值不少于minObs时计算，否则NaN
// 窗口在序列开头允许不满
func rolling(m *panel.Matrix, n, minObs int, fn func(w []float64) float64) *panel.Matrix {
	return byColumn(m, func(col []float64) []float64 {
		out := nanSlice(len(col))
		for i := range col {
			w := validWindow(col, i, n)
			if len(w) >= minObs {
				out[i] = fn(w)
			}
		}
		return out
	})
}

// 滚动窗口，要求完整的n个有效值
func rollingFull(m *panel.Matrix, n int, fn func(w []float64) float64) *panel.Matrix {
	return byColumn(m, func(col []float64) []float64 {
		out := nanSlice(len(col))
		for i := n - 1; i < len(col); i++ {
			w := col[i-n+1 : i+1]
			if allValid(w) {
				out[i] = fn(w)
			}
		}
		return out
	})
}

// 两序列的滚动窗口。首n-1行为NaN；窗口内任一侧为NaN的行被剔除
func rollingPair(ma, mb *panel.Matrix, n int, fn func(x, y []float64) float64) *panel.Matrix {
	r := ma.Like()
	for j := range ma.Assets {
		ca, cb := ma.Column(j), mb.Column(j)
		out := nanSlice(len(ca))
		for i := n - 1; i < len(ca); i++ {
			x, y := dropNaNPairs(ca[i-n+1:i+1], cb[i-n+1:i+1])
			out[i] = fn(x, y)
		}
		r.SetColumn(j, out)
	}
	return r
}

func dropNaNPairs(a, b []float64) (x, y []float64) {
	x = make([]float64, 0, len(a))
	y = make([]float64, 0, len(b))
	for i := range a {
		if !math.IsNaN(a[i]) && !math.IsNaN(b[i]) {
			x = append(x, a[i])
			y = append(y, b[i])
		}
	}
	return
}

func allValid(w []float64) bool {
	for _, v := range w {
		if math.IsNaN(v) {
			return false
		}
	}
	return true
}

// 窗口参数必须为正整数
func checkWindow(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: window %d must be a positive integer", ErrArgument, n)
	}
	return nil
}
