/*
- @Author: aztec
- @Date: 2024-03-04 11:02:18
- @Description: 宽表，以及长表/宽表互转
- @
- @Copyright (c) 2024 by aztec, All Rights Reserved.
*/
package panel

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// 宽表（截面序列）
// Data[i][j] 为 Dates[i] 时 Assets[j] 的值，缺失为NaN
type Matrix struct {
	Dates  []time.Time
	Assets []string
	Data   [][]float64
}

// 全NaN的矩阵
func NewMatrix(dates []time.Time, assets []string) *Matrix {
	m := &Matrix{Dates: dates, Assets: assets, Data: make([][]float64, len(dates))}
	for i := range m.Data {
		row := make([]float64, len(assets))
		for j := range row {
			row[j] = math.NaN()
		}
		m.Data[i] = row
	}
	return m
}

func (m *Matrix) Rows() int {
	return len(m.Dates)
}

func (m *Matrix) Cols() int {
	return len(m.Assets)
}

func (m *Matrix) Valid() bool {
	if len(m.Data) != len(m.Dates) {
		return false
	}
	for _, row := range m.Data {
		if len(row) != len(m.Assets) {
			return false
		}
	}
	return true
}

// 同形状的全NaN矩阵
func (m *Matrix) Like() *Matrix {
	return NewMatrix(m.Dates, m.Assets)
}

func (m *Matrix) Clone() *Matrix {
	c := &Matrix{Dates: m.Dates, Assets: m.Assets, Data: make([][]float64, len(m.Data))}
	for i, row := range m.Data {
		c.Data[i] = slices.Clone(row)
	}
	return c
}

// 第j列（某品种的时间序列）的拷贝
func (m *Matrix) Column(j int) []float64 {
	col := make([]float64, len(m.Data))
	for i, row := range m.Data {
		col[i] = row[j]
	}
	return col
}

func (m *Matrix) SetColumn(j int, col []float64) {
	for i := range m.Data {
		m.Data[i][j] = col[i]
	}
}

// 整体下移n行（n<0上移），空出的行填NaN
func (m *Matrix) Shift(n int) *Matrix {
	r := m.Like()
	for i := range m.Data {
		src := i - n
		if src >= 0 && src < len(m.Data) {
			copy(r.Data[i], m.Data[src])
		}
	}
	return r
}

func (m *Matrix) SameShape(o *Matrix) error {
	if !slices.EqualFunc(m.Dates, o.Dates, time.Time.Equal) || !slices.Equal(m.Assets, o.Assets) {
		return fmt.Errorf("%w: matrix %dx%d vs %dx%d", ErrAlignment, m.Rows(), m.Cols(), o.Rows(), o.Cols())
	}
	return nil
}

// 长表转宽表。不存在的(date, asset)填NaN，全NaN的行列保留
func ToMatrix(p *Panel) *Matrix {
	dates := p.Dates()
	assets := p.Assets()
	m := NewMatrix(dates, assets)

	col := make(map[string]int, len(assets))
	for j, a := range assets {
		col[a] = j
	}

	i := -1
	for r, k := range p.Keys {
		if r == 0 || !k.Date.Equal(p.Keys[r-1].Date) {
			i++
		}
		m.Data[i][col[k.Asset]] = p.Values[r]
	}

	return m
}

// 宽表转长表。保留NaN，不丢行，得到完整的日期x品种网格
func ToPanel(m *Matrix) *Panel {
	assets := slices.Clone(m.Assets)
	order := make([]int, len(assets))
	for j := range order {
		order[j] = j
	}
	slices.SortStableFunc(order, func(a, b int) int {
		if assets[a] < assets[b] {
			return -1
		} else if assets[a] > assets[b] {
			return 1
		}
		return 0
	})

	n := len(m.Dates) * len(assets)
	p := &Panel{Keys: make([]Key, 0, n), Values: make([]float64, 0, n)}
	for i, d := range m.Dates {
		for _, j := range order {
			p.Keys = append(p.Keys, Key{Date: d, Asset: assets[j]})
			p.Values = append(p.Values, m.Data[i][j])
		}
	}
	return p
}

// 宽表转长表，但只保留like中存在的键。时间序列算子用它保持输入面板的形状
func ToPanelLike(m *Matrix, like *Panel) *Panel {
	row := make(map[int64]int, len(m.Dates))
	for i, d := range m.Dates {
		row[d.UnixNano()] = i
	}
	col := make(map[string]int, len(m.Assets))
	for j, a := range m.Assets {
		col[a] = j
	}

	values := make([]float64, len(like.Keys))
	for r, k := range like.Keys {
		i, okI := row[k.Date.UnixNano()]
		j, okJ := col[k.Asset]
		if okI && okJ {
			values[r] = m.Data[i][j]
		} else {
			values[r] = math.NaN()
		}
	}
	return like.WithValues(values)
}

// 按给定的日期、品种重排，缺失的格子为NaN
func (m *Matrix) Reindex(dates []time.Time, assets []string) *Matrix {
	r := NewMatrix(dates, assets)
	row := make(map[int64]int, len(m.Dates))
	for i, d := range m.Dates {
		row[d.UnixNano()] = i
	}
	col := make(map[string]int, len(m.Assets))
	for j, a := range m.Assets {
		col[a] = j
	}

	for i, d := range dates {
		si, ok := row[d.UnixNano()]
		if !ok {
			continue
		}
		for j, a := range assets {
			if sj, ok := col[a]; ok {
				r.Data[i][j] = m.Data[si][sj]
			}
		}
	}
	return r
}

// 两组有序日期的并集，仍有序
func MergeDates(a, b []time.Time) []time.Time {
	out := make([]time.Time, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case j == len(b) || (i < len(a) && a[i].Before(b[j])):
			out = append(out, a[i])
			i++
		case i == len(a) || b[j].Before(a[i]):
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}

// 两组有序品种的并集，仍有序
func MergeAssets(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case j == len(b) || (i < len(a) && a[i] < b[j]):
			out = append(out, a[i])
			i++
		case i == len(a) || b[j] < a[i]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}
