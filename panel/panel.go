/*
- @Author: aztec
- @Date: 2024-03-04 10:12:36
- @Description: 面板数据（长表）与截面矩阵（宽表）
- @面板：(date, asset) 唯一键，按日期、品种排序，只有一个值列 factor
- @矩阵：行为日期，列为品种。滚动窗口类算子都在矩阵上计算
- @Copyright (c) 2024 by aztec, All Rights Reserved.
*/
package panel

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

// 值列的名字
const ValueColumn = "factor"

var (
	ErrAlignment    = errors.New("panel keys not aligned")
	ErrDuplicateKey = errors.New("duplicate (date, asset) key")
	ErrShape        = errors.New("shape mismatch")
)

// 面板的行键
type Key struct {
	Date  time.Time
	Asset string
}

func (k Key) Compare(o Key) int {
	if c := k.Date.Compare(o.Date); c != 0 {
		return c
	}
	return strings.Compare(k.Asset, o.Asset)
}

func (k Key) String() string {
	return fmt.Sprintf("(%s, %s)", k.Date.Format(time.DateOnly), k.Asset)
}

// 长表。Keys与Values等长，Keys严格递增
type Panel struct {
	Keys   []Key
	Values []float64
}

// 由无序的行构建面板。重复键报错
func New(keys []Key, values []float64) (*Panel, error) {
	if len(keys) != len(values) {
		return nil, fmt.Errorf("%w: %d keys, %d values", ErrShape, len(keys), len(values))
	}

	idx := make([]int, len(keys))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int { return keys[a].Compare(keys[b]) })

	p := &Panel{Keys: make([]Key, len(keys)), Values: make([]float64, len(keys))}
	for i, j := range idx {
		p.Keys[i] = keys[j]
		p.Values[i] = values[j]
		if i > 0 && p.Keys[i-1].Compare(p.Keys[i]) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, p.Keys[i])
		}
	}

	return p, nil
}

func (p *Panel) Len() int {
	return len(p.Keys)
}

// 深拷贝
func (p *Panel) Clone() *Panel {
	return &Panel{Keys: slices.Clone(p.Keys), Values: slices.Clone(p.Values)}
}

// 共享键，替换值。values长度必须与键相同
func (p *Panel) WithValues(values []float64) *Panel {
	if len(values) != len(p.Keys) {
		panic(fmt.Sprintf("panel: %d values for %d keys", len(values), len(p.Keys)))
	}
	return &Panel{Keys: p.Keys, Values: values}
}

// 逐元素变换，返回新面板
func (p *Panel) Map(fn func(float64) float64) *Panel {
	values := make([]float64, len(p.Values))
	for i, v := range p.Values {
		values[i] = fn(v)
	}
	return p.WithValues(values)
}

// 检查两个面板的键集合完全一致
func (p *Panel) Aligned(o *Panel) error {
	if len(p.Keys) != len(o.Keys) {
		return fmt.Errorf("%w: %d rows vs %d rows", ErrAlignment, len(p.Keys), len(o.Keys))
	}
	for i := range p.Keys {
		if p.Keys[i].Compare(o.Keys[i]) != 0 {
			return fmt.Errorf("%w: row %d is %s vs %s", ErrAlignment, i, p.Keys[i], o.Keys[i])
		}
	}
	return nil
}

// 按键取值
func (p *Panel) Get(date time.Time, asset string) (float64, bool) {
	k := Key{Date: date, Asset: asset}
	i, found := slices.BinarySearchFunc(p.Keys, k, func(a, b Key) int { return a.Compare(b) })
	if !found {
		return math.NaN(), false
	}
	return p.Values[i], true
}

// 所有日期（去重、有序）
func (p *Panel) Dates() []time.Time {
	dates := []time.Time{}
	for i, k := range p.Keys {
		if i == 0 || !k.Date.Equal(p.Keys[i-1].Date) {
			dates = append(dates, k.Date)
		}
	}
	return dates
}

// 所有品种（去重、有序）
func (p *Panel) Assets() []string {
	assets := []string{}
	for _, k := range p.Keys {
		assets = append(assets, k.Asset)
	}
	slices.Sort(assets)
	return slices.Compact(assets)
}

// 按日期分组遍历。fn收到该日期的行区间[i0, i1)
func (p *Panel) EachDate(fn func(date time.Time, i0, i1 int)) {
	i0 := 0
	for i := 1; i <= len(p.Keys); i++ {
		if i == len(p.Keys) || !p.Keys[i].Date.Equal(p.Keys[i0].Date) {
			fn(p.Keys[i0].Date, i0, i)
			i0 = i
		}
	}
}
