/*
- @Author: aztec
- @Date: 2024-03-06 14:20:51
- @Description: 算子的参数与返回值
- @
- @Copyright (c) 2024 by aztec, All Rights Reserved.
*/
package operator

import (
	"errors"
	"fmt"
	"math"

	"github.com/aztecqt/factest/panel"
)

var (
	ErrArgument        = errors.New("invalid operator argument")
	ErrUnknownOperator = errors.New("unknown operator")
)

type Kind int

const (
	KindScalar Kind = iota
	KindPanel
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindPanel:
		return "panel"
	case KindSequence:
		return "sequence"
	default:
		return "unknown"
	}
}

// 公式中的值：标量、面板或数列
type Value struct {
	Kind   Kind
	Scalar float64
	Panel  *panel.Panel
	Seq    []float64
}

func Scalar(v float64) Value {
	return Value{Kind: KindScalar, Scalar: v}
}

func FromPanel(p *panel.Panel) Value {
	return Value{Kind: KindPanel, Panel: p}
}

func Sequence(s []float64) Value {
	return Value{Kind: KindSequence, Seq: s}
}

func (v Value) IsPanel() bool {
	return v.Kind == KindPanel
}

func (v Value) String() string {
	switch v.Kind {
	case KindScalar:
		return fmt.Sprintf("%g", v.Scalar)
	case KindPanel:
		return fmt.Sprintf("panel(%d rows)", v.Panel.Len())
	default:
		return fmt.Sprintf("sequence(%d)", len(v.Seq))
	}
}

// 逻辑真：非NaN且非0
func truthy(x float64) bool {
	return !math.IsNaN(x) && x != 0
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// 一元逐元素运算。标量进标量出，面板进面板出
func Unary(v Value, fn func(float64) float64) (Value, error) {
	switch v.Kind {
	case KindScalar:
		return Scalar(fn(v.Scalar)), nil
	case KindPanel:
		return FromPanel(v.Panel.Map(fn)), nil
	default:
		return Value{}, fmt.Errorf("%w: elementwise function on %s", ErrArgument, v.Kind)
	}
}

// 二元逐元素运算，标量自动广播到面板的每个单元格
// 两个面板的(date, asset)键必须完全一致，不做部分对齐
func Binary(a, b Value, fn func(x, y float64) float64) (Value, error) {
	if a.Kind == KindSequence || b.Kind == KindSequence {
		return Value{}, fmt.Errorf("%w: arithmetic on sequence", ErrArgument)
	}

	switch {
	case a.Kind == KindScalar && b.Kind == KindScalar:
		return Scalar(fn(a.Scalar, b.Scalar)), nil
	case a.Kind == KindPanel && b.Kind == KindScalar:
		return FromPanel(a.Panel.Map(func(x float64) float64 { return fn(x, b.Scalar) })), nil
	case a.Kind == KindScalar && b.Kind == KindPanel:
		return FromPanel(b.Panel.Map(func(y float64) float64 { return fn(a.Scalar, y) })), nil
	default:
		if err := a.Panel.Aligned(b.Panel); err != nil {
			return Value{}, err
		}
		values := make([]float64, a.Panel.Len())
		for i := range values {
			values[i] = fn(a.Panel.Values[i], b.Panel.Values[i])
		}
		return FromPanel(a.Panel.WithValues(values)), nil
	}
}

// 三元逐元素运算，至少一个参数为面板时广播
func ternary(c, a, b Value, fn func(x, y, z float64) float64) (Value, error) {
	var shape *panel.Panel
	for _, v := range []Value{c, a, b} {
		if v.Kind == KindSequence {
			return Value{}, fmt.Errorf("%w: elementwise function on sequence", ErrArgument)
		}
		if v.Kind == KindPanel {
			if shape == nil {
				shape = v.Panel
			} else if err := shape.Aligned(v.Panel); err != nil {
				return Value{}, err
			}
		}
	}

	if shape == nil {
		return Scalar(fn(c.Scalar, a.Scalar, b.Scalar)), nil
	}

	at := func(v Value, i int) float64 {
		if v.Kind == KindPanel {
			return v.Panel.Values[i]
		}
		return v.Scalar
	}
	values := make([]float64, shape.Len())
	for i := range values {
		values[i] = fn(at(c, i), at(a, i), at(b, i))
	}
	return FromPanel(shape.WithValues(values)), nil
}
