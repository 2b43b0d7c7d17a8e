/*
- @Author: aztec
- @Date: 2024-03-07 15:32:09
- @Description: 算子注册表。公式求值器只能调用这里登记过的函数
- @
- @Copyright (c) 2024 by aztec, All Rights Reserved.
*/
package operator

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/aztecqt/factest/panel"
)

// 可被公式调用的算子
type Func struct {
	Name  string
	Usage string // 例如 "STD(A, n)"
	Arity int
	Call  func(args []Value) (Value, error)
}

// 名字 -> 算子
type Registry struct {
	funcs map[string]Func
}

func NewRegistry() *Registry {
	return &Registry{funcs: map[string]Func{}}
}

// 重名覆盖
func (r *Registry) Register(f Func) {
	r.funcs[strings.ToUpper(f.Name)] = f
}

func (r *Registry) Lookup(name string) (Func, bool) {
	f, ok := r.funcs[strings.ToUpper(name)]
	return f, ok
}

// 所有算子名，有序
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for n := range r.funcs {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// 按名字调用，检查参数个数
func (r *Registry) Call(name string, args []Value) (Value, error) {
	f, ok := r.Lookup(name)
	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ErrUnknownOperator, name)
	}
	if len(args) != f.Arity {
		return Value{}, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrArgument, f.Usage, f.Arity, len(args))
	}
	v, err := f.Call(args)
	if err != nil {
		return Value{}, fmt.Errorf("%s: %w", f.Name, err)
	}
	return v, nil
}

// 第i个参数必须是面板
func argPanel(args []Value, i int) (*panel.Panel, error) {
	if args[i].Kind != KindPanel {
		return nil, fmt.Errorf("%w: argument %d must be a panel, got %s", ErrArgument, i+1, args[i].Kind)
	}
	return args[i].Panel, nil
}

func argSequence(args []Value, i int) ([]float64, error) {
	if args[i].Kind != KindSequence {
		return nil, fmt.Errorf("%w: argument %d must be a sequence, got %s", ErrArgument, i+1, args[i].Kind)
	}
	return args[i].Seq, nil
}

// 第i个参数必须是正整数标量
func argWindow(args []Value, i int) (int, error) {
	v := args[i]
	if v.Kind != KindScalar || math.IsNaN(v.Scalar) || v.Scalar != math.Trunc(v.Scalar) || v.Scalar < 1 {
		return 0, fmt.Errorf("%w: argument %d must be a positive integer, got %s", ErrArgument, i+1, v)
	}
	return int(v.Scalar), nil
}

// 形如 F(A, n) 的时间序列算子
func windowFunc(name string, fn func(*panel.Panel, int) (*panel.Panel, error)) Func {
	return Func{
		Name:  name,
		Usage: name + "(A, n)",
		Arity: 2,
		Call: func(args []Value) (Value, error) {
			p, err := argPanel(args, 0)
			if err != nil {
				return Value{}, err
			}
			n, err := argWindow(args, 1)
			if err != nil {
				return Value{}, err
			}
			r, err := fn(p, n)
			if err != nil {
				return Value{}, err
			}
			return FromPanel(r), nil
		},
	}
}

// 形如 F(A, B, n) 的双序列时间序列算子
func pairWindowFunc(name string, fn func(a, b *panel.Panel, n int) (*panel.Panel, error)) Func {
	return Func{
		Name:  name,
		Usage: name + "(A, B, n)",
		Arity: 3,
		Call: func(args []Value) (Value, error) {
			a, err := argPanel(args, 0)
			if err != nil {
				return Value{}, err
			}
			b, err := argPanel(args, 1)
			if err != nil {
				return Value{}, err
			}
			n, err := argWindow(args, 2)
			if err != nil {
				return Value{}, err
			}
			r, err := fn(a, b, n)
			if err != nil {
				return Value{}, err
			}
			return FromPanel(r), nil
		},
	}
}

// 逐元素的一元函数
func unaryFunc(name string, fn func(Value) (Value, error)) Func {
	return Func{
		Name:  name,
		Usage: name + "(A)",
		Arity: 1,
		Call:  func(args []Value) (Value, error) { return fn(args[0]) },
	}
}

func binaryFunc(name string, fn func(a, b Value) (Value, error)) Func {
	return Func{
		Name:  name,
		Usage: name + "(A, B)",
		Arity: 2,
		Call:  func(args []Value) (Value, error) { return fn(args[0], args[1]) },
	}
}

// 截面上的单面板算子
func sectionFunc(name string, fn func(*panel.Panel) *panel.Panel) Func {
	return Func{
		Name:  name,
		Usage: name + "(A)",
		Arity: 1,
		Call: func(args []Value) (Value, error) {
			p, err := argPanel(args, 0)
			if err != nil {
				return Value{}, err
			}
			return FromPanel(fn(p)), nil
		},
	}
}

// 完整的算子库
func Default() *Registry {
	r := NewRegistry()

	// 截面
	r.Register(sectionFunc("RANK", Rank))
	r.Register(sectionFunc("CSRANK", CSRank))
	r.Register(binaryFunc("MAX", Max))
	r.Register(binaryFunc("MIN", Min))
	r.Register(binaryFunc("AND", And))
	r.Register(binaryFunc("OR", Or))
	r.Register(Func{
		Name:  "TRD",
		Usage: "TRD(condition, A, B)",
		Arity: 3,
		Call:  func(args []Value) (Value, error) { return Trd(args[0], args[1], args[2]) },
	})
	r.Register(Func{
		Name:  "TREGRESI",
		Usage: "TREGRESI(A, B)",
		Arity: 2,
		Call: func(args []Value) (Value, error) {
			a, err := argPanel(args, 0)
			if err != nil {
				return Value{}, err
			}
			b, err := argPanel(args, 1)
			if err != nil {
				return Value{}, err
			}
			p, err := Tregresi(a, b)
			if err != nil {
				return Value{}, err
			}
			return FromPanel(p), nil
		},
	})

	// 时间序列
	r.Register(windowFunc("STD", Std))
	r.Register(windowFunc("SUM", Sum))
	r.Register(windowFunc("SUMAC", SumAC))
	r.Register(windowFunc("MEAN", Mean))
	r.Register(windowFunc("TSMIN", TsMin))
	r.Register(windowFunc("TSMAX", TsMax))
	r.Register(windowFunc("DELTA", Delta))
	r.Register(windowFunc("DELAY", Delay))
	r.Register(windowFunc("TSRANK", TsRank))
	r.Register(windowFunc("PROD", Prod))
	r.Register(windowFunc("COUNT", Count))
	r.Register(windowFunc("SMA", SMA))
	r.Register(windowFunc("WMA", WMA))
	r.Register(windowFunc("HIGHDAY", HighDay))
	r.Register(windowFunc("LOWDAY", LowDay))
	r.Register(pairWindowFunc("CORR", Corr))
	r.Register(pairWindowFunc("COVIANCE", Coviance))
	r.Register(pairWindowFunc("PRREGBETAOD", PrRegBetaOD))
	r.Register(Func{
		Name:  "REGBETA",
		Usage: "REGBETA(A, SEQUENCE(n), n)",
		Arity: 3,
		Call: func(args []Value) (Value, error) {
			p, err := argPanel(args, 0)
			if err != nil {
				return Value{}, err
			}
			x, err := argSequence(args, 1)
			if err != nil {
				return Value{}, err
			}
			n, err := argWindow(args, 2)
			if err != nil {
				return Value{}, err
			}
			r, err := RegBeta(p, x, n)
			if err != nil {
				return Value{}, err
			}
			return FromPanel(r), nil
		},
	})

	// 逐元素
	r.Register(unaryFunc("LOG", Log))
	r.Register(unaryFunc("ABS", Abs))
	r.Register(unaryFunc("SIGN", Sign))
	// 序列只能作为REGBETA的自变量，不参与逐元素运算
	r.Register(Func{
		Name:  "SEQUENCE",
		Usage: "SEQUENCE(n)",
		Arity: 1,
		Call: func(args []Value) (Value, error) {
			n, err := argWindow(args, 0)
			if err != nil {
				return Value{}, err
			}
			s, err := Seq(n)
			if err != nil {
				return Value{}, err
			}
			return Sequence(s), nil
		},
	})

	return r
}
