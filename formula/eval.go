/*
- @Author: aztec
- @Date: 2024-03-08 14:48:19
- @Description: 公式求值
- @1. 解析为表达式树，语法错误时不取数据
- @2. 抽取候选标识符，命中数据字段白名单的，从数据源取面板并绑定
- @3. 在 {数据字段 -> 面板, 算子名 -> 注册表} 的环境中对树求值
- @Copyright (c) 2024 by aztec, All Rights Reserved.
*/
package formula

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/aztecqt/factest/common"
	"github.com/aztecqt/factest/datasource"
	"github.com/aztecqt/factest/operator"
	"github.com/aztecqt/factest/panel"
)

const logPrefix = "formula"

// 字面量常数
var constants = map[string]float64{
	"True":  1,
	"False": 0,
	"TRUE":  1,
	"FALSE": 0,
	"NaN":   math.NaN(),
	"NAN":   math.NaN(),
}

type Evaluator struct {
	src datasource.Source
	ops *operator.Registry
}

func NewEvaluator(src datasource.Source, ops *operator.Registry) *Evaluator {
	return &Evaluator{src: src, ops: ops}
}

// 计算公式，返回一个面板
// 结果按 (formula)*1 处理：逻辑结果转为1/0数值面板，且不与数据源的面板共享内存
func (e *Evaluator) Evaluate(ctx context.Context, formula string) (*panel.Panel, error) {
	t0 := time.Now()

	root, err := Parse(formula)
	if err != nil {
		return nil, err
	}

	env, err := e.bind(ctx, formula)
	if err != nil {
		return nil, err
	}

	v, err := e.eval(root, env)
	if err != nil {
		return nil, err
	}

	if v.Kind != operator.KindPanel {
		return nil, fmt.Errorf("%w: got %s", ErrNotPanel, v.Kind)
	}

	out := v.Panel.Map(func(x float64) float64 { return x * 1 })
	common.LogNormal(logPrefix, "evaluated %q: %d rows, %d fields bound, %v", formula, out.Len(), len(env), time.Since(t0))
	return out, nil
}

// 只检查语法、标识符和算子参数个数，不取数据
func (e *Evaluator) Validate(formula string) error {
	root, err := Parse(formula)
	if err != nil {
		return err
	}
	return e.check(root)
}

// 候选标识符中的数据字段，每个字段只取一次
func (e *Evaluator) bind(ctx context.Context, formula string) (map[string]operator.Value, error) {
	env := map[string]operator.Value{}
	for _, word := range Identifiers(formula) {
		f, ok := datasource.ParseField(word)
		if !ok {
			continue
		}
		p, err := e.src.Field(ctx, f)
		if err != nil {
			common.LogError(logPrefix, "bind %s failed: %s", word, err.Error())
			if errors.Is(err, datasource.ErrFieldNotSupported) {
				return nil, fmt.Errorf("%w: %s: %w", ErrUnknownIdentifier, word, err)
			}
			return nil, fmt.Errorf("load %s: %w", word, err)
		}
		env[word] = operator.FromPanel(p)
	}

	// 带缓存的数据源在后加载的字段扩大网格时会重排已缓存的字段，再取一次即可对齐
	if !aligned(env) {
		for word := range env {
			f, _ := datasource.ParseField(word)
			p, err := e.src.Field(ctx, f)
			if err != nil {
				return nil, fmt.Errorf("load %s: %w", word, err)
			}
			env[word] = operator.FromPanel(p)
		}
	}
	return env, nil
}

func aligned(env map[string]operator.Value) bool {
	var first *panel.Panel
	for _, v := range env {
		if first == nil {
			first = v.Panel
		} else if first.Aligned(v.Panel) != nil {
			return false
		}
	}
	return true
}

func (e *Evaluator) eval(n Node, env map[string]operator.Value) (operator.Value, error) {
	switch n := n.(type) {
	case *NumberNode:
		return operator.Scalar(n.Value), nil
	case *IdentNode:
		if v, ok := env[n.Name]; ok {
			return v, nil
		}
		if c, ok := constants[n.Name]; ok {
			return operator.Scalar(c), nil
		}
		return operator.Value{}, e.unknown(n.Name, n.pos)
	case *UnaryNode:
		v, err := e.eval(n.Operand, env)
		if err != nil {
			return operator.Value{}, err
		}
		switch n.Op {
		case "-":
			return operator.Unary(v, func(x float64) float64 { return -x })
		case "+":
			return v, nil
		default:
			return operator.Not(v)
		}
	case *BinaryNode:
		l, err := e.eval(n.Left, env)
		if err != nil {
			return operator.Value{}, err
		}
		r, err := e.eval(n.Right, env)
		if err != nil {
			return operator.Value{}, err
		}
		return binaryOp(n.Op, l, r)
	case *CallNode:
		args := make([]operator.Value, len(n.Args))
		for i, a := range n.Args {
			v, err := e.eval(a, env)
			if err != nil {
				return operator.Value{}, err
			}
			args[i] = v
		}
		if _, ok := e.ops.Lookup(n.Name); !ok {
			return operator.Value{}, fmt.Errorf("%w: function %s at position %d", ErrUnknownIdentifier, n.Name, n.pos)
		}
		return e.ops.Call(n.Name, args)
	default:
		return operator.Value{}, fmt.Errorf("%w: unsupported node %T", ErrSyntax, n)
	}
}

func (e *Evaluator) check(n Node) error {
	switch n := n.(type) {
	case *IdentNode:
		if _, ok := datasource.ParseField(n.Name); ok {
			return nil
		}
		if _, ok := constants[n.Name]; ok {
			return nil
		}
		return e.unknown(n.Name, n.pos)
	case *UnaryNode:
		return e.check(n.Operand)
	case *BinaryNode:
		if err := e.check(n.Left); err != nil {
			return err
		}
		return e.check(n.Right)
	case *CallNode:
		f, ok := e.ops.Lookup(n.Name)
		if !ok {
			return fmt.Errorf("%w: function %s at position %d", ErrUnknownIdentifier, n.Name, n.pos)
		}
		if len(n.Args) != f.Arity {
			return fmt.Errorf("%w: %s takes %d arguments, got %d", operator.ErrArgument, f.Usage, f.Arity, len(n.Args))
		}
		for _, a := range n.Args {
			if err := e.check(a); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Evaluator) unknown(name string, pos int) error {
	if _, ok := e.ops.Lookup(name); ok {
		return fmt.Errorf("%w: operator %s used without arguments at position %d", ErrUnknownIdentifier, name, pos)
	}
	return fmt.Errorf("%w: %s at position %d", ErrUnknownIdentifier, name, pos)
}

// 比较中NaN视为不成立（!= 视为成立），与pandas一致
func binaryOp(op string, l, r operator.Value) (operator.Value, error) {
	var fn func(x, y float64) float64
	switch op {
	case "+":
		fn = func(x, y float64) float64 { return x + y }
	case "-":
		fn = func(x, y float64) float64 { return x - y }
	case "*":
		fn = func(x, y float64) float64 { return x * y }
	case "/":
		fn = func(x, y float64) float64 { return x / y }
	case "**":
		fn = math.Pow
	case "<":
		fn = func(x, y float64) float64 { return b2f(x < y) }
	case "<=":
		fn = func(x, y float64) float64 { return b2f(x <= y) }
	case ">":
		fn = func(x, y float64) float64 { return b2f(x > y) }
	case ">=":
		fn = func(x, y float64) float64 { return b2f(x >= y) }
	case "==":
		fn = func(x, y float64) float64 { return b2f(x == y) }
	case "!=":
		fn = func(x, y float64) float64 { return b2f(x != y) }
	case "&&":
		return operator.And(l, r)
	case "||":
		return operator.Or(l, r)
	default:
		return operator.Value{}, fmt.Errorf("%w: unknown operator %q", ErrSyntax, op)
	}
	return operator.Binary(l, r, fn)
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
