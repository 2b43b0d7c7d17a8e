/*
- @Author: aztec
- @Date: 2024-03-08 11:26:47
- @Description: 公式语法分析，生成表达式树
- @只接受：数字字面量、标识符、算术/比较/逻辑运算、函数调用
- @Copyright (c) 2024 by aztec, All Rights Reserved.
*/
package formula

import (
	"fmt"
	"strings"
)

// 表达式树节点
type Node interface {
	Pos() int
	String() string
}

type NumberNode struct {
	pos   int
	Value float64
}

type IdentNode struct {
	pos  int
	Name string
}

type UnaryNode struct {
	pos     int
	Op      string
	Operand Node
}

type BinaryNode struct {
	pos         int
	Op          string
	Left, Right Node
}

type CallNode struct {
	pos  int
	Name string
	Args []Node
}

func (n *NumberNode) Pos() int { return n.pos }
func (n *IdentNode) Pos() int  { return n.pos }
func (n *UnaryNode) Pos() int  { return n.pos }
func (n *BinaryNode) Pos() int { return n.pos }
func (n *CallNode) Pos() int   { return n.pos }

func (n *NumberNode) String() string { return fmt.Sprintf("%g", n.Value) }
func (n *IdentNode) String() string  { return n.Name }
func (n *UnaryNode) String() string  { return fmt.Sprintf("(%s%s)", n.Op, n.Operand) }
func (n *BinaryNode) String() string {
	return fmt.Sprintf("(%s %s %s)", n.Left, n.Op, n.Right)
}
func (n *CallNode) String() string {
	args := make([]string, len(n.Args))
	for i, a := range n.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", n.Name, strings.Join(args, ", "))
}

type parser struct {
	toks []token
	i    int
}

// 解析公式为表达式树
func Parse(src string) (Node, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	if p.peek().kind == tokEOF {
		return nil, &SyntaxError{Pos: 0, Msg: "empty formula"}
	}

	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("unexpected %q", t.text)}
	}
	return n, nil
}

func (p *parser) peek() token {
	return p.toks[p.i]
}

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

// 当前为给定运算符之一时消费并返回
func (p *parser) acceptOp(ops ...string) (token, bool) {
	t := p.peek()
	if t.kind != tokOp {
		return t, false
	}
	for _, op := range ops {
		if t.text == op {
			p.i++
			return t, true
		}
	}
	return t, false
}

// 左结合的二元运算层
func (p *parser) binaryLevel(sub func() (Node, error), ops ...string) (Node, error) {
	left, err := sub()
	if err != nil {
		return nil, err
	}
	for {
		t, ok := p.acceptOp(ops...)
		if !ok {
			return left, nil
		}
		right, err := sub()
		if err != nil {
			return nil, err
		}
		left = &BinaryNode{pos: t.pos, Op: normalizeOp(t.text), Left: left, Right: right}
	}
}

// & 与 && 等价，| 与 || 等价
func normalizeOp(op string) string {
	switch op {
	case "&":
		return "&&"
	case "|":
		return "||"
	case "~":
		return "!"
	}
	return op
}

func (p *parser) parseOr() (Node, error) {
	return p.binaryLevel(p.parseAnd, "||", "|")
}

func (p *parser) parseAnd() (Node, error) {
	return p.binaryLevel(p.parseCmp, "&&", "&")
}

// 比较不结合：a < b < c 是语法错误
func (p *parser) parseCmp() (Node, error) {
	left, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	t, ok := p.acceptOp("<", "<=", ">", ">=", "==", "!=")
	if !ok {
		return left, nil
	}
	right, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	if n, chained := p.acceptOp("<", "<=", ">", ">=", "==", "!="); chained {
		return nil, &SyntaxError{Pos: n.pos, Msg: "chained comparison"}
	}
	return &BinaryNode{pos: t.pos, Op: t.text, Left: left, Right: right}, nil
}

func (p *parser) parseAdd() (Node, error) {
	return p.binaryLevel(p.parseMul, "+", "-")
}

func (p *parser) parseMul() (Node, error) {
	return p.binaryLevel(p.parseUnary, "*", "/")
}

func (p *parser) parseUnary() (Node, error) {
	if t, ok := p.acceptOp("-", "+", "!", "~"); ok {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryNode{pos: t.pos, Op: normalizeOp(t.text), Operand: operand}, nil
	}
	return p.parsePower()
}

// 幂运算右结合，且优先级高于一元负号：-2**2 == -4
func (p *parser) parsePower() (Node, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if t, ok := p.acceptOp("**"); ok {
		exp, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &BinaryNode{pos: t.pos, Op: "**", Left: base, Right: exp}, nil
	}
	return base, nil
}

func (p *parser) parsePrimary() (Node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return &NumberNode{pos: t.pos, Value: t.num}, nil
	case tokIdent:
		if p.peek().kind != tokLParen {
			return &IdentNode{pos: t.pos, Name: t.text}, nil
		}
		p.next()
		call := &CallNode{pos: t.pos, Name: t.text}
		if p.peek().kind == tokRParen {
			p.next()
			return call, nil
		}
		for {
			arg, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
			sep := p.next()
			if sep.kind == tokRParen {
				return call, nil
			}
			if sep.kind != tokComma {
				return nil, &SyntaxError{Pos: sep.pos, Msg: fmt.Sprintf("expected ',' or ')' in call to %s", t.text)}
			}
		}
	case tokLParen:
		n, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if c := p.next(); c.kind != tokRParen {
			return nil, &SyntaxError{Pos: c.pos, Msg: "missing ')'"}
		}
		return n, nil
	case tokEOF:
		return nil, &SyntaxError{Pos: t.pos, Msg: "unexpected end of formula"}
	default:
		return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("unexpected %q", t.text)}
	}
}
