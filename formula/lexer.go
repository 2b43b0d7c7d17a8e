/*
- @Author: aztec
- @Date: 2024-03-08 10:05:33
- @Description: 公式词法分析
- @
- @Copyright (c) 2024 by aztec, All Rights Reserved.
*/
package formula

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	ErrSyntax            = errors.New("formula syntax error")
	ErrUnknownIdentifier = errors.New("unknown identifier")
	ErrNotPanel          = errors.New("formula result is not a panel")
)

// 带位置的语法错误，errors.Is(err, ErrSyntax)成立
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at position %d: %s", ErrSyntax, e.Pos, e.Msg)
}

func (e *SyntaxError) Unwrap() error {
	return ErrSyntax
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

// 按长度从长到短匹配
var operators = []string{"**", "<=", ">=", "==", "!=", "&&", "||", "+", "-", "*", "/", "<", ">", "&", "|", "!", "~"}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || unicode.Is(unicode.Han, r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r) || r == '_'
}

func tokenize(src string) ([]token, error) {
	runes := []rune(src)
	toks := []token{}
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case r == ',':
			toks = append(toks, token{kind: tokComma, text: ",", pos: i})
			i++
		case unicode.IsDigit(r) || r == '.':
			j := i
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				j++
			}
			// 科学计数法
			if j < len(runes) && (runes[j] == 'e' || runes[j] == 'E') {
				k := j + 1
				if k < len(runes) && (runes[k] == '+' || runes[k] == '-') {
					k++
				}
				if k < len(runes) && unicode.IsDigit(runes[k]) {
					for k < len(runes) && unicode.IsDigit(runes[k]) {
						k++
					}
					j = k
				}
			}
			text := string(runes[i:j])
			v, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, &SyntaxError{Pos: i, Msg: fmt.Sprintf("bad number %q", text)}
			}
			toks = append(toks, token{kind: tokNumber, text: text, num: v, pos: i})
			i = j
		case isIdentStart(r):
			j := i
			for j < len(runes) && isIdentPart(runes[j]) {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: string(runes[i:j]), pos: i})
			i = j
		default:
			matched := false
			rest := string(runes[i:])
			for _, op := range operators {
				if strings.HasPrefix(rest, op) {
					toks = append(toks, token{kind: tokOp, text: op, pos: i})
					i += len([]rune(op))
					matched = true
					break
				}
			}
			if !matched {
				return nil, &SyntaxError{Pos: i, Msg: fmt.Sprintf("unexpected character %q", r)}
			}
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(runes)})
	return toks, nil
}

var nonLetters = regexp.MustCompile(`[^A-Za-z\p{Han}]+`)

// 去掉字母（拉丁、汉字）以外的所有字符，得到候选标识符
// 这一步分不清算子名和数据字段名，重复的只保留一次
func Identifiers(formula string) []string {
	words := strings.Fields(nonLetters.ReplaceAllString(formula, " "))
	seen := map[string]bool{}
	out := []string{}
	for _, w := range words {
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}
