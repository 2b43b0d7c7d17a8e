/*
- @Author: aztec
- @Date: 2024-01-17 11:53:54
- @Description: 因子的定义。一个因子就是一个有名字的公式
- @
- @Copyright (c) 2024 by aztec, All Rights Reserved.
*/
package factor

import (
	"sort"
	"strings"
)

type Factor interface {
	Name() string
	Formula() string
}

type Def struct {
	name    string
	formula string
}

func NewDef(name, formula string) Def {
	return Def{name: name, formula: formula}
}

func (d Def) Name() string {
	return d.name
}

func (d Def) Formula() string {
	return d.formula
}

// 常用因子
var builtins = map[string]Def{}

func init() {
	for _, d := range []Def{
		NewDef("shadow", "ABS(CLOSE/LOW + HIGH/OPEN - 2.03)"),
		NewDef("reversal_5", "-1 * (CLOSE/DELAY(CLOSE, 5) - 1)"),
		NewDef("momentum_20", "CLOSE/DELAY(CLOSE, 20) - 1"),
		NewDef("volatility_20", "STD(CLOSE/DELAY(CLOSE, 1) - 1, 20)"),
		NewDef("volume_ratio", "VOLUME/MEAN(VOLUME, 20)"),
		NewDef("pv_corr_10", "CORR(RANK(CLOSE), RANK(VOLUME), 10)"),
	} {
		builtins[d.name] = d
	}
}

// 按名字查找内置因子，不区分大小写
func Lookup(name string) (Def, bool) {
	d, ok := builtins[strings.ToLower(strings.TrimSpace(name))]
	return d, ok
}

func Names() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// 内置因子名展开为公式，其余原样返回
func Resolve(s string) string {
	if d, ok := Lookup(s); ok {
		return d.Formula()
	}
	return s
}
