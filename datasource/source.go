/*
- @Author: aztec
- @Date: 2024-03-11 09:32:50
- @Description: 数据源接口与数据字段白名单
- @
- @Copyright (c) 2024 by aztec, All Rights Reserved.
*/
package datasource

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aztecqt/factest/panel"
)

const logPrefix = "datasource"

var (
	ErrFieldNotSupported = errors.New("field not supported by data source")
	ErrNoData            = errors.New("no data")
)

// 数据字段。公式中出现的这些关键字会被绑定为数据源返回的面板
type Field string

const (
	Open                Field = "OPEN"
	High                Field = "HIGH"
	Low                 Field = "LOW"
	Close               Field = "CLOSE"
	PreClose            Field = "PRECLOSE"
	Vwap                Field = "VWAP"
	Volume              Field = "VOLUME"
	Amount              Field = "AMOUNT"
	MCap                Field = "MCAP" // 流通市值
	AdjClose            Field = "ADJCLOSE"
	AdjOpen             Field = "ADJOPEN"
	AdjLow              Field = "ADJLOW"
	AdjVwap             Field = "ADJVWAP"
	AdjHigh             Field = "ADJHIGH"
	AdjPreClose         Field = "ADJPRECLOSE"
	AfClose             Field = "AFCLOSE" // 后复权
	AfOpen              Field = "AFOPEN"
	AfHigh              Field = "AFHIGH"
	AfLow               Field = "AFLOW"
	AfPreClose          Field = "AFPRECLOSE"
	DealAmount          Field = "DEALAMOUNT"
	DealValue           Field = "DEALVALUE"
	Turnover            Field = "TURNOVER"
	BenchmarkIndexOpen  Field = "BENCHMARKINDEXOPEN"
	BenchmarkIndexClose Field = "BENCHMARKINDEXCLOSE"
	BenchmarkIndexHigh  Field = "BENCHMARKINDEXHIGH"
	BenchmarkIndexLow   Field = "BENCHMARKINDEXLOW"
	Ret                 Field = "RET"
	Cap                 Field = "CAP" // 总市值
	HighLimit           Field = "HIGHLIMIT"
	LowLimit            Field = "LOWLIMIT"
)

var allFields = []Field{
	Open, High, Low, Close, PreClose, Vwap, Volume, Amount, MCap,
	AdjClose, AdjOpen, AdjLow, AdjVwap, AdjHigh, AdjPreClose,
	AfClose, AfOpen, AfHigh, AfLow, AfPreClose,
	DealAmount, DealValue, Turnover,
	BenchmarkIndexOpen, BenchmarkIndexClose, BenchmarkIndexHigh, BenchmarkIndexLow,
	Ret, Cap, HighLimit, LowLimit,
}

// 全部字段
func Fields() []Field {
	return slices.Clone(allFields)
}

// 区分大小写，与公式中的写法完全一致才算
func ParseField(name string) (Field, bool) {
	f := Field(name)
	if slices.Contains(allFields, f) {
		return f, true
	}
	return "", false
}

// 行情表中的列名。不在表里的字段用小写字段名作列名
var barColumns = map[Field]string{
	Open:      "open",
	High:      "high",
	Low:       "low",
	Close:     "close",
	Volume:    "volume",
	Amount:    "money",
	HighLimit: "high_limit",
	LowLimit:  "low_limit",
	PreClose:  "pre_close",
	Vwap:      "avg",
}

func ColumnOf(f Field) string {
	if c, ok := barColumns[f]; ok {
		return c
	}
	return strings.ToLower(string(f))
}

// 数据源：按字段返回 (date, asset) 面板
type Source interface {
	Field(ctx context.Context, f Field) (*panel.Panel, error)
}

// 成交价方式
type DealMethod string

const (
	DealClose DealMethod = "close"
	DealOpen  DealMethod = "open"
	DealVwap  DealMethod = "vwap"
)

func (d DealMethod) Field() (Field, error) {
	switch d {
	case DealClose, "":
		return Close, nil
	case DealOpen:
		return Open, nil
	case DealVwap:
		return Vwap, nil
	default:
		return "", fmt.Errorf("unsupported deal method %q", string(d))
	}
}

// 数据源参数。任一参数变化都会使缓存失效
type Params struct {
	Universe   []string // 空表示全部
	Begin      time.Time
	End        time.Time
	DealMethod DealMethod
	Benchmark  string
}

func (p Params) InRange(t time.Time) bool {
	if !p.Begin.IsZero() && t.Before(p.Begin) {
		return false
	}
	if !p.End.IsZero() && t.After(p.End) {
		return false
	}
	return true
}

func (p Params) InUniverse(asset string) bool {
	return len(p.Universe) == 0 || slices.Contains(p.Universe, asset)
}

// 按参数过滤面板
func (p Params) Filter(src *panel.Panel) *panel.Panel {
	out := &panel.Panel{}
	for i, k := range src.Keys {
		if p.InRange(k.Date) && p.InUniverse(k.Asset) {
			out.Keys = append(out.Keys, k)
			out.Values = append(out.Values, src.Values[i])
		}
	}
	return out
}
