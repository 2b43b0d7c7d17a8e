/*
- @Author: aztec
- @Date: 2024-03-05 09:41:07
- @Description: 面板/矩阵的表格化输出，以及与gota DataFrame、csv之间的转换
- @
- @Copyright (c) 2024 by aztec, All Rights Reserved.
*/
package panel

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shopspring/decimal"
)

const (
	colDate  = "date"
	colAsset = "asset"
)

// 按固定精度格式化。NaN输出为空
func FormatValue(v float64, precision int32) string {
	if math.IsNaN(v) {
		return ""
	} else if math.IsInf(v, 1) {
		return "inf"
	} else if math.IsInf(v, -1) {
		return "-inf"
	}
	return decimal.NewFromFloat(v).StringFixed(precision)
}

// 最多显示n行
func (p *Panel) ToTable(n int) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetAutoIndex(true)
	t.AppendHeader(table.Row{colDate, colAsset, ValueColumn})
	for i := 0; i < len(p.Keys) && i < n; i++ {
		t.AppendRow(table.Row{p.Keys[i].Date.Format(time.DateOnly), p.Keys[i].Asset, FormatValue(p.Values[i], 6)})
	}
	if len(p.Keys) > n {
		t.AppendFooter(table.Row{fmt.Sprintf("%d more...", len(p.Keys)-n)})
	}
	return t
}

// 单行数据太多时，最多显示n列
func (m *Matrix) ToTable(n int) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetAutoIndex(true)

	l := len(m.Assets)
	overlen := l > n
	header := table.Row{colDate}
	for i := 0; i < l && i < n; i++ {
		header = append(header, m.Assets[i])
	}
	if overlen {
		header = append(header, fmt.Sprintf("%d more...", l-n))
	}
	t.AppendHeader(header)

	for i, d := range m.Dates {
		row := table.Row{d.Format(time.DateOnly)}
		for j := 0; j < l && j < n; j++ {
			row = append(row, FormatValue(m.Data[i][j], 6))
		}
		t.AppendRow(row)
	}

	return t
}

// 转为三列的DataFrame：date, asset, factor
func (p *Panel) ToDataFrame() dataframe.DataFrame {
	dates := make([]string, len(p.Keys))
	assets := make([]string, len(p.Keys))
	for i, k := range p.Keys {
		dates[i] = k.Date.Format(time.DateOnly)
		assets[i] = k.Asset
	}
	return dataframe.New(
		series.New(dates, series.String, colDate),
		series.New(assets, series.String, colAsset),
		series.New(p.Values, series.Float, ValueColumn),
	)
}

// 从date, asset, factor三列的DataFrame构建面板
func FromDataFrame(df dataframe.DataFrame) (*Panel, error) {
	if df.Err != nil {
		return nil, df.Err
	}

	dateCol := df.Col(colDate)
	assetCol := df.Col(colAsset)
	valueCol := df.Col(ValueColumn)
	for _, s := range []series.Series{dateCol, assetCol, valueCol} {
		if s.Err != nil {
			return nil, s.Err
		}
	}

	dates := dateCol.Records()
	assets := assetCol.Records()
	values := valueCol.Float()
	keys := make([]Key, len(dates))
	for i, ds := range dates {
		d, err := ParseDate(ds)
		if err != nil {
			return nil, err
		}
		keys[i] = Key{Date: d, Asset: assets[i]}
	}

	return New(keys, values)
}

// 以csv格式输出，值按precision位小数四舍五入
func (p *Panel) WriteCSV(w io.Writer, precision int32) error {
	records := make([][]string, 0, len(p.Keys)+1)
	records = append(records, []string{colDate, colAsset, ValueColumn})
	for i, k := range p.Keys {
		records = append(records, []string{k.Date.Format(time.DateOnly), k.Asset, FormatValue(p.Values[i], precision)})
	}

	df := dataframe.LoadRecords(records,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String))
	if df.Err != nil {
		return df.Err
	}
	return df.WriteCSV(w)
}

var dateLayouts = []string{time.DateOnly, time.DateTime, time.RFC3339, "20060102"}

// 解析日期，支持常见格式
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
