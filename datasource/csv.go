/*
- @Author: aztec
- @Date: 2024-03-12 14:06:40
- @Description: 本地csv行情数据源
- @文件为长表，至少包含code, time两列，其余列为字段（列名见ColumnOf）
- @Copyright (c) 2024 by aztec, All Rights Reserved.
*/
package datasource

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/aztecqt/factest/panel"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

const (
	csvColCode = "code"
	csvColTime = "time"
)

type CSV struct {
	Path string

	mu sync.Mutex
	df *dataframe.DataFrame
}

func NewCSV(path string) *CSV {
	return &CSV{Path: path}
}

func (c *CSV) Name() string {
	return fmt.Sprintf("csv(%s)", c.Path)
}

// 文件只读取一次
func (c *CSV) frame() (*dataframe.DataFrame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.df != nil {
		return c.df, nil
	}

	f, err := os.Open(c.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	df := dataframe.ReadCSV(f, dataframe.WithTypes(map[string]series.Type{
		csvColCode: series.String,
		csvColTime: series.String,
	}))
	if df.Err != nil {
		return nil, df.Err
	}

	names := df.Names()
	if !slices.Contains(names, csvColCode) || !slices.Contains(names, csvColTime) {
		return nil, fmt.Errorf("%s: missing %s/%s column", c.Path, csvColCode, csvColTime)
	}

	c.df = &df
	logNormal("%s: %d rows, columns %v", c.Path, df.Nrow(), names)
	return c.df, nil
}

func (c *CSV) Load(ctx context.Context, f Field, params Params) (*panel.Panel, error) {
	df, err := c.frame()
	if err != nil {
		return nil, err
	}

	col := ColumnOf(f)
	if !slices.Contains(df.Names(), col) {
		return nil, fmt.Errorf("%w: %s (no column %q in %s)", ErrFieldNotSupported, f, col, c.Path)
	}

	codes := df.Col(csvColCode).Records()
	times := df.Col(csvColTime).Records()
	values := df.Col(col).Float()

	keys := []panel.Key{}
	vals := []float64{}
	for i := range codes {
		t, err := panel.ParseDate(times[i])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", c.Path, i+1, err)
		}
		code := FormatSecurityCode(codes[i])
		if !params.InRange(t) || !params.InUniverse(code) {
			continue
		}
		keys = append(keys, panel.Key{Date: t, Asset: code})
		vals = append(vals, values[i])
	}

	return panel.New(keys, vals)
}
