/*
- @Author: aztec
- @Date: 2024-03-15 10:02:36
- @Description: 因子测试的配置
- @
- @Copyright (c) 2024 by aztec, All Rights Reserved.
*/
package factest

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aztecqt/factest/common"
	"github.com/aztecqt/factest/datasource"
	"github.com/aztecqt/factest/factor/evaluate"
	"github.com/aztecqt/factest/panel"
)

const (
	SourceCSV    = "csv"
	SourceKline  = "kline"
	SourceInflux = "influx"
	SourceDuckDB = "duckdb"

	UniverseAll = "all"
)

type SourceConfig struct {
	Kind     string                  `yaml:"kind" json:"kind"`
	Path     string                  `yaml:"path" json:"path"`         // csv文件、kline根目录或duckdb文件
	Table    string                  `yaml:"table" json:"table"`       // duckdb表名或influx measurement
	Exchange string                  `yaml:"exchange" json:"exchange"` // kline
	Bar      string                  `yaml:"bar" json:"bar"`           // kline
	Influx   datasource.InfluxConfig `yaml:"influx" json:"influx"`
}

type LogConfig struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"` // text | json
	File       string `yaml:"file" json:"file"`     // 为空时输出到stderr
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
}

type Config struct {
	Source     SourceConfig `yaml:"source" json:"source"`
	Universe   []string     `yaml:"universe" json:"universe"` // ["all"]或证券代码
	Begin      string       `yaml:"begin" json:"begin"`
	End        string       `yaml:"end" json:"end"`
	DealMethod string       `yaml:"deal_method" json:"deal_method"`
	Benchmark  string       `yaml:"benchmark" json:"benchmark"`
	Periods    []int        `yaml:"periods" json:"periods"`
	Quantiles  int          `yaml:"quantiles" json:"quantiles"`
	MaxLoss    float64      `yaml:"max_loss" json:"max_loss"`
	Formula    string       `yaml:"formula" json:"formula"`
	Log        LogConfig    `yaml:"log" json:"log"`
}

// 默认参数
func NewConfig() Config {
	prep := evaluate.NewPrepConfig()
	return Config{
		Source:     SourceConfig{Kind: SourceCSV},
		Universe:   []string{UniverseAll},
		DealMethod: string(datasource.DealClose),
		Benchmark:  "沪深300",
		Periods:    prep.Periods,
		Quantiles:  prep.Quantiles,
		MaxLoss:    prep.MaxLoss,
		Log:        LogConfig{Level: "info", Format: "text", MaxSize: 100, MaxAge: 30, MaxBackups: 10},
	}
}

// 在默认参数基础上加载配置文件
func LoadConfig(path string) (Config, error) {
	cfg := NewConfig()
	if err := common.LoadConfig(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// 解析形如 "1 5 10" 或 "1,5,10" 的持仓周期
func ParsePeriods(s string) ([]int, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' || r == '\t' })
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty periods %q", s)
	}
	periods := make([]int, 0, len(fields))
	for _, f := range fields {
		p, err := strconv.Atoi(f)
		if err != nil || p < 1 {
			return nil, fmt.Errorf("invalid period %q", f)
		}
		periods = append(periods, p)
	}
	return periods, nil
}

// 数据源参数
func (c Config) Params() (datasource.Params, error) {
	params := datasource.Params{
		DealMethod: datasource.DealMethod(c.DealMethod),
		Benchmark:  datasource.BenchmarkCode(c.Benchmark),
	}
	if _, err := params.DealMethod.Field(); err != nil {
		return params, err
	}

	for _, u := range c.Universe {
		if u == UniverseAll {
			params.Universe = nil
			break
		}
		params.Universe = append(params.Universe, datasource.FormatSecurityCode(u))
	}

	var err error
	if c.Begin != "" {
		if params.Begin, err = panel.ParseDate(c.Begin); err != nil {
			return params, err
		}
	}
	if c.End != "" {
		if params.End, err = panel.ParseDate(c.End); err != nil {
			return params, err
		}
	}
	return params, nil
}

// 按配置创建数据源。返回的closer用于释放数据库连接
func (c Config) OpenSource() (*datasource.Cached, io.Closer, error) {
	params, err := c.Params()
	if err != nil {
		return nil, nil, err
	}

	var loader datasource.Loader
	var closer io.Closer = nopCloser{}
	switch c.Source.Kind {
	case SourceCSV:
		loader = datasource.NewCSV(c.Source.Path)
	case SourceKline:
		loader = datasource.NewKline(c.Source.Path, c.Source.Exchange, common.Bar(c.Source.Bar))
	case SourceInflux:
		conn, err := datasource.CreateInfluxConn(c.Source.Influx)
		if err != nil {
			return nil, nil, err
		}
		loader = datasource.NewInflux(conn, c.Source.Influx.Database, c.Source.Table)
		closer = conn
	case SourceDuckDB:
		db, err := datasource.OpenDuckDB(c.Source.Path)
		if err != nil {
			return nil, nil, err
		}
		dl, err := datasource.NewDuckDB(db, c.Source.Table)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		loader = dl
		closer = db
	default:
		return nil, nil, fmt.Errorf("unknown source kind %q", c.Source.Kind)
	}

	common.LogNormal(logPrefix, "source %s opened", loader.Name())
	return datasource.NewCached(loader, params), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// 预处理参数
func (c Config) PrepConfig() evaluate.PrepConfig {
	prep := evaluate.NewPrepConfig()
	if len(c.Periods) > 0 {
		prep.Periods = c.Periods
	}
	if c.Quantiles > 0 {
		prep.Quantiles = c.Quantiles
	}
	if c.MaxLoss > 0 {
		prep.MaxLoss = c.MaxLoss
	}
	return prep
}
