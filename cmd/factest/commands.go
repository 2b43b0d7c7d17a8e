/*
- @Author: aztec
- @Date: 2024-03-18 10:15:47
- @Description: 子命令实现
- @
- @Copyright (c) 2024 by aztec, All Rights Reserved.
*/
package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/aztecqt/factest/datasource"
	"github.com/aztecqt/factest/factest"
	"github.com/aztecqt/factest/factor"
	"github.com/aztecqt/factest/factor/evaluate"
	"github.com/aztecqt/factest/factorlib"
	"github.com/aztecqt/factest/formula"
	"github.com/aztecqt/factest/operator"
	"github.com/aztecqt/factest/panel"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// 配置文件 + 命令行参数
func loadConfig() (factest.Config, error) {
	cfg := factest.NewConfig()
	if configPath != "" {
		var err error
		if cfg, err = factest.LoadConfig(configPath); err != nil {
			return cfg, err
		}
	}

	if formulaStr != "" {
		cfg.Formula = formulaStr
	}
	if periodsStr != "" {
		periods, err := factest.ParsePeriods(periodsStr)
		if err != nil {
			return cfg, err
		}
		cfg.Periods = periods
	}
	if quantiles > 0 {
		cfg.Quantiles = quantiles
	}
	if strings.TrimSpace(cfg.Formula) == "" {
		return cfg, factest.ErrNoFormula
	}
	cfg.Formula = factor.Resolve(cfg.Formula)
	return cfg, nil
}

// 打开数据源，创建因子测试
func openFactorTest(cfg factest.Config) (*factest.FactorTest, io.Closer, error) {
	setupLog(cfg.Log)
	src, closer, err := cfg.OpenSource()
	if err != nil {
		return nil, nil, err
	}

	ops := operator.Default()
	ft := factest.NewFactorTestFromConfig(src, ops, cfg)
	// 先做静态检查，避免白白加载数据
	if err := formula.NewEvaluator(src, ops).Validate(ft.Formula()); err != nil {
		closer.Close()
		return nil, nil, err
	}
	return ft, closer, nil
}

func runCalc(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ft, closer, err := openFactorTest(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	p, err := ft.Factors(ctx)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, p.ToTable(rows).Render())

	if outPath != "" {
		if err := writeCSV(outPath, p); err != nil {
			return err
		}
		fmt.Fprintf(w, "factor panel written to %s\n", outPath)
	}

	if storeName != "" {
		lc := &factorlib.LaunchConfig{Name: cfg.Source.Influx.Database, InfluxCfg: cfg.Source.Influx}
		conn, err := datasource.CreateInfluxConn(lc.InfluxCfg)
		if err != nil {
			return err
		}
		defer conn.Close()
		n, err := factorlib.NewFactorLib(lc, conn).Save(storeName, p)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d points saved as %s\n", n, storeName)
	}
	return nil
}

func writeCSV(path string, p *panel.Panel) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return p.WriteCSV(f, 6)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ft, closer, err := openFactorTest(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	ic, err := ft.InformationAnalysis(ctx)
	if err != nil {
		return err
	}
	mr, err := ft.ReturnAnalysis(ctx)
	if err != nil {
		return err
	}
	turnovers, autocorrs, err := ft.TurnoverAnalysis(ctx)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, icTable(ic).Render())
	fmt.Fprintln(w, quantileTable(ic.Periods, mr, turnovers).Render())
	fmt.Fprintln(w, autocorrTable(autocorrs, rows).Render())
	return nil
}

func periodHeader(first string, periods []int) table.Row {
	row := table.Row{first}
	for _, p := range periods {
		row = append(row, fmt.Sprintf("%dD", p))
	}
	return row
}

func icTable(ic evaluate.AnalysisResultSeq) table.Writer {
	t := table.NewWriter()
	t.SetTitle("Information Analysis")
	t.SetStyle(table.StyleLight)
	t.AppendHeader(periodHeader("", ic.Periods))

	mean := table.Row{"IC Mean"}
	for _, v := range ic.MeanIC() {
		mean = append(mean, panel.FormatValue(v, 4))
	}
	ir := table.Row{"IC IR"}
	for _, v := range ic.ICIR() {
		ir = append(ir, panel.FormatValue(v, 4))
	}
	t.AppendRows([]table.Row{mean, ir})
	t.AppendFooter(table.Row{"sections", len(ic.Data)})
	return t
}

// 每个分位：各周期平均收益，以及各周期平均换手
func quantileTable(periods []int, mr [][]float64, turnovers []evaluate.TurnoverResult) table.Writer {
	t := table.NewWriter()
	t.SetTitle("Quantile Returns / Turnover")
	t.SetStyle(table.StyleLight)

	header := periodHeader("quantile", periods)
	for _, p := range periods {
		header = append(header, fmt.Sprintf("turnover %dD", p))
	}
	t.AppendHeader(header)

	for q := range mr {
		row := table.Row{q + 1}
		for _, v := range mr[q] {
			row = append(row, panel.FormatValue(v, 6))
		}
		for _, tr := range turnovers {
			row = append(row, panel.FormatValue(meanTurnover(tr, q), 4))
		}
		t.AppendRow(row)
	}
	return t
}

func meanTurnover(tr evaluate.TurnoverResult, q int) float64 {
	sum, n := 0.0, 0
	for _, row := range tr.Turnover {
		if v := row[q]; !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

func autocorrTable(autocorrs []evaluate.AutocorrelationResult, n int) table.Writer {
	t := table.NewWriter()
	t.SetTitle("Factor Rank Autocorrelation")
	t.SetStyle(table.StyleLight)

	periods := make([]int, len(autocorrs))
	for i, ac := range autocorrs {
		periods[i] = ac.Period
	}
	t.AppendHeader(periodHeader("date", periods))
	if len(autocorrs) == 0 {
		return t
	}

	times := autocorrs[0].Times
	for i := 0; i < len(times) && i < n; i++ {
		row := table.Row{times[i].Format(time.DateOnly)}
		for _, ac := range autocorrs {
			row = append(row, panel.FormatValue(ac.Values[i], 4))
		}
		t.AppendRow(row)
	}
	return t
}

func printFields(w io.Writer) {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"field", "column"})
	for _, f := range datasource.Fields() {
		t.AppendRow(table.Row{f, datasource.ColumnOf(f)})
	}
	fmt.Fprintln(w, t.Render())
}

func printOps(w io.Writer) {
	ops := operator.Default()
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"operator", "usage"})
	for _, name := range ops.Names() {
		f, _ := ops.Lookup(name)
		t.AppendRow(table.Row{name, f.Usage})
	}
	fmt.Fprintln(w, t.Render())
}

func printFactors(w io.Writer) {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"factor", "formula"})
	for _, name := range factor.Names() {
		d, _ := factor.Lookup(name)
		t.AppendRow(table.Row{d.Name(), d.Formula()})
	}
	fmt.Fprintln(w, t.Render())
}
