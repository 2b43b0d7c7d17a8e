/*
- @Author: aztec
- @Date: 2024-03-18 09:40:12
- @Description: 因子计算与评估命令行
- @
- @Copyright (c) 2024 by aztec, All Rights Reserved.
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "factest",
		Short: "Compute and evaluate formula factors over (date, asset) panels",
	}
	calcCmd = &cobra.Command{
		Use:   "calc",
		Short: "Evaluate a formula and print / export the factor panel",
		RunE:  runCalc,
	}
	analyzeCmd = &cobra.Command{
		Use:   "analyze",
		Short: "Evaluate a formula and run IC, quantile return and turnover analysis",
		RunE:  runAnalyze,
	}
	fieldsCmd = &cobra.Command{
		Use:   "fields",
		Short: "List data fields usable in formulas",
		Run: func(cmd *cobra.Command, args []string) {
			printFields(cmd.OutOrStdout())
		},
	}
	opsCmd = &cobra.Command{
		Use:   "ops",
		Short: "List operators usable in formulas",
		Run: func(cmd *cobra.Command, args []string) {
			printOps(cmd.OutOrStdout())
		},
	}
	factorsCmd = &cobra.Command{
		Use:   "factors",
		Short: "List built-in named factors, usable as --formula",
		Run: func(cmd *cobra.Command, args []string) {
			printFactors(cmd.OutOrStdout())
		},
	}

	configPath string
	formulaStr string
	periodsStr string
	quantiles  int
	outPath    string
	storeName  string
	rows       int
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (yaml or json)")

	for _, c := range []*cobra.Command{calcCmd, analyzeCmd} {
		c.Flags().StringVarP(&formulaStr, "formula", "f", "", "factor formula or built-in factor name, overrides the config")
		c.Flags().IntVarP(&rows, "rows", "n", 20, "rows to print")
	}
	calcCmd.Flags().StringVarP(&outPath, "out", "o", "", "write the factor panel to a csv file")
	calcCmd.Flags().StringVar(&storeName, "store", "", "save the factor panel to the influx factor library under this name")
	analyzeCmd.Flags().StringVarP(&periodsStr, "periods", "p", "", `holding periods, e.g. "1 5 10"`)
	analyzeCmd.Flags().IntVarP(&quantiles, "quantiles", "q", 0, "quantile count")

	rootCmd.AddCommand(calcCmd, analyzeCmd, fieldsCmd, opsCmd, factorsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
