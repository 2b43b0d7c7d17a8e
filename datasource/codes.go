/*
- @Author: aztec
- @Date: 2024-03-11 11:20:14
- @Description: 证券代码、基准名称规范化
- @
- @Copyright (c) 2024 by aztec, All Rights Reserved.
*/
package datasource

import (
	"regexp"
	"strings"

	"github.com/aztecqt/factest/common"
)

var (
	rePureNum   = regexp.MustCompile(`^\d{1,6}$`)
	reNumSuffix = regexp.MustCompile(`(?i)^(\d{6})\.(sh|sz|xshg|xshe)$`)
	rePrefixNum = regexp.MustCompile(`(?i)^(sh|sz)(\d{6})$`)
)

func exchangeSuffix(code, market string) string {
	switch strings.ToLower(market) {
	case "sh", "xshg":
		return ".XSHG"
	case "sz", "xshe":
		return ".XSHE"
	}
	// 6、5开头为上交所
	if strings.HasPrefix(code, "6") || strings.HasPrefix(code, "5") {
		return ".XSHG"
	}
	return ".XSHE"
}

// 规范化为 000001.XSHE 形式
// 支持：纯数字（不足6位左补0）、600000.sh、sh600000
// 不认识的代码原样返回（如加密货币的instId）
func FormatSecurityCode(code string) string {
	code = strings.TrimSpace(code)
	if m := reNumSuffix.FindStringSubmatch(code); m != nil {
		return m[1] + exchangeSuffix(m[1], m[2])
	}
	if m := rePrefixNum.FindStringSubmatch(code); m != nil {
		return m[2] + exchangeSuffix(m[2], m[1])
	}
	if rePureNum.MatchString(code) {
		num := strings.Repeat("0", 6-len(code)) + code
		return num + exchangeSuffix(num, "")
	}
	return code
}

var benchmarkCodes = map[string]string{
	"沪深300":  "hs300",
	"中证500":  "zz500",
	"中证800":  "zz800",
	"中证1000": "zz1000",
	"中证全指":   "zzqz",
}

// 基准中文名转为内部代码，已是内部代码的原样返回
func BenchmarkCode(name string) string {
	if c, ok := benchmarkCodes[name]; ok {
		return c
	}
	return name
}

func logNormal(format string, args ...interface{}) {
	common.LogNormal(logPrefix, format, args...)
}

func logError(format string, args ...interface{}) {
	common.LogError(logPrefix, format, args...)
}
