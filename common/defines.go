/*
- @Author: aztec
- @Date: 2024-01-18 16:00:09
- @Description: 通用定义：日志、配置加载
- @
- @Copyright (c) 2024 by aztec, All Rights Reserved.
*/
package common

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type FnLog func(format string, args ...interface{})

var logNormal FnLog
var logError FnLog

// 注入日志输出。未注入时日志静默
func Init(fnLogNormal, fnLogError FnLog) {
	logNormal = fnLogNormal
	logError = fnLogError
}

func LogNormal(prefix, format string, args ...interface{}) {
	if logNormal != nil {
		logNormal(fmt.Sprintf("[%s] %s", prefix, format), args...)
	}
}

func LogError(prefix, format string, args ...interface{}) {
	if logError != nil {
		logError(fmt.Sprintf("[%s] %s", prefix, format), args...)
	}
}

// 从文件加载配置。yaml是json的超集，所以json配置文件同样可用
func LoadConfig(path string, out interface{}) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(b, out); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	return nil
}

// 条件取值
func ValueIf[T any](cond bool, a, b T) T {
	if cond {
		return a
	}
	return b
}
