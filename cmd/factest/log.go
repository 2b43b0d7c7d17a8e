/*
- @Author: aztec
- @Date: 2024-03-18 09:52:30
- @Description: 日志输出：logrus，可选lumberjack滚动文件
- @
- @Copyright (c) 2024 by aztec, All Rights Reserved.
*/
package main

import (
	"io"
	"os"

	"github.com/aztecqt/factest/common"
	"github.com/aztecqt/factest/factest"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

func newLogger(cfg factest.LogConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05.000"})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05.000"})
	}

	var out io.Writer = os.Stderr
	if cfg.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxAge:     cfg.MaxAge,
			MaxBackups: cfg.MaxBackups,
		}
	}
	logger.SetOutput(out)
	return logger
}

// 把logrus注入为全局日志输出
func setupLog(cfg factest.LogConfig) *logrus.Logger {
	logger := newLogger(cfg)
	common.Init(logger.Infof, logger.Errorf)
	return logger
}
