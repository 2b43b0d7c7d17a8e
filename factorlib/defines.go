/*
- @Author: aztec
- @Date: 2024-01-18 10:20:19
- @Description: 因子库的数据定义
- @
- @Copyright (c) 2024 by aztec, All Rights Reserved.
*/
package factorlib

import (
	"errors"

	"github.com/aztecqt/factest/datasource"
)

var logPrefix = "factorlib"

var ErrInvalidName = errors.New("invalid factor name")

const (
	tagAsset   = "asset"
	fieldValue = "factor"

	defaultBatchSize = 5000
)

type LaunchConfig struct {
	// 因子库名称，即influx中的database
	Name string `yaml:"name" json:"name"`

	// influx中以时间、品种名、因子名为key，存储所有因子的value
	InfluxCfg datasource.InfluxConfig `yaml:"influx" json:"influx"`

	// 每批写入的点数
	BatchSize int `yaml:"batch_size" json:"batch_size"`
}
