/*
- @Author: aztec
- @Date: 2024-01-18 16:30:45
- @Description:
- @因子库。把计算好的因子面板写入influxdb，并按时间范围读回
- @每个因子一个measurement，品种为tag，值字段为factor
- @Copyright (c) 2024 by aztec, All Rights Reserved.
*/
package factorlib

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/aztecqt/factest/common"
	"github.com/aztecqt/factest/datasource"
	"github.com/aztecqt/factest/panel"
	"github.com/influxdata/influxdb/client/v2"
)

type FactorLib struct {
	// 配置
	lc *LaunchConfig

	// 数据库连接
	ic datasource.InfluxConn
}

func NewFactorLib(lc *LaunchConfig, ic datasource.InfluxConn) *FactorLib {
	return &FactorLib{lc: lc, ic: ic}
}

func checkName(name string) error {
	if name == "" || strings.ContainsAny(name, "\"\n") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// 写入一个因子面板，NaN不写。返回写入的点数
func (f *FactorLib) Save(name string, p *panel.Panel) (int, error) {
	if err := checkName(name); err != nil {
		return 0, err
	}

	batchSize := common.ValueIf(f.lc.BatchSize > 0, f.lc.BatchSize, defaultBatchSize)
	newBatch := func() (client.BatchPoints, error) {
		return client.NewBatchPoints(client.BatchPointsConfig{Database: f.lc.Name, Precision: "ms"})
	}

	bp, err := newBatch()
	if err != nil {
		return 0, err
	}

	written := 0
	flush := func() error {
		n := len(bp.Points())
		if n == 0 {
			return nil
		}
		if err := f.ic.Write(bp); err != nil {
			common.LogError(logPrefix, "write %s failed: %s", name, err.Error())
			return err
		}
		written += n
		bp, err = newBatch()
		return err
	}

	for i, k := range p.Keys {
		v := p.Values[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		pt, err := client.NewPoint(name, map[string]string{tagAsset: k.Asset}, map[string]interface{}{fieldValue: v}, k.Date)
		if err != nil {
			return written, err
		}
		bp.AddPoint(pt)
		if len(bp.Points()) >= batchSize {
			if err := flush(); err != nil {
				return written, err
			}
		}
	}
	if err := flush(); err != nil {
		return written, err
	}

	common.LogNormal(logPrefix, "%s saved to %s, %d points", name, f.lc.Name, written)
	return written, nil
}

// 读回一个因子面板，零值时间表示不限
func (f *FactorLib) Load(name string, begin, end time.Time) (*panel.Panel, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}

	cmd := fmt.Sprintf(`SELECT "%s" FROM "%s"%s GROUP BY "%s"`, fieldValue, name, datasource.InfluxTimeCond(begin, end), tagAsset)
	rows, err := datasource.InfluxQuery(f.ic, f.lc.Name, cmd)
	if err != nil {
		return nil, err
	}

	keys := []panel.Key{}
	values := []float64{}
	for _, row := range rows {
		asset := row.Tags[tagAsset]
		for _, v := range row.Values {
			if len(v) < 2 {
				continue
			}
			ms, ok := datasource.InfluxNumber(v[0])
			if !ok {
				continue
			}
			x, ok := datasource.InfluxNumber(v[1])
			if !ok {
				x = math.NaN()
			}
			keys = append(keys, panel.Key{Date: time.UnixMilli(int64(ms)).UTC(), Asset: asset})
			values = append(values, x)
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: factor %s", datasource.ErrNoData, name)
	}

	// 写入时跳过了NaN，读回后补齐网格
	p, err := panel.New(keys, values)
	if err != nil {
		return nil, err
	}
	return panel.ToPanel(panel.ToMatrix(p)), nil
}

// 库中所有因子名
func (f *FactorLib) List() ([]string, error) {
	rows, err := datasource.InfluxQuery(f.ic, f.lc.Name, "SHOW MEASUREMENTS")
	if err != nil {
		return nil, err
	}
	names := []string{}
	for _, row := range rows {
		for _, v := range row.Values {
			if len(v) > 0 {
				if s, ok := v[0].(string); ok {
					names = append(names, s)
				}
			}
		}
	}
	return names, nil
}
