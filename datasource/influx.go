/*
- @Author: aztec
- @Date: 2024-03-14 10:15:27
- @Description: influxdb行情数据源
- @measurement中每个point为一个(time, code)，code为tag，字段列名见ColumnOf
- @Copyright (c) 2024 by aztec, All Rights Reserved.
*/
package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/aztecqt/factest/panel"
	"github.com/influxdata/influxdb/client/v2"
	"github.com/influxdata/influxdb/models"
)

const (
	DefaultBarMeasurement = "bars"
	influxTagCode         = "code"
)

// client.Client的子集
type InfluxConn interface {
	Query(q client.Query) (*client.Response, error)
	Write(bp client.BatchPoints) error
}

type InfluxConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"password"`
	Database string `yaml:"database" json:"database"`
}

func CreateInfluxConn(cfg InfluxConfig) (client.Client, error) {
	return client.NewHTTPClient(client.HTTPConfig{
		Addr:     cfg.Addr,
		Username: cfg.User,
		Password: cfg.Password,
		Timeout:  time.Second * 30,
	})
}

type Influx struct {
	conn        InfluxConn
	database    string
	measurement string
}

func NewInflux(conn InfluxConn, database, measurement string) *Influx {
	if measurement == "" {
		measurement = DefaultBarMeasurement
	}
	return &Influx{conn: conn, database: database, measurement: measurement}
}

func (i *Influx) Name() string {
	return fmt.Sprintf("influx(%s.%s)", i.database, i.measurement)
}

// 执行查询，返回第一个结果的全部series
func InfluxQuery(conn InfluxConn, database, cmd string) ([]models.Row, error) {
	resp, err := conn.Query(client.NewQuery(cmd, database, "ms"))
	if err != nil {
		return nil, err
	}
	if err := resp.Error(); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}
	return resp.Results[0].Series, nil
}

func (i *Influx) fieldKeys() ([]string, error) {
	rows, err := InfluxQuery(i.conn, i.database, fmt.Sprintf(`SHOW FIELD KEYS FROM "%s"`, i.measurement))
	if err != nil {
		return nil, err
	}
	keys := []string{}
	for _, row := range rows {
		for _, v := range row.Values {
			if len(v) > 0 {
				if s, ok := v[0].(string); ok {
					keys = append(keys, s)
				}
			}
		}
	}
	return keys, nil
}

func (i *Influx) Load(ctx context.Context, f Field, params Params) (*panel.Panel, error) {
	col := ColumnOf(f)
	keys, err := i.fieldKeys()
	if err != nil {
		return nil, err
	}
	if !slices.Contains(keys, col) {
		return nil, fmt.Errorf("%w: %s (no field %q in %s)", ErrFieldNotSupported, f, col, i.measurement)
	}

	cmd := fmt.Sprintf(`SELECT "%s" FROM "%s"%s GROUP BY "%s"`, col, i.measurement, InfluxTimeCond(params.Begin, params.End), influxTagCode)
	rows, err := InfluxQuery(i.conn, i.database, cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", f, err)
	}

	pkeys := []panel.Key{}
	values := []float64{}
	for _, row := range rows {
		code := FormatSecurityCode(row.Tags[influxTagCode])
		if !params.InUniverse(code) {
			continue
		}
		for _, v := range row.Values {
			if len(v) < 2 {
				continue
			}
			ms, ok := InfluxNumber(v[0])
			if !ok {
				continue
			}
			x, ok := InfluxNumber(v[1])
			if !ok {
				x = math.NaN()
			}
			pkeys = append(pkeys, panel.Key{Date: time.UnixMilli(int64(ms)).UTC(), Asset: code})
			values = append(values, x)
		}
	}

	return panel.New(pkeys, values)
}

// 时间条件，零值表示不限
func InfluxTimeCond(begin, end time.Time) string {
	conds := ""
	if !begin.IsZero() {
		conds = fmt.Sprintf(" WHERE time >= '%s'", begin.UTC().Format(time.RFC3339))
	}
	if !end.IsZero() {
		if conds == "" {
			conds = " WHERE"
		} else {
			conds += " AND"
		}
		conds += fmt.Sprintf(" time <= '%s'", end.UTC().Format(time.RFC3339))
	}
	return conds
}

// 查询结果中的数值，精度为ms时时间列同样是json.Number
func InfluxNumber(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}
