/*
- @Author: aztec
- @Date: 2024-01-16 16:18:51
- @Description: 本地k线文件数据源
- @目录结构：{root}/klines/{ex}/{bar}/{instId}/{yyyy-mm-dd}.kline，可选.zlib压缩
- @Copyright (c) 2024 by aztec, All Rights Reserved.
*/
package datasource

import (
	"bytes"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aztecqt/factest/common"
	"github.com/aztecqt/factest/panel"
)

type Kline struct {
	Root     string
	Exchange string
	Bar      common.Bar

	mu    sync.Mutex
	cache map[string]*common.KLine // instId|t0|t1 -> kline
}

func NewKline(root, exchange string, bar common.Bar) *Kline {
	return &Kline{Root: root, Exchange: exchange, Bar: bar, cache: map[string]*common.KLine{}}
}

func (k *Kline) Name() string {
	return fmt.Sprintf("kline(%s/%s)", k.Exchange, k.Bar)
}

func (k *Kline) barPath() string {
	return filepath.Join(k.Root, "klines", k.Exchange, string(k.Bar))
}

func (k *Kline) Load(ctx context.Context, f Field, params Params) (*panel.Panel, error) {
	var pick func(ku *common.KlineUnit) float64
	switch f {
	case Open:
		pick = func(ku *common.KlineUnit) float64 { return ku.OpenPrice }
	case High:
		pick = func(ku *common.KlineUnit) float64 { return ku.HighPrice }
	case Low:
		pick = func(ku *common.KlineUnit) float64 { return ku.LowPrice }
	case Close:
		pick = func(ku *common.KlineUnit) float64 { return ku.ClosePrice }
	case Volume:
		pick = func(ku *common.KlineUnit) float64 { return ku.Volume }
	default:
		return nil, fmt.Errorf("%w: %s by %s", ErrFieldNotSupported, f, k.Name())
	}

	instIds := params.Universe
	if len(instIds) == 0 {
		instIds = GetInstIdsOfDir(k.barPath())
	}

	keys := []panel.Key{}
	values := []float64{}
	for _, instId := range instIds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		t0, t1 := params.Begin, params.End
		if t0.IsZero() || t1.IsZero() {
			d0, d1, ok := GetTimeRangeOfDir(filepath.Join(k.barPath(), instId))
			if !ok {
				continue
			}
			if t0.IsZero() {
				t0 = d0
			}
			if t1.IsZero() {
				t1 = d1
			}
		}

		kl := k.loadKline(t0, t1, instId)
		for i := range kl.Units {
			keys = append(keys, panel.Key{Date: kl.Units[i].Time, Asset: instId})
			values = append(values, pick(&kl.Units[i]))
		}
	}

	return panel.New(keys, values)
}

// 加载 [t0, t1] 内的k线，按日期逐个文件读取
func (k *Kline) loadKline(t0, t1 time.Time, instId string) *common.KLine {
	key := fmt.Sprintf("%s|%d|%d", instId, t0.UnixMilli(), t1.UnixMilli())
	k.mu.Lock()
	defer k.mu.Unlock()
	if kl, ok := k.cache[key]; ok {
		return kl
	}

	kl := &common.KLine{InstId: instId}
	dt0 := dateOf(t0)
	dt1 := dateOf(t1)
	for d := dt0; !d.After(dt1); d = d.AddDate(0, 0, 1) {
		path := filepath.Join(k.barPath(), instId, d.Format(time.DateOnly)+".kline")
		bf, err := LoadZipOrRawFile(path)
		if err != nil {
			continue
		}
		common.DeserializeKlineUnits(bf, func(ku common.KlineUnit) bool {
			if !ku.Time.Before(t0) && !ku.Time.After(t1) {
				kl.Units = append(kl.Units, ku)
			}
			return !ku.Time.After(t1)
		})
	}

	k.cache[key] = kl
	return kl
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// 优先读取path.zlib，不存在时读取原文件
func LoadZipOrRawFile(path string) (*bytes.Buffer, error) {
	if b, err := os.ReadFile(path + ".zlib"); err == nil {
		zr, err := zlib.NewReader(bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		bf := &bytes.Buffer{}
		if _, err := io.Copy(bf, zr); err != nil {
			return nil, err
		}
		return bf, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return bytes.NewBuffer(b), nil
}

// 获取一个目录下，以instId为命名的文件夹名
func GetInstIdsOfDir(dir string) []string {
	instIds := []string{}
	if des, err := os.ReadDir(dir); err == nil {
		for _, de := range des {
			if de.IsDir() {
				instIds = append(instIds, de.Name())
			}
		}
	}
	sort.Strings(instIds)
	return instIds
}

// 目录中的文件以日期命名，返回日期范围
func GetTimeRangeOfDir(dir string) (t0, t1 time.Time, ok bool) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	dates := []time.Time{}
	for _, de := range des {
		if de.IsDir() || len(de.Name()) < 10 || !strings.Contains(de.Name(), ".kline") {
			continue
		}
		if t, err := time.Parse(time.DateOnly, de.Name()[:10]); err == nil {
			dates = append(dates, t)
		}
	}
	if len(dates) == 0 {
		return
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	t0 = dates[0]
	t1 = dates[len(dates)-1].AddDate(0, 0, 1).Add(-time.Millisecond)
	ok = true
	return
}
