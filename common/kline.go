/*
- @Author: aztec
- @Date: 2024-01-16 15:02:11
- @Description: k线定义及二进制序列化
- @
- @Copyright (c) 2024 by aztec, All Rights Reserved.
*/
package common

import (
	"encoding/binary"
	"io"
	"time"
)

// 单根k线。二进制格式(小端)：int64毫秒时间戳, open, close, low, high, volume
type KlineUnit struct {
	Time       time.Time
	OpenPrice  float64
	ClosePrice float64
	HighPrice  float64
	LowPrice   float64
	Volume     float64
}

func (k *KlineUnit) Serialize(w io.Writer) error {
	for _, v := range []interface{}{k.Time.UnixMilli(), k.OpenPrice, k.ClosePrice, k.LowPrice, k.HighPrice, k.Volume} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return nil
}

func (k *KlineUnit) Deserialize(r io.Reader) bool {
	ts := int64(0)
	if e := binary.Read(r, binary.LittleEndian, &ts); e != nil {
		return false
	}
	k.Time = time.UnixMilli(ts).UTC()

	for _, p := range []*float64{&k.OpenPrice, &k.ClosePrice, &k.LowPrice, &k.HighPrice, &k.Volume} {
		if e := binary.Read(r, binary.LittleEndian, p); e != nil {
			return false
		}
	}
	return true
}

// 连续反序列化，直到数据结束或fn返回false
func DeserializeKlineUnits(r io.Reader, fn func(ku KlineUnit) bool) {
	for {
		ku := KlineUnit{}
		if !ku.Deserialize(r) || !fn(ku) {
			return
		}
	}
}

// k线
type KLine struct {
	InstId string
	Units  []KlineUnit
}

type Bar string

const (
	Bar_1m      Bar = "1m"
	Bar_5m      Bar = "5m"
	Bar_15m     Bar = "15m"
	Bar_30m     Bar = "30m"
	Bar_1h      Bar = "1h"
	Bar_4h      Bar = "4h"
	Bar_1d      Bar = "1d"
	Bar_Invalid Bar = ""
)

var bar2Interval = map[Bar]int{Bar_1m: 60, Bar_5m: 300, Bar_15m: 900, Bar_30m: 1800, Bar_1h: 3600, Bar_4h: 14400, Bar_1d: 86400}

func Bar2Interval(bar Bar) (int, bool) {
	v, ok := bar2Interval[bar]
	return v, ok
}
