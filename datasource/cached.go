/*
- @Author: aztec
- @Date: 2024-03-11 10:48:06
- @Description: 带字段缓存的数据源
- @每个字段只加载一次，直到参数变化（universe、日期范围、成交价方式、基准）时显式失效
- @Copyright (c) 2024 by aztec, All Rights Reserved.
*/
package datasource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aztecqt/factest/panel"
)

// 字段加载器。不支持的字段返回ErrFieldNotSupported
type Loader interface {
	Name() string
	Load(ctx context.Context, f Field, params Params) (*panel.Panel, error)
}

// 以字段名为键的缓存
// 所有字段共用一个日期x品种网格，取各字段已加载数据的并集
type Cache struct {
	mu     sync.Mutex
	fields map[Field]*panel.Panel
	quote  *panel.Matrix
	dates  []time.Time
	assets []string
}

func NewCache() *Cache {
	return &Cache{fields: map[Field]*panel.Panel{}}
}

func (c *Cache) Get(f Field) (*panel.Panel, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.fields[f]
	return p, ok
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.fields)
}

// 把新加载的字段并入网格，返回重排到网格上的面板
// 网格扩大时，已缓存的字段一并重排，报价失效
func (c *Cache) Merge(f Field, p *panel.Panel) *panel.Panel {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := panel.ToMatrix(p)
	dates := panel.MergeDates(c.dates, m.Dates)
	assets := panel.MergeAssets(c.assets, m.Assets)
	if len(dates) != len(c.dates) || len(assets) != len(c.assets) {
		for k, old := range c.fields {
			c.fields[k] = panel.ToPanel(panel.ToMatrix(old).Reindex(dates, assets))
		}
		c.dates, c.assets = dates, assets
		c.quote = nil
	}

	out := panel.ToPanel(m.Reindex(dates, assets))
	c.fields[f] = out
	return out
}

// 当前网格
func (c *Cache) Grid() ([]time.Time, []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dates, c.assets
}

// 清空全部字段、报价与网格
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fields = map[Field]*panel.Panel{}
	c.quote = nil
	c.dates = nil
	c.assets = nil
}

// 可配置、带缓存的数据源
type Cached struct {
	loader Loader
	params Params
	cache  *Cache
}

func NewCached(loader Loader, params Params) *Cached {
	return &Cached{loader: loader, params: params, cache: NewCache()}
}

func (c *Cached) Params() Params {
	return c.params
}

func (c *Cached) SetUniverse(universe []string) {
	codes := make([]string, len(universe))
	for i, u := range universe {
		codes[i] = FormatSecurityCode(u)
	}
	c.params.Universe = codes
	c.invalidate("universe")
}

func (c *Cached) SetDateRange(begin, end time.Time) {
	c.params.Begin = begin
	c.params.End = end
	c.invalidate("date range")
}

func (c *Cached) SetDealMethod(d DealMethod) {
	c.params.DealMethod = d
	c.invalidate("deal method")
}

func (c *Cached) SetBenchmark(b string) {
	c.params.Benchmark = BenchmarkCode(b)
	c.invalidate("benchmark")
}

func (c *Cached) invalidate(reason string) {
	c.cache.Invalidate()
	logNormal("%s: cache invalidated (%s changed)", c.loader.Name(), reason)
}

// 取字段面板，缺失的(date, asset)补为NaN，得到与其他字段相同的完整网格
// 后加载的字段若带来新的日期或品种，之前取到的面板需要重新取
func (c *Cached) Field(ctx context.Context, f Field) (*panel.Panel, error) {
	if p, ok := c.cache.Get(f); ok {
		return p, nil
	}

	t0 := time.Now()
	p, err := c.loader.Load(ctx, f, c.params)
	if err != nil {
		logError("%s: load %s failed: %s", c.loader.Name(), f, err.Error())
		return nil, err
	}
	if p.Len() == 0 {
		return nil, fmt.Errorf("%w: %s from %s", ErrNoData, f, c.loader.Name())
	}

	p = c.cache.Merge(f, p)
	logNormal("%s: %s loaded, %d rows, %v", c.loader.Name(), f, p.Len(), time.Since(t0))
	return p, nil
}

// 成交报价：按成交价方式取价格，转为宽表并上移一期（下一期可成交的价格）
func (c *Cached) Quote(ctx context.Context) (*panel.Matrix, error) {
	c.cache.mu.Lock()
	q := c.cache.quote
	c.cache.mu.Unlock()
	if q != nil {
		return q, nil
	}

	f, err := c.params.DealMethod.Field()
	if err != nil {
		return nil, err
	}
	p, err := c.Field(ctx, f)
	if err != nil {
		return nil, err
	}

	q = panel.ToMatrix(p).Shift(-1)
	c.cache.mu.Lock()
	c.cache.quote = q
	c.cache.mu.Unlock()
	return q, nil
}
