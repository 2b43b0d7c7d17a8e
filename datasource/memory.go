/*
- @Author: aztec
- @Date: 2024-03-11 11:42:37
- @Description: 内存数据源，主要用于测试和已加载好的数据
- @
- @Copyright (c) 2024 by aztec, All Rights Reserved.
*/
package datasource

import (
	"context"
	"fmt"
	"sync"

	"github.com/aztecqt/factest/panel"
)

type Memory struct {
	mu     sync.Mutex
	fields map[Field]*panel.Panel
}

func NewMemory() *Memory {
	return &Memory{fields: map[Field]*panel.Panel{}}
}

func (m *Memory) Set(f Field, p *panel.Panel) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fields[f] = p
	return m
}

func (m *Memory) Name() string {
	return "memory"
}

// 作为Source直接使用，不做过滤
func (m *Memory) Field(ctx context.Context, f Field) (*panel.Panel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.fields[f]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFieldNotSupported, f)
	}
	return p, nil
}

// 作为Loader使用，按参数过滤
func (m *Memory) Load(ctx context.Context, f Field, params Params) (*panel.Panel, error) {
	p, err := m.Field(ctx, f)
	if err != nil {
		return nil, err
	}
	return params.Filter(p), nil
}
