package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/influxdata/influxdb/client/v2"
	"github.com/influxdata/influxdb/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 按命令前缀返回预设结果
type fakeInflux struct {
	queries []string
	series  map[string][]models.Row
	written []client.BatchPoints
	err     error
}

func (f *fakeInflux) Query(q client.Query) (*client.Response, error) {
	f.queries = append(f.queries, q.Command)
	if f.err != nil {
		return nil, f.err
	}
	for prefix, rows := range f.series {
		if strings.HasPrefix(q.Command, prefix) {
			return &client.Response{Results: []client.Result{{Series: rows}}}, nil
		}
	}
	return &client.Response{Results: []client.Result{{}}}, nil
}

func (f *fakeInflux) Write(bp client.BatchPoints) error {
	f.written = append(f.written, bp)
	return f.err
}

func ms(d int) json.Number {
	return json.Number(fmt.Sprintf("%d", day(d).UnixMilli()))
}

func newFakeBars() *fakeInflux {
	return &fakeInflux{series: map[string][]models.Row{
		"SHOW FIELD KEYS": {{
			Name:    "bars",
			Columns: []string{"fieldKey", "fieldType"},
			Values:  [][]interface{}{{"open", "float"}, {"close", "float"}},
		}},
		`SELECT "close"`: {
			{
				Name:    "bars",
				Tags:    map[string]string{"code": "000001"},
				Columns: []string{"time", "close"},
				Values:  [][]interface{}{{ms(1), json.Number("11")}, {ms(2), nil}},
			},
			{
				Name:    "bars",
				Tags:    map[string]string{"code": "600000"},
				Columns: []string{"time", "close"},
				Values:  [][]interface{}{{ms(1), json.Number("21")}, {ms(2), json.Number("22.5")}},
			},
		},
	}}
}

func TestInfluxLoad(t *testing.T) {
	conn := newFakeBars()
	src := NewInflux(conn, "market", "")

	p, err := src.Load(context.Background(), Close, Params{Begin: day(1), End: day(2)})
	require.NoError(t, err)
	assert.Equal(t, []string{"000001.XSHE", "600000.XSHG"}, p.Assets())
	v, _ := p.Get(day(2), "600000.XSHG")
	assert.Equal(t, 22.5, v)
	v, _ = p.Get(day(2), "000001.XSHE")
	assert.True(t, math.IsNaN(v))

	last := conn.queries[len(conn.queries)-1]
	assert.Contains(t, last, `FROM "bars" WHERE time >= '2024-01-01T00:00:00Z' AND time <= '2024-01-02T00:00:00Z'`)
	assert.Contains(t, last, `GROUP BY "code"`)
}

func TestInfluxUniverseAndErrors(t *testing.T) {
	conn := newFakeBars()
	src := NewInflux(conn, "market", "bars")
	ctx := context.Background()

	p, err := src.Load(ctx, Close, Params{Universe: []string{"600000.XSHG"}})
	require.NoError(t, err)
	assert.Equal(t, []float64{21, 22.5}, p.Values)
	assert.NotContains(t, conn.queries[len(conn.queries)-1], "WHERE")

	_, err = src.Load(ctx, Volume, Params{})
	assert.ErrorIs(t, err, ErrFieldNotSupported)

	conn.err = errors.New("connection refused")
	_, err = src.Load(ctx, Close, Params{})
	assert.Error(t, err)
}
