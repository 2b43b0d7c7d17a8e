package factorlib

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/aztecqt/factest/datasource"
	"github.com/aztecqt/factest/panel"
	"github.com/influxdata/influxdb/client/v2"
	"github.com/influxdata/influxdb/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInflux struct {
	queries []string
	rows    []models.Row
	written []client.BatchPoints
	err     error
}

func (f *fakeInflux) Query(q client.Query) (*client.Response, error) {
	f.queries = append(f.queries, q.Command)
	if f.err != nil {
		return nil, f.err
	}
	return &client.Response{Results: []client.Result{{Series: f.rows}}}, nil
}

func (f *fakeInflux) Write(bp client.BatchPoints) error {
	if f.err != nil {
		return f.err
	}
	f.written = append(f.written, bp)
	return nil
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func ms(d int) json.Number {
	return json.Number(fmt.Sprintf("%d", day(d).UnixMilli()))
}

func TestSave(t *testing.T) {
	conn := &fakeInflux{}
	lib := NewFactorLib(&LaunchConfig{Name: "factors", BatchSize: 2}, conn)

	p, err := panel.New(
		[]panel.Key{{Date: day(1), Asset: "A"}, {Date: day(1), Asset: "B"}, {Date: day(2), Asset: "A"}, {Date: day(2), Asset: "B"}},
		[]float64{1, math.NaN(), 3, 4})
	require.NoError(t, err)

	n, err := lib.Save("momentum", p)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, conn.written, 2)
	assert.Equal(t, "factors", conn.written[0].Database())
	assert.Equal(t, "ms", conn.written[0].Precision())

	pt := conn.written[0].Points()[0]
	assert.Equal(t, "momentum", pt.Name())
	assert.Equal(t, map[string]string{"asset": "A"}, pt.Tags())
	fields, err := pt.Fields()
	require.NoError(t, err)
	assert.Equal(t, 1.0, fields["factor"])
	assert.True(t, pt.Time().Equal(day(1)))

	_, err = lib.Save("", p)
	assert.ErrorIs(t, err, ErrInvalidName)

	conn.err = errors.New("timeout")
	_, err = lib.Save("momentum", p)
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	conn := &fakeInflux{rows: []models.Row{
		{Name: "momentum", Tags: map[string]string{"asset": "A"}, Columns: []string{"time", "factor"},
			Values: [][]interface{}{{ms(1), json.Number("1")}, {ms(2), json.Number("3")}}},
		{Name: "momentum", Tags: map[string]string{"asset": "B"}, Columns: []string{"time", "factor"},
			Values: [][]interface{}{{ms(2), json.Number("4")}}},
	}}
	lib := NewFactorLib(&LaunchConfig{Name: "factors"}, conn)

	p, err := lib.Load("momentum", day(1), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 4, p.Len())
	v, _ := p.Get(day(1), "B")
	assert.True(t, math.IsNaN(v))
	v, _ = p.Get(day(2), "B")
	assert.Equal(t, 4.0, v)
	assert.Equal(t, `SELECT "factor" FROM "momentum" WHERE time >= '2024-01-01T00:00:00Z' GROUP BY "asset"`, conn.queries[0])

	conn.rows = nil
	_, err = lib.Load("momentum", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, datasource.ErrNoData)

	_, err = lib.Load(`bad"name`, time.Time{}, time.Time{})
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestList(t *testing.T) {
	conn := &fakeInflux{rows: []models.Row{
		{Name: "measurements", Columns: []string{"name"}, Values: [][]interface{}{{"momentum"}, {"reversal"}}},
	}}
	lib := NewFactorLib(&LaunchConfig{Name: "factors"}, conn)
	names, err := lib.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"momentum", "reversal"}, names)
}
