package dataset

import (
	"bytes"
	"github.com/packagewjx/anomalydetector/internal/core"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/stat"
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	config := core.DefaultConfig().Dataset
	frame := Generate(config, NewSource(config.Seed))
	assert.Equal(t, 1020, frame.Len())
	assert.Equal(t, "request_rate", frame.Column)

	normal := frame.Values[:1000]
	anomaly := frame.Values[1000:]
	assert.InDelta(t, 100, stat.Mean(normal, nil), 3)
	assert.InDelta(t, 15, stat.StdDev(normal, nil), 2)
	assert.InDelta(t, 300, stat.Mean(anomaly, nil), 5)
	for _, v := range anomaly {
		assert.Greater(t, v, 250.0)
	}
}

func TestGenerateDeterministic(t *testing.T) {
	config := core.DefaultConfig().Dataset
	a := Generate(config, NewSource(42))
	b := Generate(config, NewSource(42))
	assert.Equal(t, a.Values, b.Values)

	c := Generate(config, NewSource(43))
	assert.NotEqual(t, a.Values, c.Values)
}

func TestGenerateEmptyColumn(t *testing.T) {
	config := core.DefaultConfig().Dataset
	config.Column = ""
	config.NormalCount = 3
	config.AnomalyCount = 1
	frame := Generate(config, NewSource(1))
	assert.Equal(t, core.DefaultInputName, frame.Column)
	assert.Equal(t, 4, frame.Len())
}

func TestCsv(t *testing.T) {
	config := core.DefaultConfig().Dataset
	frame := Generate(config, NewSource(config.Seed))
	buf := &bytes.Buffer{}
	assert.NoError(t, WriteAsCsv(frame, buf))
	assert.True(t, strings.HasPrefix(buf.String(), "request_rate\n"))

	loaded, err := LoadCsv(buf)
	assert.NoError(t, err)
	assert.Equal(t, frame.Column, loaded.Column)
	assert.Equal(t, frame.Values, loaded.Values)

	_, err = LoadCsv(strings.NewReader(""))
	assert.Error(t, err)
	_, err = LoadCsv(strings.NewReader("request_rate\n1.5\nabc\n"))
	assert.Error(t, err)
}
