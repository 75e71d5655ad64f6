package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"energyweb/internal/dataset"
)

func TestPrintHourlyTable(t *testing.T) {
	p := &dataset.LoadProfile{TotalKWh: 4}
	p.Hours[7] = dataset.HourBucket{KWh: 1, Buckets: 2}
	p.Hours[18] = dataset.HourBucket{KWh: 3, Buckets: 2}
	p.Hours[3] = dataset.HourBucket{KWh: 0.001, Buckets: 1}

	var buf bytes.Buffer
	printHourlyTable(&buf, p)
	out := buf.String()

	assert.Contains(t, out, "     07 │      1.0 │     0.50 │ 25.0%\n")
	assert.Contains(t, out, "     18 │      3.0 │     1.50 │ 75.0% ← peak\n")
	assert.NotContains(t, out, "     03 │")
}

func TestFormatKWh(t *testing.T) {
	assert.Equal(t, "12.3 kWh", formatKWh(12.34))
	assert.Equal(t, "1.5 MWh", formatKWh(1500))
	assert.Zero(t, safeDivide(1, 0))
}
