// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"bytes"
	"io"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		line    string
		want    Sample
		wantErr bool
	}{
		{"plain", "0.1,0.2,9.8,0.01,0.02,0.03", Sample{0.1, 0.2, 9.8, 0.01, 0.02, 0.03}, false},
		{"spaces and newline", " 1, 2 ,3,4,5,6\r\n", Sample{1, 2, 3, 4, 5, 6}, false},
		{"exponent", "1e-3,0,0,0,0,-2.5E+1", Sample{Ax: 1e-3, Gz: -25}, false},
		{"too few fields", "1,2,3", Sample{}, true},
		{"not a number", "1,2,x,4,5,6", Sample{}, true},
		{"nan", "NaN,0,0,0,0,0", Sample{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLine(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatLineRoundTrip(t *testing.T) {
	s := Sample{Ax: 0.1234567890123, Ay: -2, Az: 9.8029, Gx: 1e-7, Gy: 0, Gz: -3.5}
	got, err := ParseLine(FormatLine(s))
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestCSV(t *testing.T) {
	samples := []Sample{{1, 2, 3, 4, 5, 6}, {0, 0, 9.8029, 0, 0, 0}}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, samples))
	assert.True(t, strings.HasPrefix(buf.String(), "AccX,AccY,AccZ,GyrX,GyrY,GyrZ\n"))

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, samples, got)

	t.Run("headerless", func(t *testing.T) {
		got, err := ReadCSV(strings.NewReader("1,2,3,4,5,6\n"))
		require.NoError(t, err)
		assert.Equal(t, []Sample{{1, 2, 3, 4, 5, 6}}, got)
	})

	t.Run("bad row", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader("AccX,AccY,AccZ,GyrX,GyrY,GyrZ\n1,2,3,4,5,z\n"))
		assert.Error(t, err)
	})
}

func TestBufferSnapshotIsStable(t *testing.T) {
	b := NewBuffer(2)
	b.Append(Sample{Ax: 1}, Sample{Ax: 2})

	snap := b.Snapshot()
	b.Append(Sample{Ax: 3})

	require.Len(t, snap, 2)
	assert.Equal(t, 1.0, snap[0].Ax)
	assert.Equal(t, 2.0, snap[1].Ax)
	assert.Equal(t, 3, b.Len())

	_ = append(snap, Sample{Ax: 99})
	assert.Equal(t, 3.0, b.Snapshot()[2].Ax)

	b.Reset()
	assert.Equal(t, 0, b.Len())
}

func TestBufferConcurrentAppend(t *testing.T) {
	b := NewBuffer(0)
	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				b.Append(Sample{Az: 9.8})
				_ = b.Snapshot()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1000, b.Len())
}

type nopCloser struct{ io.ReadWriter }

func (nopCloser) Close() error { return nil }

func TestLineSourceSkipsNoise(t *testing.T) {
	input := "AccX,AccY,AccZ,GyrX,GyrY,GyrZ\n\n#comment\n3.2,garbage\n0,0,9.8029,0,0,0\n1,2,3,4,5,6\n"
	src := newLineSource(nopCloser{bytes.NewBufferString(input)}, "test")

	s, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, Sample{Az: 9.8029}, s)

	s, err = src.Next()
	require.NoError(t, err)
	assert.Equal(t, Sample{1, 2, 3, 4, 5, 6}, s)

	_, err = src.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.NoError(t, src.Close())
}

func TestMockSourceDeterministicGait(t *testing.T) {
	a := NewMockSource(0.01, 1.0, 9.8029, 7).Take(200)
	b := NewMockSource(0.01, 1.0, 9.8029, 7).Take(200)
	assert.Equal(t, a, b)

	// first half of each cycle is stance: gravity only, tiny rates
	for _, s := range a[:50] {
		assert.InDelta(t, 9.8029, s.Az, 0.01)
		assert.Less(t, math.Abs(s.Gy), 0.01)
	}
	// swing pitches the foot
	var maxRate float64
	for _, s := range a[50:100] {
		maxRate = math.Max(maxRate, math.Abs(s.Gy))
	}
	assert.Greater(t, maxRate, 1.0)
}
