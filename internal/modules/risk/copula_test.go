package risk

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auravest/risk-engine/internal/domain"
)

func negate(series []float64) []float64 {
	out := make([]float64, len(series))
	for i, v := range series {
		out[i] = -v
	}
	return out
}

func TestTailDependence_IdenticalSeries(t *testing.T) {
	m := newTestModel()

	x := wave(100, 0)
	matrix := mustMatrix(t, map[string][]float64{"AAPL": x, "COPY": x}, "AAPL", "COPY")

	analysis, err := m.TailDependence(matrix, 0.1)
	require.NoError(t, err)
	require.Len(t, analysis.Pairs, 1)

	assert.InDelta(t, 1.0, analysis.Spearman[0][1], 1e-9)
	assert.InDelta(t, 1.0, analysis.KendallTau[0][1], 1e-9)

	// An asset moves jointly with its copy in both tails.
	pair := analysis.Pairs[0]
	assert.Greater(t, pair.LowerTail, 0.8)
	assert.Greater(t, pair.UpperTail, 0.8)
}

func TestTailDependence_AntiMonotoneSeries(t *testing.T) {
	m := newTestModel()

	x := wave(100, 0)
	matrix := mustMatrix(t, map[string][]float64{"AAPL": x, "SHORT": negate(x)}, "AAPL", "SHORT")

	analysis, err := m.TailDependence(matrix, 0.1)
	require.NoError(t, err)

	assert.InDelta(t, -1.0, analysis.Spearman[0][1], 1e-9)
	assert.InDelta(t, -1.0, analysis.KendallTau[0][1], 1e-9)

	// Opposite movers never crash together.
	pair := analysis.Pairs[0]
	assert.Zero(t, pair.LowerTail)
	assert.Zero(t, pair.UpperTail)
}

func TestTailDependence_MatrixSymmetry(t *testing.T) {
	m := newTestModel()

	matrix := mustMatrix(t, map[string][]float64{
		"AAPL": wave(80, 0),
		"MSFT": wave(80, 1.7),
		"GOOG": wave(80, 3.1),
	}, "AAPL", "MSFT", "GOOG")

	analysis, err := m.TailDependence(matrix, 0)
	require.NoError(t, err)

	assert.Equal(t, DefaultTailThreshold, analysis.Threshold)
	assert.Len(t, analysis.Pairs, 3)
	for i := 0; i < 3; i++ {
		assert.Equal(t, 1.0, analysis.Spearman[i][i])
		assert.Equal(t, 1.0, analysis.KendallTau[i][i])
		for j := 0; j < 3; j++ {
			assert.Equal(t, analysis.Spearman[i][j], analysis.Spearman[j][i])
			assert.Equal(t, analysis.KendallTau[i][j], analysis.KendallTau[j][i])
		}
	}
}

func TestTailDependence_InvalidThreshold(t *testing.T) {
	m := newTestModel()

	matrix := mustMatrix(t, map[string][]float64{
		"AAPL": wave(60, 0),
		"MSFT": wave(60, 1.1),
	}, "AAPL", "MSFT")

	_, err := m.TailDependence(matrix, 0.5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestTailDependence_InsufficientData(t *testing.T) {
	m := newTestModel()

	matrix := mustMatrix(t, map[string][]float64{
		"AAPL": wave(10, 0),
		"MSFT": wave(10, 1.1),
	}, "AAPL", "MSFT")

	_, err := m.TailDependence(matrix, 0.1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientData))
}
