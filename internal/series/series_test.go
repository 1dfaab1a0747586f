package series

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/cachegov"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/field"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/timeindex"
)

func newEngine() *Engine {
	return NewEngine(field.NewCache(), timeindex.NewCache(), cachegov.New(5))
}

func writeTimeStep(t *testing.T, caseDir, name string, pVal float64, uVal [3]float64) {
	t.Helper()
	dir := filepath.Join(caseDir, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "p"),
		[]byte(fmtUniform(pVal)), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "U"),
		[]byte(fmtUniformVector(uVal)), 0o644))
}

func fmtUniform(v float64) string {
	return "internalField   uniform " + floatStr(v) + ";\nboundaryField {}\n"
}

func fmtUniformVector(v [3]float64) string {
	return "internalField uniform (" + floatStr(v[0]) + " " + floatStr(v[1]) + " " + floatStr(v[2]) + ");\nboundaryField {}\n"
}

func floatStr(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func TestSnapshotEmptyCaseReturnsEmptyFields(t *testing.T) {
	e := newEngine()
	caseDir := t.TempDir()
	snap, err := e.Snapshot(caseDir, 100)
	require.NoError(t, err)
	assert.Empty(t, snap.Time)
	assert.Empty(t, snap.Fields)
}

func TestSnapshotSingleVolatileStep(t *testing.T) {
	e := newEngine()
	caseDir := t.TempDir()
	writeTimeStep(t, caseDir, "0", 1.0, [3]float64{1, 0, 0})

	snap, err := e.Snapshot(caseDir, 100)
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, snap.Time)
	assert.Equal(t, []float64{1.0}, snap.Fields["p"])
	assert.Equal(t, []float64{1.0}, snap.Fields["Ux"])
	assert.Equal(t, []float64{1.0}, snap.Fields["U_mag"])
}

func TestSnapshotPromotesOlderStepsToStableHistory(t *testing.T) {
	e := newEngine()
	caseDir := t.TempDir()
	writeTimeStep(t, caseDir, "0", 1.0, [3]float64{0, 0, 0})

	snap1, err := e.Snapshot(caseDir, 100)
	require.NoError(t, err)
	assert.Len(t, snap1.Time, 1)

	time.Sleep(5 * time.Millisecond)
	writeTimeStep(t, caseDir, "1", 2.0, [3]float64{0, 0, 0})
	bumpMtime(t, filepath.Join(caseDir, "0"))

	snap2, err := e.Snapshot(caseDir, 100)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, snap2.Time)
	assert.Equal(t, []float64{1.0, 2.0}, snap2.Fields["p"])
}

func TestSnapshotMaxPointsBoundsStableWindow(t *testing.T) {
	e := newEngine()
	caseDir := t.TempDir()
	for i := 0; i < 4; i++ {
		writeTimeStep(t, caseDir, strconv.Itoa(i), float64(i), [3]float64{0, 0, 0})
		time.Sleep(2 * time.Millisecond)
	}
	// One more step keeps the first four stable and the fifth volatile.
	writeTimeStep(t, caseDir, "4", 4.0, [3]float64{0, 0, 0})

	snap, err := e.Snapshot(caseDir, 2)
	require.NoError(t, err)
	// Two stable points (bounded) plus the one volatile point.
	assert.Len(t, snap.Time, 3)
	assert.Equal(t, []float64{2, 3, 4}, snap.Time)
	assert.Equal(t, []float64{2, 3, 4}, snap.Fields["p"])
}

func TestSnapshotNewFieldMidRunIsBackfilledWithZeros(t *testing.T) {
	e := newEngine()
	caseDir := t.TempDir()
	writeTimeStep(t, caseDir, "0", 1.0, [3]float64{0, 0, 0})
	_, err := e.Snapshot(caseDir, 100)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	dir1 := filepath.Join(caseDir, "1")
	require.NoError(t, os.MkdirAll(dir1, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir1, "p"), []byte(fmtUniform(2.0)), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir1, "U"), []byte(fmtUniformVector([3]float64{0, 0, 0})), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir1, "T"), []byte(fmtUniform(300.0)), 0o644))
	bumpMtime(t, filepath.Join(caseDir, "0"))

	writeTimeStep(t, caseDir, "2", 3.0, [3]float64{0, 0, 0})

	snap, err := e.Snapshot(caseDir, 100)
	require.NoError(t, err)
	require.Len(t, snap.Time, 3)
	assert.Equal(t, []float64{0, 300, 0}, snap.Fields["T"])
}

func TestSnapshotRestartTruncatesDivergedHistory(t *testing.T) {
	e := newEngine()
	caseDir := t.TempDir()
	writeTimeStep(t, caseDir, "0", 1.0, [3]float64{0, 0, 0})
	time.Sleep(5 * time.Millisecond)
	writeTimeStep(t, caseDir, "1", 2.0, [3]float64{0, 0, 0})
	_, err := e.Snapshot(caseDir, 100)
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(filepath.Join(caseDir, "1")))
	time.Sleep(5 * time.Millisecond)
	writeTimeStep(t, caseDir, "0.5", 1.5, [3]float64{0, 0, 0})
	bumpMtime(t, filepath.Join(caseDir, "0"))

	snap, err := e.Snapshot(caseDir, 100)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.5}, snap.Time)
}

func TestAvailableFieldsListsKnownAndDetectedFields(t *testing.T) {
	e := newEngine()
	caseDir := t.TempDir()
	writeTimeStep(t, caseDir, "0", 1.0, [3]float64{0, 0, 0})
	dir0 := filepath.Join(caseDir, "0")
	require.NoError(t, os.WriteFile(filepath.Join(dir0, "alphat"),
		[]byte("FoamFile\n{\n class volScalarField;\n}\ninternalField uniform 0.01;\nboundaryField {}\n"), 0o644))

	names, err := e.AvailableFields(caseDir)
	require.NoError(t, err)
	assert.Contains(t, names, "p")
	assert.Contains(t, names, "U")
	assert.Contains(t, names, "alphat")
}

func TestPressureCoefficient(t *testing.T) {
	cp := PressureCoefficient(101825, 101325, 1.225, 10)
	assert.InDelta(t, 8.163265, cp, 1e-5)
}

func TestPressureCoefficientZeroDynamicPressureIsZero(t *testing.T) {
	assert.Equal(t, 0.0, PressureCoefficient(100, 100, 0, 0))
}

func bumpMtime(t *testing.T, path string) {
	t.Helper()
	now := time.Now().Add(time.Second)
	require.NoError(t, os.Chtimes(path, now, now))
}
