package logparser

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLog(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestIncrementalResidualGrowth(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "log.foamRun")
	writeLog(t, logPath, "Time = 1\nSolving for Ux, Initial residual = 0.1\n")

	c := NewCache()
	r1, err := c.Residuals(logPath)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.0}, r1.Time)
	assert.Equal(t, []float64{0.1}, r1.Fields["Ux"])

	preAppendSize, err := fileSize(logPath)
	require.NoError(t, err)

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("Time = 2\nSolving for Ux, Initial residual = 0.05\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	bumpMtime(t, logPath)

	r2, err := c.Residuals(logPath)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.0, 2.0}, r2.Time)
	assert.Equal(t, []float64{0.1, 0.05}, r2.Fields["Ux"])

	c.mu.Lock()
	offset := c.states[logPath].offset
	c.mu.Unlock()
	assert.True(t, offset >= preAppendSize)
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// bumpMtime forces the mtime forward in case the filesystem's mtime
// resolution did not naturally advance between writes within the test.
func bumpMtime(t *testing.T, path string) {
	t.Helper()
	now := time.Now().Add(time.Second)
	require.NoError(t, os.Chtimes(path, now, now))
}

func TestBackfillsNewFieldWithZeros(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "log.foamRun")
	writeLog(t, logPath,
		"Time = 1\nSolving for Ux, Initial residual = 0.1\n"+
			"Time = 2\nSolving for Ux, Initial residual = 0.05\nSolving for p, Initial residual = 0.2\n")

	c := NewCache()
	r, err := c.Residuals(logPath)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.0, 2.0}, r.Time)
	assert.Equal(t, []float64{0.1, 0.05}, r.Fields["Ux"])
	assert.Equal(t, []float64{0, 0.2}, r.Fields["p"])
}

func TestTimeStepExecutionTimeDoesNotAdvanceTime(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "log.foamRun")
	writeLog(t, logPath, "Time step execution time = 0.01\nTime = 1\n")

	c := NewCache()
	r, err := c.Residuals(logPath)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.0}, r.Time)
}

func TestTimeLineWithUnitSuffixParses(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "log.foamRun")
	writeLog(t, logPath, "Time = 24s\n")

	c := NewCache()
	r, err := c.Residuals(logPath)
	require.NoError(t, err)
	assert.Equal(t, []float64{24.0}, r.Time)
}

func TestTruncationRestartsFromScratch(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "log.foamRun")
	writeLog(t, logPath, "Time = 1\nSolving for Ux, Initial residual = 0.1\nTime = 2\nSolving for Ux, Initial residual = 0.05\n")

	c := NewCache()
	_, err := c.Residuals(logPath)
	require.NoError(t, err)

	writeLog(t, logPath, "Time = 9\nSolving for Ux, Initial residual = 0.9\n")
	bumpMtime(t, logPath)

	r, err := c.Residuals(logPath)
	require.NoError(t, err)
	assert.Equal(t, []float64{9.0}, r.Time)
	assert.Equal(t, []float64{0.9}, r.Fields["Ux"])
}

func TestUnchangedReturnsEqualSuccessiveResults(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "log.foamRun")
	writeLog(t, logPath, "Time = 1\nSolving for Ux, Initial residual = 0.1\n")

	c := NewCache()
	r1, err := c.Residuals(logPath)
	require.NoError(t, err)
	r2, err := c.Residuals(logPath)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}

func TestMissingLogReturnsEmptyResiduals(t *testing.T) {
	dir := t.TempDir()
	c := NewCache()
	r, err := c.Residuals(filepath.Join(dir, "log.foamRun"))
	require.NoError(t, err)
	assert.Empty(t, r.Time)
}

func TestMalformedLineIsSkippedWithoutLosingState(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "log.foamRun")
	writeLog(t, logPath, "Time = 1\nSolving for , Initial residual = oops\nSolving for Ux, Initial residual = 0.1\n")

	c := NewCache()
	r, err := c.Residuals(logPath)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.0}, r.Time)
	assert.Equal(t, []float64{0.1}, r.Fields["Ux"])
}

func TestTrailingPartialLineNotConsumed(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "log.foamRun")
	// No trailing newline on the second line.
	writeLog(t, logPath, "Time = 1\nSolving for Ux, Initial resid")

	c := NewCache()
	r, err := c.Residuals(logPath)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.0}, r.Time)
	assert.Empty(t, r.Fields)

	c.mu.Lock()
	offset := c.states[logPath].offset
	c.mu.Unlock()
	assert.Equal(t, int64(len("Time = 1\n")), offset)
}
