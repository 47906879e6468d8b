package workout

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodWorkoutJSON = `{
	"name": "easy run",
	"description": "recovery day",
	"steps": [
		{"type": "run", "name": "jog", "duration": "20:00", "pace": {"unit": "kph", "value": "9"}, "angle": 0}
	]
}`

func writeWorkoutFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := writeWorkoutFile(t, dir, "easy.json", goodWorkoutJSON)

	plan, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "easy run", plan.Name)
	assert.Equal(t, uint16(1200), plan.Duration)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	var fileErr *FileError
	require.ErrorAs(t, err, &fileErr)
	assert.True(t, os.IsNotExist(fileErr.Err))
}

func TestLoadFile_BadJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeWorkoutFile(t, dir, "bad.json", "{not json")

	_, err := LoadFile(path)
	var fileErr *FileError
	require.ErrorAs(t, err, &fileErr)
	assert.Equal(t, path, fileErr.Path)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeWorkoutFile(t, dir, "b_easy.json", goodWorkoutJSON)
	writeWorkoutFile(t, dir, "a_broken.json", `{"name": "x", "steps": [{"type": "swim"}]}`)
	writeWorkoutFile(t, dir, "notes.txt", "not a workout")

	plans, fileErrs, err := LoadDir(dir)
	require.NoError(t, err)

	require.Len(t, plans, 1)
	assert.Equal(t, "easy run", plans[0].Name)

	require.Len(t, fileErrs, 1)
	assert.Equal(t, filepath.Join(dir, "a_broken.json"), fileErrs[0].Path)
}

func TestLoadDir_SortedByName(t *testing.T) {
	dir := t.TempDir()
	writeWorkoutFile(t, dir, "z.json", `{"name": "last", "steps": []}`)
	writeWorkoutFile(t, dir, "a.json", `{"name": "first", "steps": []}`)

	plans, fileErrs, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, fileErrs)
	require.Len(t, plans, 2)
	assert.Equal(t, "first", plans[0].Name)
	assert.Equal(t, "last", plans[1].Name)
}

func TestLoadDir_MissingDir(t *testing.T) {
	_, _, err := LoadDir(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}
