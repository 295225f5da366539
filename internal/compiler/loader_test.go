package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jfroche/jenkins-job-builder/internal/entity"
)

func TestLoadFiles_SingleFile(t *testing.T) {
	path := writeDefs(t, "defs.yml", `
- job:
    name: job-a
- view:
    name: view-a
`)

	defs, err := LoadFiles([]string{path}, nil)
	require.NoError(t, err)
	require.Len(t, defs, 2)

	assert.Equal(t, entity.KindJob, defs[0].Kind)
	assert.Equal(t, "job-a", defs[0].Name)
	assert.Equal(t, entity.KindView, defs[1].Kind)
	assert.Equal(t, "view-a", defs[1].Name)
	assert.Equal(t, path, defs[0].File)
}

func TestLoadFiles_DirectoryExpandsYamlMembersSorted(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), []byte("- job:\n    name: from-b\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("- job:\n    name: from-a\n"), 0o644))
	// Non-YAML members are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("docs"), 0o644))

	defs, err := LoadFiles([]string{dir}, nil)
	require.NoError(t, err)
	require.Len(t, defs, 2)

	assert.Equal(t, "from-a", defs[0].Name)
	assert.Equal(t, "from-b", defs[1].Name)
}

func TestLoadFiles_SymlinkDuplicateSkipped(t *testing.T) {
	dir := t.TempDir()
	real := filepath.Join(dir, "defs.yml")
	link := filepath.Join(dir, "alias.yml")

	require.NoError(t, os.WriteFile(real, []byte("- job:\n    name: once\n"), 0o644))
	require.NoError(t, os.Symlink(real, link))

	defs, err := LoadFiles([]string{real, link}, nil)
	require.NoError(t, err)

	// The aliased file is parsed exactly once.
	require.Len(t, defs, 1)
	assert.Equal(t, "once", defs[0].Name)
}

func TestLoadFiles_MissingPathIsError(t *testing.T) {
	_, err := LoadFiles([]string{filepath.Join(t.TempDir(), "absent.yml")}, nil)
	assert.Error(t, err)
}

func TestLoadFiles_UnknownKindIsError(t *testing.T) {
	path := writeDefs(t, "defs.yml", "- gadget:\n    name: x\n")

	_, err := LoadFiles([]string{path}, nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "gadget")
}

func TestLoadFiles_MissingNameIsError(t *testing.T) {
	path := writeDefs(t, "defs.yml", "- job:\n    disabled: true\n")

	_, err := LoadFiles([]string{path}, nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "missing a name")
}

func TestLoadFiles_MalformedYAMLIsError(t *testing.T) {
	path := writeDefs(t, "defs.yml", "{not: [valid")

	_, err := LoadFiles([]string{path}, nil)
	assert.Error(t, err)
}
