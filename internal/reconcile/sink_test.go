package reconcile

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/unicode/norm"

	"github.com/jfroche/jenkins-job-builder/internal/entity"
)

func TestStreamSink_WritesXML(t *testing.T) {
	var out []byte
	w := writerFunc(func(p []byte) (int, error) {
		out = append(out, p...)
		return len(p), nil
	})

	s := NewStreamSink(w)

	stop, err := s.Write(entity.New("a", entity.KindJob, []byte("<a/>")))
	require.NoError(t, err)
	assert.False(t, stop)
	assert.Equal(t, "<a/>", string(out))
}

func TestStreamSink_ClosedPipeIsStopNotError(t *testing.T) {
	pr, pw := io.Pipe()
	require.NoError(t, pr.Close())

	s := NewStreamSink(pw)

	stop, err := s.Write(entity.New("a", entity.KindJob, []byte("<a/>")))
	require.NoError(t, err)
	assert.True(t, stop)
}

func TestDirSink_OneFilePerEntity(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")

	s, err := NewDirSink(dir)
	require.NoError(t, err)

	stop, err := s.Write(entity.New("my-job", entity.KindJob, []byte("<project/>")))
	require.NoError(t, err)
	assert.False(t, stop)

	got, err := os.ReadFile(filepath.Join(dir, "my-job"))
	require.NoError(t, err)
	assert.Equal(t, "<project/>", string(got))
}

func TestDirSink_NormalizesFilename(t *testing.T) {
	dir := t.TempDir()

	s, err := NewDirSink(dir)
	require.NoError(t, err)

	// Decomposed "é" (e + combining acute) must land as the composed form.
	decomposed := "café"

	_, err = s.Write(entity.New(decomposed, entity.KindJob, []byte("<p/>")))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, norm.NFC.String(decomposed)))
	assert.NoError(t, err)
}

// writerFunc adapts a function to io.Writer.
type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) {
	return f(p)
}
