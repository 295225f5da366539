package reconcile

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jfroche/jenkins-job-builder/internal/cache"
	"github.com/jfroche/jenkins-job-builder/internal/entity"
)

// fakeRemote is an in-memory Remote that records every mutation.
type fakeRemote struct {
	jobs    map[string][]byte
	views   map[string][]byte
	managed map[string]bool

	upserts    []string
	deletes    []string
	listCalls  int
	probeCalls int

	failUpsert error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		jobs:    make(map[string][]byte),
		views:   make(map[string][]byte),
		managed: make(map[string]bool),
	}
}

func (f *fakeRemote) store(kind entity.Kind) map[string][]byte {
	if kind == entity.KindView {
		return f.views
	}

	return f.jobs
}

func (f *fakeRemote) ListJobs(_ context.Context, _ bool) ([]string, error) {
	f.listCalls++

	names := make([]string, 0, len(f.jobs))
	for n := range f.jobs {
		names = append(names, n)
	}

	return names, nil
}

func (f *fakeRemote) ListViews(_ context.Context, _ bool) ([]string, error) {
	names := make([]string, 0, len(f.views))
	for n := range f.views {
		names = append(names, n)
	}

	return names, nil
}

func (f *fakeRemote) Exists(_ context.Context, name string, kind entity.Kind) (bool, error) {
	f.probeCalls++
	_, ok := f.store(kind)[name]

	return ok, nil
}

func (f *fakeRemote) ContentHash(_ context.Context, name string, kind entity.Kind) (digest.Digest, error) {
	xml, ok := f.store(kind)[name]
	if !ok {
		return "", errors.New("not found")
	}

	return digest.FromBytes(xml), nil
}

func (f *fakeRemote) Upsert(_ context.Context, name string, kind entity.Kind, xml []byte) error {
	if f.failUpsert != nil {
		return f.failUpsert
	}

	f.upserts = append(f.upserts, kind.String()+":"+name)
	f.store(kind)[name] = xml

	return nil
}

func (f *fakeRemote) Delete(_ context.Context, name string, kind entity.Kind) error {
	f.deletes = append(f.deletes, kind.String()+":"+name)
	delete(f.store(kind), name)

	return nil
}

func (f *fakeRemote) IsManaged(_ context.Context, name string, _ entity.Kind) bool {
	return f.managed[name]
}

func testCache(t *testing.T) *cache.Cache {
	t.Helper()
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	c, err := cache.Open("https://ci.example.com", false, nil)
	require.NoError(t, err)

	return c
}

func desiredSet(entities ...entity.Entity) *entity.Set {
	var s entity.Set
	for _, e := range entities {
		s.Add(e)
	}

	return &s
}

func TestReconcile_CreatesAbsentEntities(t *testing.T) {
	remote := newFakeRemote()
	c := testCache(t)
	r := New(remote, c, nil)

	set := desiredSet(
		entity.New("job-a", entity.KindJob, []byte("<a/>")),
		entity.New("view-a", entity.KindView, []byte("<va/>")),
	)

	sum, err := r.Reconcile(context.Background(), set, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Jobs.Created)
	assert.Equal(t, 1, sum.Views.Created)
	assert.Equal(t, []string{"job:job-a", "view:view-a"}, remote.upserts)
}

func TestReconcile_SecondRunIsIdempotent(t *testing.T) {
	remote := newFakeRemote()
	c := testCache(t)
	r := New(remote, c, nil)

	set := desiredSet(
		entity.New("job-a", entity.KindJob, []byte("<a/>")),
		entity.New("job-b", entity.KindJob, []byte("<b/>")),
	)

	_, err := r.Reconcile(context.Background(), set, Options{})
	require.NoError(t, err)
	require.Len(t, remote.upserts, 2)

	sum, err := r.Reconcile(context.Background(), set, Options{})
	require.NoError(t, err)

	// No changes anywhere: zero upserts on the second run.
	assert.Len(t, remote.upserts, 2)
	assert.Equal(t, 2, sum.Jobs.Skipped)
	assert.Equal(t, 0, sum.Jobs.Created+sum.Jobs.Updated)
}

func TestReconcile_ChangedContentIsUploaded(t *testing.T) {
	remote := newFakeRemote()
	c := testCache(t)
	r := New(remote, c, nil)

	_, err := r.Reconcile(context.Background(),
		desiredSet(entity.New("job-a", entity.KindJob, []byte("<v1/>"))), Options{})
	require.NoError(t, err)

	sum, err := r.Reconcile(context.Background(),
		desiredSet(entity.New("job-a", entity.KindJob, []byte("<v2/>"))), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Jobs.Updated)
	assert.Equal(t, []byte("<v2/>"), remote.jobs["job-a"])
}

func TestReconcile_ForceUploadsUnchanged(t *testing.T) {
	remote := newFakeRemote()
	c := testCache(t)
	r := New(remote, c, nil)

	set := desiredSet(entity.New("job-a", entity.KindJob, []byte("<a/>")))

	_, err := r.Reconcile(context.Background(), set, Options{})
	require.NoError(t, err)

	sum, err := r.Reconcile(context.Background(), set, Options{Force: true})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Jobs.Updated)
	assert.Len(t, remote.upserts, 2)
}

func TestReconcile_CacheMissSeedsFromRemote(t *testing.T) {
	remote := newFakeRemote()
	// The job already exists remotely with identical content, but this
	// machine has no cache record (fresh checkout, new workstation).
	remote.jobs["job-a"] = []byte("<a/>")

	c := testCache(t)
	r := New(remote, c, nil)

	sum, err := r.Reconcile(context.Background(),
		desiredSet(entity.New("job-a", entity.KindJob, []byte("<a/>"))), Options{})
	require.NoError(t, err)

	// Remote content matches: seeding from the live server avoids the upload.
	assert.Equal(t, 1, sum.Jobs.Skipped)
	assert.Empty(t, remote.upserts)
}

func TestReconcile_UpsertFailureAborts(t *testing.T) {
	remote := newFakeRemote()
	remote.failUpsert = errors.New("boom")

	c := testCache(t)
	r := New(remote, c, nil)

	set := desiredSet(
		entity.New("job-a", entity.KindJob, []byte("<a/>")),
		entity.New("job-b", entity.KindJob, []byte("<b/>")),
	)

	_, err := r.Reconcile(context.Background(), set, Options{})
	require.Error(t, err)
	assert.ErrorContains(t, err, "job-a")
}

func TestReconcile_SinkModeIsSortedAndOffline(t *testing.T) {
	remote := newFakeRemote()
	r := New(remote, nil, nil)

	var buf bytes.Buffer

	set := desiredSet(
		entity.New("b", entity.KindJob, []byte("<b/>\n")),
		entity.New("a", entity.KindJob, []byte("<a/>\n")),
	)

	sum, err := r.Reconcile(context.Background(), set, Options{Sink: NewStreamSink(&buf)})
	require.NoError(t, err)

	assert.Equal(t, "<a/>\n<b/>\n", buf.String())
	assert.Equal(t, 2, sum.Rendered)

	// Pure render: zero remote calls of any sort.
	assert.Zero(t, remote.probeCalls)
	assert.Zero(t, remote.listCalls)
	assert.Empty(t, remote.upserts)
}

// stopAfterSink simulates a consumer that goes away after n writes.
type stopAfterSink struct {
	n       int
	written []string
}

func (s *stopAfterSink) Write(e entity.Entity) (bool, error) {
	if len(s.written) >= s.n {
		return true, nil
	}

	s.written = append(s.written, e.Name)

	return false, nil
}

func TestReconcile_SinkStopEndsCleanly(t *testing.T) {
	r := New(newFakeRemote(), nil, nil)

	set := desiredSet(
		entity.New("a", entity.KindJob, []byte("<a/>")),
		entity.New("b", entity.KindJob, []byte("<b/>")),
		entity.New("c", entity.KindJob, []byte("<c/>")),
	)

	sink := &stopAfterSink{n: 1}

	sum, err := r.Reconcile(context.Background(), set, Options{Sink: sink})
	require.NoError(t, err)

	assert.True(t, sum.StoppedEarly)
	assert.Equal(t, []string{"a"}, sink.written)
}

func TestDeleteObsolete_OnlyManagedNonKept(t *testing.T) {
	remote := newFakeRemote()
	remote.jobs["keep-me"] = []byte("<k/>")
	remote.jobs["old-job"] = []byte("<o/>")
	remote.jobs["other"] = []byte("<u/>")
	remote.managed["keep-me"] = true
	remote.managed["old-job"] = true
	// "other" is unmanaged: someone else's job, never deleted.

	c := testCache(t)
	r := New(remote, c, nil)

	deleted, err := r.DeleteObsolete(context.Background(),
		map[string]bool{"keep-me": true}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, deleted)
	assert.Equal(t, []string{"job:old-job"}, remote.deletes)
}

func TestDeleteObsolete_SweepsViewsToo(t *testing.T) {
	remote := newFakeRemote()
	remote.views["stale-view"] = []byte("<v/>")
	remote.managed["stale-view"] = true

	c := testCache(t)
	r := New(remote, c, nil)

	deleted, err := r.DeleteObsolete(context.Background(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, deleted)
	assert.Equal(t, []string{"view:stale-view"}, remote.deletes)
}

func TestDeleteEntity_InvalidatesCacheRecord(t *testing.T) {
	remote := newFakeRemote()
	remote.jobs["job-a"] = []byte("<a/>")

	c := testCache(t)
	c.Set("job-a", "sha256:old")

	r := New(remote, c, nil)

	require.NoError(t, r.DeleteEntity(context.Background(), "job-a", entity.KindJob))

	// Record kept but emptied: a reappearing name must re-upload.
	assert.True(t, c.IsCached("job-a"))
	assert.True(t, c.HasChanged("job-a", "sha256:old"))
}

func TestDeleteEntity_UncachedNameLeavesCacheAlone(t *testing.T) {
	remote := newFakeRemote()
	remote.jobs["job-a"] = []byte("<a/>")

	c := testCache(t)
	r := New(remote, c, nil)

	require.NoError(t, r.DeleteEntity(context.Background(), "job-a", entity.KindJob))
	assert.False(t, c.IsCached("job-a"))
}

func TestDeleteAll(t *testing.T) {
	remote := newFakeRemote()
	remote.jobs["a"] = []byte("<a/>")
	remote.jobs["b"] = []byte("<b/>")
	remote.views["v"] = []byte("<v/>")

	c := testCache(t)
	r := New(remote, c, nil)

	nJobs, err := r.DeleteAll(context.Background(), entity.KindJob)
	require.NoError(t, err)
	assert.Equal(t, 2, nJobs)
	assert.Empty(t, remote.jobs)

	nViews, err := r.DeleteAll(context.Background(), entity.KindView)
	require.NoError(t, err)
	assert.Equal(t, 1, nViews)
	assert.Empty(t, remote.views)
}
