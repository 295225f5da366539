package main

import (
	"log/slog"

	"github.com/jfroche/jenkins-job-builder/internal/cache"
	"github.com/jfroche/jenkins-job-builder/internal/config"
	"github.com/jfroche/jenkins-job-builder/internal/jenkins"
	"github.com/jfroche/jenkins-job-builder/internal/reconcile"
)

// ServerSession bundles everything a remote command needs for one server:
// the facade, the fingerprint cache, and a reconciler wired to both. Close
// must run on every exit path so the cache survives aborted runs.
type ServerSession struct {
	Server     *jenkins.Server
	Cache      *cache.Cache
	Reconciler *reconcile.Reconciler
	logger     *slog.Logger
}

// newServerSession opens the per-server cache and builds the remote facade
// from resolved config. flushCache discards prior cache records.
func newServerSession(resolved *config.Resolved, flushCache bool, logger *slog.Logger) (*ServerSession, error) {
	fc, err := cache.Open(resolved.URL, flushCache, logger)
	if err != nil {
		return nil, err
	}

	client := jenkins.NewClient(resolved.URL, resolved.User, resolved.Token, defaultHTTPClient(), logger)
	server := jenkins.NewServer(client, logger)

	return &ServerSession{
		Server:     server,
		Cache:      fc,
		Reconciler: reconcile.New(server, fc, logger),
		logger:     logger,
	}, nil
}

// Close persists the fingerprint cache. Best-effort: failures are logged
// inside Save, never returned, so deferred teardown cannot mask the
// command's real error.
func (s *ServerSession) Close() {
	s.Cache.Save()
}
