package jenkins

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"syscall"

	"github.com/opencontainers/go-digest"

	"github.com/jfroche/jenkins-job-builder/internal/entity"
)

// pluginInventoryPath returns the full plugin inventory including versions.
const pluginInventoryPath = "/pluginManager/api/json?depth=1"

// PluginInfo describes one installed Jenkins plugin. Renderers consult the
// inventory to pin plugin versions in generated XML.
type PluginInfo struct {
	ShortName string `json:"shortName"`
	LongName  string `json:"longName"`
	Version   string `json:"version"`
}

// listing is one memoized remote job/view listing. A nil *listing means
// "not fetched yet"; once populated it is frozen for the session until a
// caller forces a re-fetch.
type listing struct {
	names []string
	set   map[string]bool
}

func newListing(names []string) *listing {
	l := &listing{
		names: names,
		set:   make(map[string]bool, len(names)),
	}

	for _, n := range names {
		l.set[n] = true
	}

	return l
}

// Server is the remote state facade for one Jenkins server: lazily cached
// job/view listings, existence checks, content fingerprints, and the
// create/reconfigure/delete mutations. Not safe for concurrent use; the
// reconciler issues at most one call at a time.
type Server struct {
	client *Client
	logger *slog.Logger

	jobs  *listing
	views *listing
}

// NewServer wraps a Client in the facade.
func NewServer(client *Client, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		client: client,
		logger: logger,
	}
}

// URL returns the server root.
func (s *Server) URL() string {
	return s.client.BaseURL()
}

// namedItems mirrors the {"jobs":[{"name":...}]} / {"views":[...]} listing
// responses.
type namedItems struct {
	Jobs  []namedItem `json:"jobs"`
	Views []namedItem `json:"views"`
}

type namedItem struct {
	Name string `json:"name"`
}

// ListJobs returns the names of all jobs on the server. The first call per
// session fetches and memoizes; useCache=false forces a re-fetch and
// replaces the memoized listing. Mutations made through this facade do NOT
// update the memoized listing.
func (s *Server) ListJobs(ctx context.Context, useCache bool) ([]string, error) {
	if !useCache {
		s.jobs = nil
	}

	if s.jobs == nil {
		names, err := s.fetchListing(ctx, "/api/json?tree=jobs[name]", entity.KindJob)
		if err != nil {
			return nil, err
		}

		s.jobs = newListing(names)
	}

	return s.jobs.names, nil
}

// ListViews returns the names of all views on the server, with the same
// memoization contract as ListJobs.
func (s *Server) ListViews(ctx context.Context, useCache bool) ([]string, error) {
	if !useCache {
		s.views = nil
	}

	if s.views == nil {
		names, err := s.fetchListing(ctx, "/api/json?tree=views[name]", entity.KindView)
		if err != nil {
			return nil, err
		}

		s.views = newListing(names)
	}

	return s.views.names, nil
}

func (s *Server) fetchListing(ctx context.Context, path string, kind entity.Kind) ([]string, error) {
	body, err := s.client.GetBody(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("listing %ss: %w", kind, err)
	}

	var items namedItems
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("jenkins: decoding %s listing: %w", kind, err)
	}

	source := items.Jobs
	if kind == entity.KindView {
		source = items.Views
	}

	names := make([]string, 0, len(source))
	for _, it := range source {
		names = append(names, it.Name)
	}

	s.logger.Debug("fetched remote listing",
		slog.String("kind", kind.String()),
		slog.Int("count", len(names)),
	)

	return names, nil
}

// configPath returns the config.xml endpoint for one entity.
func configPath(name string, kind entity.Kind) string {
	return "/" + kind.String() + "/" + url.PathEscape(name) + "/config.xml"
}

// Exists reports whether the named entity exists on the server. The memoized
// listing answers positively; a negative answer falls back to a direct probe
// because the listing may be stale (an entity created by another session
// after this session's first fetch).
func (s *Server) Exists(ctx context.Context, name string, kind entity.Kind) (bool, error) {
	l, err := s.listingFor(ctx, kind)
	if err != nil {
		return false, err
	}

	if l.set[name] {
		return true, nil
	}

	resp, err := s.client.Get(ctx, configPath(name, kind))
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}

		return false, err
	}
	resp.Body.Close()

	return true, nil
}

func (s *Server) listingFor(ctx context.Context, kind entity.Kind) (*listing, error) {
	if kind == entity.KindView {
		if _, err := s.ListViews(ctx, true); err != nil {
			return nil, err
		}

		return s.views, nil
	}

	if _, err := s.ListJobs(ctx, true); err != nil {
		return nil, err
	}

	return s.jobs, nil
}

// Config fetches the entity's live config.xml from the server.
func (s *Server) Config(ctx context.Context, name string, kind entity.Kind) ([]byte, error) {
	return s.client.GetBody(ctx, configPath(name, kind))
}

// ContentHash fetches the entity's live XML and returns its content digest,
// computed with the same algorithm the compiler uses. Reconciliation seeds
// its local cache from this when a server was modified out-of-band.
func (s *Server) ContentHash(ctx context.Context, name string, kind entity.Kind) (digest.Digest, error) {
	body, err := s.Config(ctx, name, kind)
	if err != nil {
		return "", err
	}

	return digest.FromBytes(body), nil
}

// Upsert creates the entity if absent, reconfigures it otherwise. The
// memoized listing is NOT refreshed afterwards: within a session the listing
// stays frozen unless a caller forces a re-fetch.
func (s *Server) Upsert(ctx context.Context, name string, kind entity.Kind, xmlDoc []byte) error {
	exists, err := s.Exists(ctx, name, kind)
	if err != nil {
		return err
	}

	if exists {
		s.logger.Info("reconfiguring", slog.String("kind", kind.String()), slog.String("name", name))
		return s.client.Post(ctx, configPath(name, kind), "application/xml", xmlDoc)
	}

	s.logger.Info("creating", slog.String("kind", kind.String()), slog.String("name", name))

	createPath := "/createItem?name=" + url.QueryEscape(name)
	if kind == entity.KindView {
		createPath = "/createView?name=" + url.QueryEscape(name)
	}

	return s.client.Post(ctx, createPath, "application/xml", xmlDoc)
}

// Delete removes the entity if it exists; deleting an absent entity is a
// no-op, not an error.
func (s *Server) Delete(ctx context.Context, name string, kind entity.Kind) error {
	exists, err := s.Exists(ctx, name, kind)
	if err != nil {
		return err
	}

	if !exists {
		return nil
	}

	s.logger.Info("deleting", slog.String("kind", kind.String()), slog.String("name", name))

	return s.client.Post(ctx, "/"+kind.String()+"/"+url.PathEscape(name)+"/doDelete", "", nil)
}

// IsManaged fetches the entity's live XML and reports whether its
// description ends with the managed marker. Every failure mode — fetch
// error, malformed XML, missing description — answers false: "not managed"
// is the safe default when the answer gates a destructive delete.
//
// Each call re-fetches; the latest remote state is always consulted before
// a delete decision, never a stale copy.
func (s *Server) IsManaged(ctx context.Context, name string, kind entity.Kind) bool {
	body, err := s.Config(ctx, name, kind)
	if err != nil {
		s.logger.Debug("managed check: config fetch failed",
			slog.String("name", name), slog.String("error", err.Error()))

		return false
	}

	description, ok := extractDescription(body)
	if !ok {
		return false
	}

	return entity.HasMarker(description)
}

// extractDescription returns the text of the first <description> element in
// the document. Malformed XML yields ok=false.
func extractDescription(doc []byte) (string, bool) {
	dec := xml.NewDecoder(bytes.NewReader(doc))

	for {
		tok, err := dec.Token()
		if err != nil {
			return "", false
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "description" {
			continue
		}

		var text string
		if err := dec.DecodeElement(&text, &start); err != nil {
			return "", false
		}

		return text, true
	}
}

// Plugins returns the server's plugin inventory. A connection-refused-class
// failure degrades to a single synthetic placeholder entry instead of
// failing the session: plugin versions only tune generated XML, and a
// reachable-later server should not block offline-ish runs. Other failures
// propagate.
func (s *Server) Plugins(ctx context.Context) ([]PluginInfo, error) {
	body, err := s.client.GetBody(ctx, pluginInventoryPath)
	if err != nil {
		if isConnRefused(err) {
			s.logger.Warn("unable to retrieve plugin info, using empty placeholder",
				slog.String("url", s.client.BaseURL()),
				slog.String("error", err.Error()),
			)

			return []PluginInfo{{}}, nil
		}

		return nil, err
	}

	var inventory struct {
		Plugins []PluginInfo `json:"plugins"`
	}

	if err := json.Unmarshal(body, &inventory); err != nil {
		return nil, fmt.Errorf("jenkins: decoding plugin inventory: %w", err)
	}

	s.logger.Debug("fetched plugin inventory", slog.Int("count", len(inventory.Plugins)))

	return inventory.Plugins, nil
}

// PluginVersions flattens an inventory into a short-name -> version map for
// the compiler.
func PluginVersions(plugins []PluginInfo) map[string]string {
	out := make(map[string]string, len(plugins))
	for _, p := range plugins {
		if p.ShortName != "" {
			out[p.ShortName] = p.Version
		}
	}

	return out
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// isConnRefused walks the wrapped error chain looking for a refused TCP
// connection (server down or unreachable port).
func isConnRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}
