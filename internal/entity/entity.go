// Package entity defines the job/view model shared by the compiler, the
// remote facade, and the reconciler: entity kinds, compiled entities with
// content digests, and the managed-entity marker protocol.
package entity

import (
	"sort"
	"strings"

	"github.com/opencontainers/go-digest"
)

// Kind identifies which of the two manageable Jenkins object types an
// entity is.
type Kind int

const (
	KindJob Kind = iota
	KindView
)

// String returns the Jenkins URL path segment for the kind ("job"/"view").
func (k Kind) String() string {
	if k == KindView {
		return "view"
	}

	return "job"
}

// Label returns the capitalized human-readable name for the kind.
func (k Kind) Label() string {
	if k == KindView {
		return "View"
	}

	return "Job"
}

// ManagedMarker is appended to every generated entity's description. Its
// presence (as an exact suffix of the description) marks the entity as owned
// by this tool and eligible for automatic deletion when no longer desired.
const ManagedMarker = "<!-- Managed by Jenkins Job Builder -->"

// HasMarker reports whether a description text carries the managed marker.
// The match is an exact suffix match on the full text: trailing garbage after
// the marker means the entity is NOT managed, so unrelated descriptions that
// merely mention the marker never become delete candidates.
func HasMarker(description string) bool {
	return strings.HasSuffix(description, ManagedMarker)
}

// Entity is one compiled job or view: a stable name, the fully rendered XML
// document, and a content digest of exactly those XML bytes. Entities are
// immutable once handed to the reconciler.
type Entity struct {
	Name   string
	Kind   Kind
	XML    []byte
	Digest digest.Digest
}

// New builds an Entity, computing the canonical digest over the XML bytes.
// The same document always yields the same digest across runs.
func New(name string, kind Kind, xml []byte) Entity {
	return Entity{
		Name:   name,
		Kind:   kind,
		XML:    xml,
		Digest: digest.FromBytes(xml),
	}
}

// Set is the compiled desired state for one reconciliation session: jobs and
// views, each kept name-sorted so processing order is deterministic.
type Set struct {
	Jobs  []Entity
	Views []Entity
}

// Add appends an entity to the appropriate slice. Call Sort before iterating.
func (s *Set) Add(e Entity) {
	if e.Kind == KindView {
		s.Views = append(s.Views, e)
		return
	}

	s.Jobs = append(s.Jobs, e)
}

// Sort orders both slices by entity name.
func (s *Set) Sort() {
	sort.Slice(s.Jobs, func(i, j int) bool { return s.Jobs[i].Name < s.Jobs[j].Name })
	sort.Slice(s.Views, func(i, j int) bool { return s.Views[i].Name < s.Views[j].Name })
}

// JobNames returns the set of desired job names.
func (s *Set) JobNames() map[string]bool {
	return names(s.Jobs)
}

// ViewNames returns the set of desired view names.
func (s *Set) ViewNames() map[string]bool {
	return names(s.Views)
}

func names(entities []Entity) map[string]bool {
	out := make(map[string]bool, len(entities))
	for _, e := range entities {
		out[e.Name] = true
	}

	return out
}
