package compiler

import (
	"encoding/xml"
	"fmt"

	"github.com/jfroche/jenkins-job-builder/internal/entity"
)

// xmlHeader matches the declaration Jenkins itself writes on config.xml.
const xmlHeader = "<?xml version='1.0' encoding='UTF-8'?>\n"

// Options tunes compilation for one run.
type Options struct {
	// PluginVersions maps plugin short names to installed versions, from
	// the live server inventory. Renderers that emit a plugin attribute
	// pin the installed version when known and fall back to a default
	// otherwise (offline render has no inventory).
	PluginVersions map[string]string
}

// renderFunc builds the marshal-ready document for one definition.
type renderFunc func(def Definition, opts Options) (any, error)

// jobRenderers dispatches on the job `type` key.
var jobRenderers = map[string]renderFunc{
	"freestyle": renderFreestyle,
}

// viewRenderers dispatches on the `view-type` key.
var viewRenderers = map[string]renderFunc{
	"build-pipeline":    renderBuildPipeline,
	"delivery-pipeline": renderDeliveryPipeline,
	"list":              renderListView,
}

// Compile renders every definition to XML and returns the desired-state set,
// name-sorted per kind. An unknown type names the offending definition.
func Compile(defs []Definition, opts Options) (*entity.Set, error) {
	set := &entity.Set{}

	for _, def := range defs {
		render, err := rendererFor(def)
		if err != nil {
			return nil, err
		}

		doc, err := render(def, opts)
		if err != nil {
			return nil, fmt.Errorf("%s %q (%s): %w", def.Kind, def.Name, def.File, err)
		}

		xmlDoc, err := marshalDoc(doc)
		if err != nil {
			return nil, fmt.Errorf("%s %q (%s): %w", def.Kind, def.Name, def.File, err)
		}

		set.Add(entity.New(def.Name, def.Kind, xmlDoc))
	}

	set.Sort()

	return set, nil
}

func rendererFor(def Definition) (renderFunc, error) {
	if def.Kind == entity.KindView {
		viewType := def.Data.str("view-type", "list")

		render, ok := viewRenderers[viewType]
		if !ok {
			return nil, fmt.Errorf("view %q (%s): unknown view-type %q", def.Name, def.File, viewType)
		}

		return render, nil
	}

	jobType := def.Data.str("type", "freestyle")

	render, ok := jobRenderers[jobType]
	if !ok {
		return nil, fmt.Errorf("job %q (%s): unknown type %q", def.Name, def.File, jobType)
	}

	return render, nil
}

// marshalDoc serializes a renderer-built document with the standard header.
func marshalDoc(doc any) ([]byte, error) {
	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling XML: %w", err)
	}

	out := make([]byte, 0, len(xmlHeader)+len(body)+1)
	out = append(out, xmlHeader...)
	out = append(out, body...)
	out = append(out, '\n')

	return out, nil
}

// managedDescription appends the managed marker to a description, creating
// one from nothing when the definition has none. Every generated entity
// carries the marker; it is what makes obsolete-entity deletion safe.
func managedDescription(description string) string {
	if description == "" {
		return entity.ManagedMarker
	}

	return description + "\n\n" + entity.ManagedMarker
}

// classAttr is the recurring `<tag class="..."/>` element shape.
type classAttr struct {
	Class string `xml:"class,attr"`
}
