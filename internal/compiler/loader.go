// Package compiler turns declarative YAML job/view definitions into the XML
// documents Jenkins consumes. Each supported type has its own renderer, a
// pure function from definition data to an XML document; the compiler
// dispatches to renderers and fingerprints the result.
package compiler

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jfroche/jenkins-job-builder/internal/entity"
)

// Definition is one parsed YAML entry: a `- job:` or `- view:` mapping.
type Definition struct {
	Kind entity.Kind
	Name string
	Data defMap
	File string
}

// LoadFiles parses definitions from the given paths. A directory expands to
// its *.yml/*.yaml members (non-recursive, sorted); files are taken as-is.
// Paths that alias the same file through symlinks are parsed once: the
// duplicate is warned about and skipped, never double-processed.
func LoadFiles(paths []string, logger *slog.Logger) ([]Definition, error) {
	if logger == nil {
		logger = slog.Default()
	}

	files, err := expandPaths(paths)
	if err != nil {
		return nil, err
	}

	var defs []Definition

	seen := make(map[string]string)

	for _, file := range files {
		canonical, err := filepath.EvalSymlinks(file)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", file, err)
		}

		if prior, dup := seen[canonical]; dup {
			logger.Warn("file already loaded, ignoring duplicate reference",
				slog.String("file", file),
				slog.String("already_loaded_as", prior),
			)

			continue
		}

		seen[canonical] = file

		logger.Debug("parsing definition file", slog.String("file", file))

		fileDefs, err := parseFile(file)
		if err != nil {
			return nil, err
		}

		defs = append(defs, fileDefs...)
	}

	return defs, nil
}

// expandPaths flattens files and directories into a file list.
func expandPaths(paths []string) ([]string, error) {
	var files []string

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}

		if !info.IsDir() {
			files = append(files, path)
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("reading directory %s: %w", path, err)
		}

		var members []string

		for _, e := range entries {
			name := e.Name()
			if !e.IsDir() && (strings.HasSuffix(name, ".yml") || strings.HasSuffix(name, ".yaml")) {
				members = append(members, filepath.Join(path, name))
			}
		}

		sort.Strings(members)
		files = append(files, members...)
	}

	return files, nil
}

// parseFile decodes one YAML file: a top-level list of single-key mappings,
// each key naming the entity kind.
func parseFile(file string) ([]Definition, error) {
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	}

	var entries []map[string]defMap
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", file, err)
	}

	defs := make([]Definition, 0, len(entries))

	for i, entry := range entries {
		if len(entry) != 1 {
			return nil, fmt.Errorf("%s: entry %d must have exactly one key (job or view)", file, i+1)
		}

		for tag, data := range entry {
			var kind entity.Kind

			switch tag {
			case "job":
				kind = entity.KindJob
			case "view":
				kind = entity.KindView
			default:
				return nil, fmt.Errorf("%s: entry %d has unknown kind %q", file, i+1, tag)
			}

			name := data.str("name", "")
			if name == "" {
				return nil, fmt.Errorf("%s: entry %d (%s) is missing a name", file, i+1, tag)
			}

			defs = append(defs, Definition{
				Kind: kind,
				Name: name,
				Data: data,
				File: file,
			})
		}
	}

	return defs, nil
}
