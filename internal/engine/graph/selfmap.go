package graph

import (
	"encoding/json"
	"os"
	"strings"

	domainErrors "archgraph/internal/core/errors"
	"archgraph/internal/shared/util"
)

// SelfMap is the extraction payload the graph is built from. Only module paths
// and flat dependency name lists are read; other fields are ignored.
type SelfMap struct {
	Modules      []ModuleEntry       `json:"modules"`
	Dependencies map[string][]string `json:"dependencies"`
}

// ModuleEntry is one project file from the self-map.
type ModuleEntry struct {
	Path string `json:"path"`
}

// UnmarshalJSON decodes leniently: a missing or mistyped "modules" or
// "dependencies" section becomes empty, modules without a string path are
// skipped, non-list dependency values are treated as empty and non-string
// names are dropped.
func (m *SelfMap) UnmarshalJSON(data []byte) error {
	var raw struct {
		Modules      json.RawMessage            `json:"modules"`
		Dependencies map[string]json.RawMessage `json:"dependencies"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		// Top-level object with a non-object dependencies section.
		var loose map[string]json.RawMessage
		if err2 := json.Unmarshal(data, &loose); err2 != nil {
			return err
		}
		raw.Modules = loose["modules"]
		raw.Dependencies = nil
	}

	m.Modules = nil
	var items []json.RawMessage
	if len(raw.Modules) > 0 && json.Unmarshal(raw.Modules, &items) == nil {
		for _, item := range items {
			var entry struct {
				Path *string `json:"path"`
			}
			if err := json.Unmarshal(item, &entry); err != nil || entry.Path == nil {
				continue
			}
			m.Modules = append(m.Modules, ModuleEntry{Path: *entry.Path})
		}
	}

	m.Dependencies = make(map[string][]string, len(raw.Dependencies))
	for key, value := range raw.Dependencies {
		var list []json.RawMessage
		if err := json.Unmarshal(value, &list); err != nil {
			m.Dependencies[key] = nil
			continue
		}
		names := make([]string, 0, len(list))
		for _, v := range list {
			var name string
			if err := json.Unmarshal(v, &name); err == nil {
				names = append(names, name)
			}
		}
		m.Dependencies[key] = names
	}
	return nil
}

// LoadSelfMap reads a self-map JSON document from disk.
func LoadSelfMap(path string) (SelfMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		code := domainErrors.CodeInternal
		if os.IsNotExist(err) {
			code = domainErrors.CodeNotFound
		}
		return SelfMap{}, domainErrors.AddContext(domainErrors.Wrap(err, code, "read self-map"), domainErrors.CtxPath, path)
	}
	return ParseSelfMap(data, path)
}

// ParseSelfMap decodes a self-map document. source is used for error context only.
func ParseSelfMap(data []byte, source string) (SelfMap, error) {
	var sm SelfMap
	if err := json.Unmarshal(data, &sm); err != nil {
		return SelfMap{}, domainErrors.AddContext(domainErrors.Wrap(err, domainErrors.CodeValidationError, "decode self-map"), domainErrors.CtxPath, source)
	}
	return sm, nil
}

// FromSelfMap builds the project-only graph. Each imported name is resolved by
// its first dotted segment against the stem of a known module path; names that
// resolve to no project file (external packages, stdlib) are dropped.
func FromSelfMap(sm SelfMap) *Graph {
	files := make([]string, 0, len(sm.Modules))
	stemToFile := make(map[string]string, len(sm.Modules))
	for _, mod := range sm.Modules {
		p := util.NormalizePath(mod.Path)
		if p == "" {
			continue
		}
		files = append(files, p)
		// Later modules win on stem collisions.
		stemToFile[util.Stem(p)] = p
	}

	edges := make(map[string][]string, len(sm.Dependencies))
	for _, srcKey := range util.SortedStringKeys(sm.Dependencies) {
		src := util.NormalizePath(srcKey)
		if src == "" {
			continue
		}
		for _, name := range sm.Dependencies[srcKey] {
			head, _, _ := strings.Cut(strings.TrimSpace(name), ".")
			if head == "" {
				continue
			}
			dst, ok := stemToFile[head]
			if !ok {
				continue
			}
			edges[src] = append(edges[src], dst)
		}
	}

	return New(files, edges)
}
