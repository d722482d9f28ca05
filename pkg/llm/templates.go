// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package llm

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/mkbabb/lexserve/pkg/registry"
)

// TemplateRegistry holds named, data-driven prompt templates. A
// template's name and version participate in the cache key and the
// synthesis fingerprint, so editing a template's text invalidates
// whatever it previously produced. Storage is a registry.BaseRegistry,
// the same generic name->item store pkg/ratelimit's host table and
// pkg/provider's client table are conceptually built on.
type TemplateRegistry struct {
	reg *registry.BaseRegistry[*registeredTemplate]
}

type registeredTemplate struct {
	version int
	tmpl    *template.Template
}

// NewTemplateRegistry returns an empty registry.
func NewTemplateRegistry() *TemplateRegistry {
	return &TemplateRegistry{reg: registry.NewBaseRegistry[*registeredTemplate]()}
}

// Register parses and stores a named template body, replacing any prior
// version under the same name. version should be bumped whenever the
// body changes in a way that should invalidate cached results built
// from it.
func (r *TemplateRegistry) Register(name string, version int, body string) error {
	tmpl, err := template.New(name).Parse(body)
	if err != nil {
		return fmt.Errorf("llm: parse template %q: %w", name, err)
	}

	if _, ok := r.reg.Get(name); ok {
		_ = r.reg.Remove(name)
	}
	return r.reg.Register(name, &registeredTemplate{version: version, tmpl: tmpl})
}

// Render executes the named template against vars, returning the
// rendered prompt and the template's version (for the fingerprint/cache
// key), or an error if the template isn't registered.
func (r *TemplateRegistry) Render(name string, vars map[string]any) (rendered string, version int, err error) {
	rt, ok := r.reg.Get(name)
	if !ok {
		return "", 0, fmt.Errorf("llm: template %q is not registered", name)
	}

	var buf strings.Builder
	if err := rt.tmpl.Execute(&buf, vars); err != nil {
		return "", 0, fmt.Errorf("llm: render template %q: %w", name, err)
	}
	return buf.String(), rt.version, nil
}

// Identity returns a stable string identifying a registered template's
// name+version, for inclusion in cache keys.
func (r *TemplateRegistry) Identity(name string) (string, error) {
	rt, ok := r.reg.Get(name)
	if !ok {
		return "", fmt.Errorf("llm: template %q is not registered", name)
	}
	return fmt.Sprintf("%s@v%d", name, rt.version), nil
}
