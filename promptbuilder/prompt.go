/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package promptbuilder

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var bindingPattern = regexp.MustCompile(`\{\{([a-zA-Z0-9_]+)\}\}`)

// Prompt is a template with named bindings. Binding returns a new Prompt;
// the original is never mutated.
type Prompt struct {
	template string
	bound    map[string]string
}

// New parses a template. Binding names are discovered from {{name}}
// placeholders; a template with no placeholders is valid.
func New(template string) *Prompt {
	return &Prompt{template: template, bound: map[string]string{}}
}

// Bindings returns the set of binding names the template declares.
func (p *Prompt) Bindings() map[string]struct{} {
	out := map[string]struct{}{}
	for _, m := range bindingPattern.FindAllStringSubmatch(p.template, -1) {
		out[m[1]] = struct{}{}
	}
	return out
}

// Bind returns a copy of the prompt with the named binding set. Binding a
// name the template does not declare is an error, which catches typos at
// bind time rather than leaving placeholders unrendered.
func (p *Prompt) Bind(name, value string) (*Prompt, error) {
	if _, ok := p.Bindings()[name]; !ok {
		return nil, fmt.Errorf("template declares no binding %q", name)
	}

	bound := make(map[string]string, len(p.bound)+1)
	for k, v := range p.bound {
		bound[k] = v
	}
	bound[name] = value

	return &Prompt{template: p.template, bound: bound}, nil
}

// MustBind is Bind for statically known binding names.
func (p *Prompt) MustBind(name, value string) *Prompt {
	next, err := p.Bind(name, value)
	if err != nil {
		panic(err)
	}
	return next
}

// Build renders the prompt. It fails if any declared binding is unbound.
func (p *Prompt) Build() (string, error) {
	var missing []string
	for name := range p.Bindings() {
		if _, ok := p.bound[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("unbound bindings: %s", strings.Join(missing, ", "))
	}

	return bindingPattern.ReplaceAllStringFunc(p.template, func(match string) string {
		name := bindingPattern.FindStringSubmatch(match)[1]
		return p.bound[name]
	}), nil
}
