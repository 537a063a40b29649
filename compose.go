package hayai

import (
	"strings"

	radix "github.com/armon/go-radix"
)

// RouteTable is the flattened result of composing a RouterNode tree: an
// ordered sequence of fully-resolved route descriptors with absolute paths
// and merged metadata. The order equals the deterministic pre-order tree walk
// (a node's own routes first, then its children in declaration order), which
// the document builder relies on for stable output. Built once; read-only for
// the remainder of the process.
type RouteTable struct {
	Routes []*RouteDescriptor

	index *radix.Tree
}

// Lookup returns the descriptor composed at the exact (method, path) pair.
func (t *RouteTable) Lookup(method, path string) (*RouteDescriptor, bool) {
	v, ok := t.index.Get(routeKey(method, path))
	if !ok {
		return nil, false
	}
	return v.(*RouteDescriptor), true
}

// Len returns the number of composed routes.
func (t *RouteTable) Len() int {
	return len(t.Routes)
}

func routeKey(method, path string) string {
	return method + " " + path
}

type composeState struct {
	prefix      string
	tags        []string
	security    []string
	securitySet bool
	bindings    map[string]*DependencyBinding
}

// Compose flattens a RouterNode tree into a RouteTable. Paths are the literal
// concatenation of ancestor prefixes with separator normalization; tags
// accumulate by set union; an explicit security declaration replaces the
// inherited one while an absent declaration inherits; bindings merge down the
// chain with node-local bindings shadowing ancestors. A duplicate absolute
// (method, path) pair anywhere in the tree fails with RouteConflictError.
func Compose(root *RouterNode) (*RouteTable, error) {
	table := &RouteTable{index: radix.New()}

	state := composeState{prefix: "", bindings: map[string]*DependencyBinding{}}
	if err := composeNode(root, state, table); err != nil {
		return nil, err
	}
	return table, nil
}

func composeNode(node *RouterNode, inherited composeState, table *RouteTable) error {
	state := composeState{
		prefix:      joinPath(inherited.prefix, node.prefix),
		tags:        unionTags(inherited.tags, node.tags),
		security:    inherited.security,
		securitySet: inherited.securitySet,
		bindings:    inherited.bindings,
	}
	if node.securitySet {
		state.security = node.security
		state.securitySet = true
	}
	if len(node.bindings) > 0 {
		merged := make(map[string]*DependencyBinding, len(inherited.bindings)+len(node.bindings))
		for name, b := range inherited.bindings {
			merged[name] = b
		}
		for i := range node.bindings {
			b := node.bindings[i]
			merged[b.Descriptor.Name] = &b
		}
		state.bindings = merged
	}

	for _, endpoint := range node.endpoints {
		rd := endpoint.Describe().clone()
		rd.Path = joinPath(state.prefix, rd.Path)
		rd.Tags = unionTags(state.tags, rd.Tags)
		if !rd.SecuritySet {
			rd.Security = append([]string(nil), state.security...)
			rd.SecuritySet = state.securitySet
		}
		rd.Bindings = state.bindings
		rd.Endpoint = endpoint

		if _, duplicate := table.index.Insert(routeKey(rd.Method, rd.Path), rd); duplicate {
			return &RouteConflictError{Method: rd.Method, Path: rd.Path}
		}
		table.Routes = append(table.Routes, rd)
	}

	for _, child := range node.children {
		if err := composeNode(child, state, table); err != nil {
			return err
		}
	}
	return nil
}

// joinPath concatenates a prefix and a segment, normalizing the separator so
// "/users" + "/{id}" yields "/users/{id}" and stray duplicate or missing
// slashes never appear.
func joinPath(prefix, segment string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	segment = strings.TrimPrefix(segment, "/")

	switch {
	case prefix == "" && segment == "":
		return "/"
	case segment == "":
		return prefix
	default:
		return prefix + "/" + segment
	}
}

// unionTags merges inherited and local tags preserving first-occurrence
// order, so a child's effective tag set is always a superset of its parent's.
func unionTags(inherited, local []string) []string {
	out := make([]string, 0, len(inherited)+len(local))
	seen := make(map[string]bool, len(inherited)+len(local))
	for _, lists := range [][]string{inherited, local} {
		for _, tag := range lists {
			if seen[tag] {
				continue
			}
			seen[tag] = true
			out = append(out, tag)
		}
	}
	return out
}
