package hayai

// RouterNode is one node in a tree of path-prefixed route groups. A node owns
// its local endpoints and child nodes exclusively; metadata declared on a node
// is inherited by everything beneath it during composition: tags are additive,
// an explicit security declaration replaces the inherited one, and local
// dependency bindings shadow ancestor bindings with the same descriptor.
type RouterNode struct {
	prefix    string
	endpoints []Endpoint
	children  []*RouterNode

	tags        []string
	security    []string
	securitySet bool
	bindings    []DependencyBinding
}

// NewRouter creates a router node with the given path prefix.
func NewRouter(prefix string) *RouterNode {
	return &RouterNode{prefix: prefix}
}

// Route registers endpoints on this node and returns the node for chaining.
// Registration order is preserved and determines documentation order.
func (n *RouterNode) Route(endpoints ...Endpoint) *RouterNode {
	n.endpoints = append(n.endpoints, endpoints...)
	return n
}

// Group creates a child node under the given prefix, appends it in
// declaration order, and returns the child.
func (n *RouterNode) Group(prefix string) *RouterNode {
	child := NewRouter(prefix)
	n.children = append(n.children, child)
	return child
}

// Mount attaches pre-built router nodes as children and returns the parent.
func (n *RouterNode) Mount(children ...*RouterNode) *RouterNode {
	n.children = append(n.children, children...)
	return n
}

// WithTags declares inheritable tags on this node. Child tags are the set
// union of inherited and locally declared tags.
func (n *RouterNode) WithTags(tags ...string) *RouterNode {
	n.tags = append(n.tags, tags...)
	return n
}

// WithSecurity declares this node's security requirement explicitly,
// replacing anything inherited. Calling it with no schemes declares "no
// security", which is distinct from not calling it at all (inherit).
func (n *RouterNode) WithSecurity(schemes ...string) *RouterNode {
	n.security = append([]string(nil), schemes...)
	n.securitySet = true
	return n
}

// WithBinding declares node-local dependency bindings, visible to this node's
// routes and all descendants. A local binding shadows an ancestor binding
// with the same TypeDescriptor.
func (n *RouterNode) WithBinding(bindings ...DependencyBinding) *RouterNode {
	n.bindings = append(n.bindings, bindings...)
	return n
}

// Prefix returns the node's path prefix segment.
func (n *RouterNode) Prefix() string {
	return n.prefix
}
