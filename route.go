package hayai

// RouteKind distinguishes how a route's response is produced.
type RouteKind int

const (
	// RouteUnary is a plain request/response route.
	RouteUnary RouteKind = iota

	// RouteStream responds with a Server-Sent Events stream.
	RouteStream

	// RouteSocket upgrades to a bidirectional WebSocket connection.
	RouteSocket
)

// ParamSource names where a request parameter is carried.
type ParamSource string

// Parameter sources.
const (
	ParamPath   ParamSource = "path"
	ParamQuery  ParamSource = "query"
	ParamHeader ParamSource = "header"
)

// ParamSpec declares one request parameter: where it comes from, its scalar
// kind, whether it is mandatory, and the constraints applied after coercion.
type ParamSpec struct {
	Name        string       `json:"name" yaml:"name"`
	Source      ParamSource  `json:"source" yaml:"source"`
	Scalar      ScalarKind   `json:"scalar" yaml:"scalar"`
	Required    bool         `json:"required" yaml:"required"`
	Constraints []Constraint `json:"constraints,omitempty" yaml:"constraints,omitempty"`
}

// RouteDescriptor is the full declarative specification of one route. It is
// created when a handler is declared, carries relative paths and local
// metadata until composition, and is immutable once the router tree has been
// composed into a RouteTable.
type RouteDescriptor struct {
	// Routing
	Name   string `json:"name" yaml:"name"`
	Method string `json:"method" yaml:"method"`
	Path   string `json:"path" yaml:"path"`

	// Documentation
	Summary     string   `json:"summary,omitempty" yaml:"summary,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// Request/Response
	Params        []ParamSpec    `json:"params,omitempty" yaml:"params,omitempty"`
	Input         TypeDescriptor `json:"input,omitempty" yaml:"input,omitempty"`
	Output        TypeDescriptor `json:"output,omitempty" yaml:"output,omitempty"`
	SuccessStatus int            `json:"successStatus" yaml:"successStatus"`
	ErrorCodes    []int          `json:"errorCodes,omitempty" yaml:"errorCodes,omitempty"`

	// Security: the set of scheme names this route requires. SecuritySet
	// distinguishes an explicit declaration (which replaces anything
	// inherited, even when empty) from an absent one (which inherits).
	Security    []string `json:"security,omitempty" yaml:"security,omitempty"`
	SecuritySet bool     `json:"securitySet,omitempty" yaml:"securitySet,omitempty"`

	// Dependencies this route's handler requires.
	Requires []TypeDescriptor `json:"requires,omitempty" yaml:"requires,omitempty"`

	Kind RouteKind `json:"kind,omitempty" yaml:"kind,omitempty"`

	// Populated by Compose: the merged binding chain visible to this route
	// and the endpoint that serves it.
	Bindings map[string]*DependencyBinding `json:"-" yaml:"-"`
	Endpoint Endpoint                      `json:"-" yaml:"-"`
}

// clone returns a deep-enough copy for composition: slices are copied so the
// declared descriptor is never mutated by Compose.
func (rd *RouteDescriptor) clone() *RouteDescriptor {
	out := *rd
	out.Tags = append([]string(nil), rd.Tags...)
	out.Params = append([]ParamSpec(nil), rd.Params...)
	out.ErrorCodes = append([]int(nil), rd.ErrorCodes...)
	out.Security = append([]string(nil), rd.Security...)
	out.Requires = append([]TypeDescriptor(nil), rd.Requires...)
	out.Bindings = nil
	return &out
}

// param returns the spec for a declared parameter name and source.
func (rd *RouteDescriptor) param(source ParamSource, name string) (ParamSpec, bool) {
	for _, p := range rd.Params {
		if p.Source == source && p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}
