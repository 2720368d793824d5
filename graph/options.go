package graph

const (
	// DefaultPreAllocNumNodes is the default number of nodes we assume
	// for pre-allocating the graph maps.
	DefaultPreAllocNumNodes = 1000
)

// graphOptions holds parameters for tuning and customizing the Graph.
type graphOptions struct {
	// preAllocNumNodes is the number of nodes we expect to be in the
	// graph, so we can pre-allocate the maps accordingly.
	preAllocNumNodes int
}

// defaultGraphOptions returns a new graphOptions instance populated with
// default values.
func defaultGraphOptions() *graphOptions {
	return &graphOptions{
		preAllocNumNodes: DefaultPreAllocNumNodes,
	}
}

// Option describes the signature of a functional option that can be used to
// customize a Graph instance.
type Option func(*graphOptions)

// WithPreAllocNumNodes sets the number of nodes we expect to be in the graph,
// so we can pre-allocate the maps accordingly.
func WithPreAllocNumNodes(n int) Option {
	return func(o *graphOptions) {
		o.preAllocNumNodes = n
	}
}
