package javaio

import (
	"go.uber.org/zap"
)

type options struct {
	registry        *Registry
	logger          *zap.Logger
	policy          Policy
	replacer        Replacer
	metrics         *Metrics
	maxDepth        int
	maxArrayLength  int
	maxStringLength int64
}

func defaultOptions() options {
	return options{
		logger:          zap.NewNop(),
		policy:          AllowAll,
		maxDepth:        defaultMaxDepth,
		maxArrayLength:  defaultMaxArray,
		maxStringLength: defaultMaxString,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = NewRegistry()
	}
	return o
}

// Option configures an Encoder or a Decoder.
type Option func(*options)

// WithRegistry sets the classes the stream may carry.
func WithRegistry(registry *Registry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// WithLogger sets the logger used for stream diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPolicy sets the predicate a Decoder consults for every descriptor
// it resolves. Ignored by encoders.
func WithPolicy(policy Policy) Option {
	return func(o *options) {
		if policy != nil {
			o.policy = policy
		}
	}
}

// WithReplacer installs a stream-level substitution hook on an Encoder.
func WithReplacer(replacer Replacer) Option {
	return func(o *options) {
		o.replacer = replacer
	}
}

// WithMetrics reports stream activity to m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithMaxDepth bounds the nesting depth of a graph.
func WithMaxDepth(depth int) Option {
	return func(o *options) {
		o.maxDepth = depth
	}
}

// WithMaxArrayLength bounds the length of a decoded array.
func WithMaxArrayLength(n int) Option {
	return func(o *options) {
		o.maxArrayLength = n
	}
}

// WithMaxStringLength bounds the byte length of a decoded string or block.
func WithMaxStringLength(n int64) Option {
	return func(o *options) {
		o.maxStringLength = n
	}
}

// Replacer substitutes objects before they are written. It sees every
// object once, after the class's own WriteReplace.
type Replacer interface {
	ReplaceObject(obj any) (any, error)
}

type ReplacerFunc func(obj any) (any, error)

func (f ReplacerFunc) ReplaceObject(obj any) (any, error) {
	return f(obj)
}
