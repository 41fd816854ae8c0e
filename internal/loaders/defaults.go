// SPDX-License-Identifier: MPL-2.0

package loaders

type (
	options struct {
		compile        WGSLCompiler
		maxTextureSize int
	}

	// Option configures the built-in loaders.
	Option func(*options)
)

// WithWGSLCompiler replaces the WGSL compiler used by shader and program
// loaders.
func WithWGSLCompiler(compile WGSLCompiler) Option {
	return func(o *options) {
		o.compile = compile
	}
}

// WithMaxTextureSize caps texture dimensions.
func WithMaxTextureSize(n int) Option {
	return func(o *options) {
		o.maxTextureSize = n
	}
}

// Defaults returns a registry with every built-in loader, each wrapped with
// Safe.
func Defaults(opts ...Option) *Registry {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	r := NewRegistry()
	r.MustRegister(Safe(NewTextureLoader(o.maxTextureSize)))
	r.MustRegister(Safe(NewShaderLoader(o.compile)))
	r.MustRegister(Safe(NewProgramLoader(o.compile)))
	r.MustRegister(Safe(FontLoader{}))
	r.MustRegister(Safe(ScriptLoader{}))
	return r
}
