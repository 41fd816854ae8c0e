// SPDX-License-Identifier: MPL-2.0

package glctx

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Shader stages.
const (
	StageVertex ShaderStage = iota + 1
	StageFragment
)

// Shader source formats.
const (
	FormatGLSL ShaderFormat = iota + 1
	FormatSPIRV
)

// ErrInvalidHandle is returned when a Device is given a handle it does not own.
var ErrInvalidHandle = errors.New("invalid gpu handle")

type (
	// Handle names a GPU object. Zero is never a valid handle.
	Handle uint32

	// ShaderStage is the pipeline stage a shader compiles for.
	ShaderStage uint8

	// ShaderFormat is the encoding of shader source handed to the device.
	ShaderFormat uint8

	// Device is the graphics call layer. Implementations are only ever called
	// from a Thread's owning goroutine.
	Device interface {
		CreateTexture(width, height int, rgba []byte) (Handle, error)
		DeleteTexture(h Handle) error
		CompileShader(stage ShaderStage, format ShaderFormat, source []byte) (Handle, error)
		DeleteShader(h Handle) error
		LinkProgram(shaders []Handle, attributes []string) (Handle, error)
		UniformLocation(program Handle, name string) (int32, error)
		DeleteProgram(h Handle) error
	}

	objectKind uint8

	// Headless is an in-memory Device. It validates inputs like a real driver
	// would, hands out monotonically increasing handles and never reuses one.
	Headless struct {
		mu       sync.Mutex
		next     Handle
		live     map[Handle]objectKind
		uniforms map[Handle][]string
		failures map[string]error
	}
)

const (
	objTexture objectKind = iota + 1
	objShader
	objProgram
)

// String returns "vertex" or "fragment".
func (s ShaderStage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	default:
		return fmt.Sprintf("stage(%d)", uint8(s))
	}
}

// String returns "glsl" or "spirv".
func (f ShaderFormat) String() string {
	switch f {
	case FormatGLSL:
		return "glsl"
	case FormatSPIRV:
		return "spirv"
	default:
		return fmt.Sprintf("format(%d)", uint8(f))
	}
}

// NewHeadless returns an empty Headless device.
func NewHeadless() *Headless {
	return &Headless{
		live:     make(map[Handle]objectKind),
		uniforms: make(map[Handle][]string),
		failures: make(map[string]error),
	}
}

// FailOn makes every subsequent call of the named method return err.
// A nil err clears the failure.
func (d *Headless) FailOn(method string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.failures, method)
		return
	}
	d.failures[method] = err
}

// Live returns the number of allocated objects.
func (d *Headless) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.live)
}

// IsLive reports whether h is currently allocated.
func (d *Headless) IsLive(h Handle) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.live[h]
	return ok
}

func (d *Headless) alloc(kind objectKind) Handle {
	d.next++
	d.live[d.next] = kind
	return d.next
}

func (d *Headless) release(h Handle, kind objectKind) error {
	if d.live[h] != kind {
		return fmt.Errorf("%w: %d", ErrInvalidHandle, h)
	}
	delete(d.live, h)
	delete(d.uniforms, h)
	return nil
}

// CreateTexture allocates a texture from tightly packed RGBA pixels.
func (d *Headless) CreateTexture(width, height int, rgba []byte) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failures["CreateTexture"]; err != nil {
		return 0, err
	}
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("texture size %dx%d is empty", width, height)
	}
	if len(rgba) != width*height*4 {
		return 0, fmt.Errorf("texture %dx%d needs %d bytes, got %d", width, height, width*height*4, len(rgba))
	}
	return d.alloc(objTexture), nil
}

// DeleteTexture frees a texture.
func (d *Headless) DeleteTexture(h Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.release(h, objTexture)
}

// CompileShader allocates a shader object.
func (d *Headless) CompileShader(stage ShaderStage, format ShaderFormat, source []byte) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failures["CompileShader"]; err != nil {
		return 0, err
	}
	if stage != StageVertex && stage != StageFragment {
		return 0, fmt.Errorf("unsupported shader stage %s", stage)
	}
	if format != FormatGLSL && format != FormatSPIRV {
		return 0, fmt.Errorf("unsupported shader format %s", format)
	}
	if len(source) == 0 {
		return 0, fmt.Errorf("empty %s shader source", stage)
	}
	return d.alloc(objShader), nil
}

// DeleteShader frees a shader object.
func (d *Headless) DeleteShader(h Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.release(h, objShader)
}

// LinkProgram links live shader objects into a program.
func (d *Headless) LinkProgram(shaders []Handle, attributes []string) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failures["LinkProgram"]; err != nil {
		return 0, err
	}
	if len(shaders) == 0 {
		return 0, errors.New("program has no shaders")
	}
	for _, s := range shaders {
		if d.live[s] != objShader {
			return 0, fmt.Errorf("%w: shader %d", ErrInvalidHandle, s)
		}
	}
	h := d.alloc(objProgram)
	d.uniforms[h] = nil
	return h, nil
}

// UniformLocation assigns locations in first-query order per program.
func (d *Headless) UniformLocation(program Handle, name string) (int32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.live[program] != objProgram {
		return -1, fmt.Errorf("%w: program %d", ErrInvalidHandle, program)
	}
	names := d.uniforms[program]
	if i := slices.Index(names, name); i >= 0 {
		return int32(i), nil
	}
	d.uniforms[program] = append(names, name)
	return int32(len(names)), nil
}

// DeleteProgram frees a program.
func (d *Headless) DeleteProgram(h Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.release(h, objProgram)
}
