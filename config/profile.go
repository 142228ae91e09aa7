package config

import (
	"fmt"
	"io/ioutil"

	"github.com/pelletier/go-toml"
)

// Profile is the lowering profile: the target description, the names of the
// runtime entry points the lowered code calls, and the build settings of the
// driver.
type Profile struct {
	// PointerSize is the size of a pointer on the target in bytes.  It is
	// also the width of the native integer.
	PointerSize int

	// Triple and DataLayout are copied onto the output module.
	Triple     string
	DataLayout string

	// ShadowStackTop is the thread-local global that receives the shadow
	// stack pointer before calls to helpers that do not take it as an
	// argument.
	ShadowStackTop string

	// AssignRef and CheckedAssignRef are the write barrier entry points: the
	// first for destinations known to be on the heap, the second for
	// destinations that may or may not be.
	AssignRef        string
	CheckedAssignRef string

	// ThrowIfNull is the name of the internal null check function.
	ThrowIfNull string

	// NullRefClass and NullRefMethod identify the runtime method that throws
	// a null reference exception.
	NullRefClass  string
	NullRefMethod string

	// ShadowStackHelpers is the set of helper ids whose calls receive the
	// shadow stack as their first argument.
	ShadowStackHelpers map[string]bool

	// UnsupportedHelpers is the set of helper ids whose calls fail the
	// method.
	UnsupportedHelpers map[string]bool

	// Debug indicates whether debug info should be emitted.
	Debug bool

	// LogLevel is the name of the log level.
	LogLevel string

	// Workers is the number of methods lowered concurrently.
	Workers int

	// OutputPath is the path the output module is written to.  RelocPath is
	// the path of the relocation list: if empty it is derived from the
	// output path.
	OutputPath string
	RelocPath  string
}

// tomlProfileFile represents a profile as it is encoded in TOML
type tomlProfileFile struct {
	Target  *tomlTarget  `toml:"target"`
	Runtime *tomlRuntime `toml:"runtime"`
	Build   *tomlBuild   `toml:"build"`
}

type tomlTarget struct {
	PointerSize int    `toml:"pointer-size"`
	Triple      string `toml:"triple"`
	DataLayout  string `toml:"data-layout"`
}

type tomlRuntime struct {
	ShadowStackTop     string   `toml:"shadow-stack-top"`
	AssignRef          string   `toml:"assign-ref"`
	CheckedAssignRef   string   `toml:"checked-assign-ref"`
	ThrowIfNull        string   `toml:"throw-if-null"`
	NullRefClass       string   `toml:"null-ref-class"`
	NullRefMethod      string   `toml:"null-ref-method"`
	ShadowStackHelpers []string `toml:"shadow-stack-helpers,omitempty"`
	UnsupportedHelpers []string `toml:"unsupported-helpers,omitempty"`
}

type tomlBuild struct {
	Debug      bool   `toml:"debug"`
	LogLevel   string `toml:"log-level"`
	Workers    int    `toml:"workers"`
	OutputPath string `toml:"output"`
	RelocPath  string `toml:"relocs"`
}

// DefaultShadowStackHelpers lists the helpers implemented in managed code:
// they run on the shadow stack and so must receive it.
var DefaultShadowStackHelpers = []string{
	"TYPEHANDLE_TO_RUNTIMETYPEHANDLE",
	"GVMLOOKUP_FOR_SLOT",
	"DBL2INT_OVF",
	"DBL2LNG_OVF",
	"DBL2UINT_OVF",
	"DBL2ULNG_OVF",
	"LMOD",
	"LDIV",
	"LMUL_OVF",
	"ULMUL_OVF",
	"ULDIV",
	"ULMOD",
	"OVERFLOW",
	"TYPEHANDLE_TO_RUNTIMETYPE",
	"THROW_PLATFORM_NOT_SUPPORTED",
}

// DefaultUnsupportedHelpers lists the helpers whose signatures the lowering
// cannot yet reproduce.
var DefaultUnsupportedHelpers = []string{
	"READYTORUN_GENERIC_HANDLE",
	"READYTORUN_GENERIC_STATIC_BASE",
	"GVMLOOKUP_FOR_SLOT",
	"TYPEHANDLE_TO_RUNTIMETYPE",
	"READYTORUN_DELEGATE_CTOR",
	"THROW_PLATFORM_NOT_SUPPORTED",
}

// Default returns the default profile: a 32-bit WebAssembly target.
func Default() *Profile {
	return &Profile{
		PointerSize:        4,
		Triple:             "wasm32-unknown-emscripten",
		DataLayout:         "e-m:e-p:32:32-i64:64-n32:64-S128",
		ShadowStackTop:     "t_pShadowStackTop",
		AssignRef:          "RhpAssignRef",
		CheckedAssignRef:   "RhpCheckedAssignRef",
		ThrowIfNull:        "nativeaot.throwifnull",
		NullRefClass:       "ThrowHelpers",
		NullRefMethod:      "ThrowNullReferenceException",
		ShadowStackHelpers: toSet(DefaultShadowStackHelpers),
		UnsupportedHelpers: toSet(DefaultUnsupportedHelpers),
		LogLevel:           "verbose",
		Workers:            4,
	}
}

// Load loads a profile from the TOML file at path.  Any setting the file
// omits keeps its default value.
func Load(path string) (*Profile, error) {
	buff, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}

	prof, err := Parse(buff)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}

	return prof, nil
}

// Parse decodes a profile from TOML text.
func Parse(buff []byte) (*Profile, error) {
	tpf := &tomlProfileFile{}
	if err := toml.Unmarshal(buff, tpf); err != nil {
		return nil, err
	}

	prof := Default()

	if tt := tpf.Target; tt != nil {
		setInt(&prof.PointerSize, tt.PointerSize)
		setString(&prof.Triple, tt.Triple)
		setString(&prof.DataLayout, tt.DataLayout)
	}

	if tr := tpf.Runtime; tr != nil {
		setString(&prof.ShadowStackTop, tr.ShadowStackTop)
		setString(&prof.AssignRef, tr.AssignRef)
		setString(&prof.CheckedAssignRef, tr.CheckedAssignRef)
		setString(&prof.ThrowIfNull, tr.ThrowIfNull)
		setString(&prof.NullRefClass, tr.NullRefClass)
		setString(&prof.NullRefMethod, tr.NullRefMethod)

		if tr.ShadowStackHelpers != nil {
			prof.ShadowStackHelpers = toSet(tr.ShadowStackHelpers)
		}

		if tr.UnsupportedHelpers != nil {
			prof.UnsupportedHelpers = toSet(tr.UnsupportedHelpers)
		}
	}

	if tb := tpf.Build; tb != nil {
		prof.Debug = tb.Debug
		setString(&prof.LogLevel, tb.LogLevel)
		setInt(&prof.Workers, tb.Workers)
		setString(&prof.OutputPath, tb.OutputPath)
		setString(&prof.RelocPath, tb.RelocPath)
	}

	if err := prof.validate(); err != nil {
		return nil, err
	}

	return prof, nil
}

// validate checks that the profile describes a target that can be lowered for.
func (p *Profile) validate() error {
	if p.PointerSize != 4 && p.PointerSize != 8 {
		return fmt.Errorf("unsupported pointer size %d: must be 4 or 8", p.PointerSize)
	}

	if p.Workers < 1 {
		return fmt.Errorf("worker count must be positive, got %d", p.Workers)
	}

	switch p.LogLevel {
	case "silent", "error", "warn", "verbose":
	default:
		return fmt.Errorf("unknown log level `%s`", p.LogLevel)
	}

	return nil
}

// -----------------------------------------------------------------------------

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[name] = true
	}

	return set
}
