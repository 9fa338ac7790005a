package trace

import (
	"debug/elf"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/aquasecurity/libbpfgo/helpers"
	"github.com/ianlancetaylor/demangle"
	"github.com/pkg/errors"
	log "github.com/rs/zerolog"
)

// BuiltIns is the pseudo application holding the kernel functions, traced
// without a binary path.
const BuiltIns = "built-ins"

// Function is the tracing state of one function of an application.
type Function struct {
	// Name is the demangled symbol name.
	Name    string
	Mangled string
	// Offset is the file offset of the function in its binary.
	Offset uint64
	Traced bool
	// Params maps the 1-based argument index to its format specifier.
	Params map[int]string
}

type application struct {
	path  string
	funcs []*Function
}

func (a *application) lookup(name string) *Function {
	for _, f := range a.funcs {
		if f.Name == name {
			return f
		}
	}
	for _, f := range a.funcs {
		if f.Mangled == name {
			return f
		}
	}

	return nil
}

// Setup is the set of applications and functions to trace, and the source
// of the tracer argv.
type Setup struct {
	apps []*application

	include *regexp.Regexp
	exclude *regexp.Regexp

	*SetupOptions
}

func NewSetup(opts ...SetupOption) *Setup {
	s := &Setup{
		SetupOptions: &SetupOptions{logger: log.Nop()},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "setup").Logger()

	return s
}

// Init compiles the symbol patterns.
func (s *Setup) Init() error {
	var err error
	if s.symPatternInclude != "" {
		if s.include, err = regexp.Compile(s.symPatternInclude); err != nil {
			return errors.Wrap(err, "invalid include pattern")
		}
	}
	if s.symPatternExclude != "" {
		if s.exclude, err = regexp.Compile(s.symPatternExclude); err != nil {
			return errors.Wrap(err, "invalid exclude pattern")
		}
	}

	return nil
}

func (s *Setup) app(path string) *application {
	for _, a := range s.apps {
		if a.path == path {
			return a
		}
	}

	return nil
}

// InitializeBinary registers the ELF executable or library at path with all
// its defined function symbols, none of them traced yet.
func (s *Setup) InitializeBinary(path string) error {
	if s.app(path) != nil {
		return errors.Wrap(ErrBinaryAlreadyAdded, path)
	}

	file, err := elf.Open(path)
	if err != nil {
		return errors.Wrapf(ErrBinaryNotFound, "%s: %v", path, err)
	}
	defer file.Close()

	syms, err := file.Symbols()
	if errors.Is(err, elf.ErrNoSymbols) {
		syms, err = file.DynamicSymbols()
	}
	if err != nil {
		return errors.Wrapf(err, "failed to read symbols of %s", path)
	}

	a := &application{path: path}
	seen := make(map[string]struct{})
	for _, sym := range syms {
		if elf.ST_TYPE(sym.Info) != elf.STT_FUNC || sym.Section == elf.SHN_UNDEF {
			continue
		}
		if !s.ShouldIncludeSymbol(sym) {
			continue
		}
		name := demangle.Filter(sym.Name)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}

		offset, err := helpers.SymbolToOffset(path, sym.Name)
		if err != nil {
			s.logger.Debug().Err(err).Str("symbol", sym.Name).Str("exe_path", path).Msg("failed to get function offset")
		}
		a.funcs = append(a.funcs, &Function{
			Name:    name,
			Mangled: sym.Name,
			Offset:  uint64(offset),
			Params:  make(map[int]string),
		})
	}
	if len(a.funcs) == 0 {
		return errors.Wrap(ErrNoFunctionSymbols, path)
	}
	s.logger.Debug().
		Int("functions", len(a.funcs)).
		Str("exe_path", path).
		Str("include", s.symPatternInclude).
		Str("exclude", s.symPatternExclude).
		Msg("binary initialized")
	s.apps = append(s.apps, a)

	return nil
}

// ShouldIncludeSymbol applies the exclude pattern first, then the include one.
func (s *Setup) ShouldIncludeSymbol(sym elf.Symbol) bool {
	if s.exclude != nil && s.exclude.MatchString(sym.Name) {
		return false
	}
	if s.include != nil {
		return s.include.MatchString(sym.Name)
	}

	return true
}

// InitializeBuiltIn registers the kernel function name as traced.
func (s *Setup) InitializeBuiltIn(name string) {
	a := s.app(BuiltIns)
	if a == nil {
		a = &application{path: BuiltIns}
		s.apps = append(s.apps, a)
	}
	if f := a.lookup(name); f != nil {
		f.Traced = true
		return
	}
	a.funcs = append(a.funcs, &Function{
		Name:    name,
		Mangled: name,
		Traced:  true,
		Params:  make(map[int]string),
	})
}

func (s *Setup) RemoveApp(path string) {
	s.apps = slices.DeleteFunc(s.apps, func(a *application) bool {
		return a.path == path
	})
}

// Apps returns the registered applications in registration order.
func (s *Setup) Apps() []string {
	apps := make([]string, 0, len(s.apps))
	for _, a := range s.apps {
		apps = append(apps, a.path)
	}

	return apps
}

// Functions returns a copy of the functions of app.
func (s *Setup) Functions(app string) ([]Function, error) {
	a := s.app(app)
	if a == nil {
		return nil, errors.Wrap(ErrAppNotFound, app)
	}
	funcs := make([]Function, 0, len(a.funcs))
	for _, f := range a.funcs {
		fn := *f
		fn.Params = maps.Clone(f.Params)
		funcs = append(funcs, fn)
	}

	return funcs, nil
}

func (s *Setup) function(app, name string) (*Function, error) {
	a := s.app(app)
	if a == nil {
		return nil, errors.Wrap(ErrAppNotFound, app)
	}
	f := a.lookup(name)
	if f == nil {
		return nil, errors.Wrapf(ErrFunctionNotFound, "no function named %s in %s", name, app)
	}

	return f, nil
}

// SetupFunctionToTrace marks the function, by demangled or mangled name, as
// traced.
func (s *Setup) SetupFunctionToTrace(app, name string) error {
	f, err := s.function(app, name)
	if err != nil {
		return err
	}
	f.Traced = true

	return nil
}

func (s *Setup) RemoveFunctionFromTrace(app, name string) error {
	f, err := s.function(app, name)
	if err != nil {
		return err
	}
	f.Traced = false

	return nil
}

// AddParameter captures the argument at the 1-based index with format.
func (s *Setup) AddParameter(app, name string, index int, format string) error {
	if index < 1 {
		return errors.Wrapf(ErrParameterIndex, "%d", index)
	}
	f, err := s.function(app, name)
	if err != nil {
		return err
	}
	f.Params[index] = format

	return nil
}

func (s *Setup) RemoveParameter(app, name string, index int) error {
	f, err := s.function(app, name)
	if err != nil {
		return err
	}
	delete(f.Params, index)

	return nil
}

func (s *Setup) Parameters(app, name string) (map[int]string, error) {
	f, err := s.function(app, name)
	if err != nil {
		return nil, err
	}

	return maps.Clone(f.Params), nil
}

// GenerateArgs returns one tracer probe per traced function, as
// app:function or function for built-ins, followed by the parameter formats
// and arguments when some are captured:
//
//	/bin/app:func1 "%s %d", arg1, arg3
func (s *Setup) GenerateArgs() []string {
	var args []string
	for _, a := range s.apps {
		for _, f := range a.funcs {
			if !f.Traced {
				continue
			}
			probe := f.Mangled
			if a.path != BuiltIns {
				probe = fmt.Sprintf("%s:%s", a.path, f.Mangled)
			}
			args = append(args, probe+formatParams(f.Params))
		}
	}

	return args
}

func formatParams(params map[int]string) string {
	if len(params) == 0 {
		return ""
	}
	indexes := slices.Sorted(maps.Keys(params))
	formats := make([]string, 0, len(indexes))
	argv := make([]string, 0, len(indexes))
	for _, i := range indexes {
		formats = append(formats, params[i])
		argv = append(argv, fmt.Sprintf("arg%d", i))
	}

	return fmt.Sprintf(" \"%s\", %s", strings.Join(formats, " "), strings.Join(argv, ", "))
}
