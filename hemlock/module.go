package hemlock

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"
)

type ModuleState int

const (
	ModuleUnloaded ModuleState = iota
	ModuleLoading
	ModuleLoaded
)

// Export is one symbol a module makes visible to importers. IsFunction and
// NumParams let call sites pad optional arguments without re-parsing the
// callee.
type Export struct {
	Name       string
	Mangled    string
	IsFunction bool
	NumParams  int
}

// ImportBinding maps a local name to the exporting module's mangled symbol.
type ImportBinding struct {
	LocalName    string
	OriginalName string
	ModulePrefix string
	IsFunction   bool
	NumParams    int
	Module       *Module
}

type Module struct {
	Path    string // canonical absolute path, the cache key
	Prefix  string // unique mangling prefix, e.g. "_mod1_"
	State   ModuleState
	Body    *Block
	Source  string
	Exports []*Export
	Imports []*ImportBinding

	// every top-level binding gets process-wide storage under the module
	// prefix, exported or not, because closures may read it from another
	// generated procedure
	TopLevel []string
	Consts   map[string]bool
	Funcs    map[string]int              // top-level fn name -> arity
	Enums    map[string]map[string]int64 // enum name -> member -> value

	// namespace alias -> imported module, for ns.symbol resolution
	Namespaces map[string]*Module
}

func (m *Module) FindExport(name string) *Export {
	for _, e := range m.Exports {
		if e.Name == name {
			return e
		}
	}
	return nil
}

func (m *Module) FindImport(localName string) *ImportBinding {
	for _, b := range m.Imports {
		if b.LocalName == localName {
			return b
		}
	}
	return nil
}

func (m *Module) IsTopLevel(name string) bool {
	for _, n := range m.TopLevel {
		if n == name {
			return true
		}
	}
	return false
}

// ModuleCache resolves, parses and compiles each imported module exactly
// once per lowering run. It owns every Module it hands out.
type ModuleCache struct {
	modules    map[string]*Module
	order      []*Module // insertion order, for deterministic emission
	counter    int
	stdlibRoot string
	mainDir    string
	loadStack  []string // active compilations, for cycle diagnostics
	log        commonlog.Logger
}

const stdlibAlias = "@stdlib/"
const fileExt = ".hml"

func NewModuleCache(mainDir, stdlibRoot string) *ModuleCache {
	if stdlibRoot == "" {
		stdlibRoot = defaultStdlibRoot()
	}
	return &ModuleCache{
		modules:    make(map[string]*Module),
		mainDir:    mainDir,
		stdlibRoot: stdlibRoot,
		log:        commonlog.GetLogger("hemlock.modules"),
	}
}

// defaultStdlibRoot looks next to the running executable, then falls back
// to the HEMLOCK_STDLIB environment variable.
func defaultStdlibRoot() string {
	if env := os.Getenv("HEMLOCK_STDLIB"); env != "" {
		return env
	}
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Join(filepath.Dir(exe), "stdlib")
}

func (c *ModuleCache) Modules() []*Module {
	return c.order
}

// Dep returns the already-compiled module an import resolves to, or nil.
func (c *ModuleCache) Dep(importerPath, spec string) *Module {
	path, err := c.Resolve(importerPath, spec)
	if err != nil {
		return nil
	}
	return c.modules[path]
}

// Resolve turns an import spelling into a canonical absolute path. Priority:
// the @stdlib/ alias, absolute paths, then paths relative to the importing
// file (or the main program's directory when there is no importer). The
// default extension is appended when missing and the result canonicalized
// so two spellings of the same file share one cache entry.
func (c *ModuleCache) Resolve(importerPath, spec string) (string, error) {
	var path string
	switch {
	case strings.HasPrefix(spec, stdlibAlias):
		if c.stdlibRoot == "" {
			return "", fmt.Errorf("cannot resolve %q: no stdlib root configured", spec)
		}
		path = filepath.Join(c.stdlibRoot, strings.TrimPrefix(spec, stdlibAlias))
	case filepath.IsAbs(spec):
		path = spec
	default:
		base := c.mainDir
		if importerPath != "" {
			base = filepath.Dir(importerPath)
		}
		path = filepath.Join(base, spec)
	}

	if filepath.Ext(path) == "" {
		path += fileExt
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("cannot resolve %q: %w", spec, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("cannot resolve import %q: %s not found", spec, abs)
	}
	return abs, nil
}

// Compile loads, parses and compiles the module at a canonical path. A
// LOADED module is returned from the cache as-is; finding the module in
// LOADING state means the dependency chain loops back into an unfinished
// compilation, which is a hard failure. Failures are never cached.
func (c *ModuleCache) Compile(path string) (*Module, error) {
	if mod, ok := c.modules[path]; ok {
		switch mod.State {
		case ModuleLoaded:
			c.log.Debugf("cache hit: %s", path)
			return mod, nil
		case ModuleLoading:
			return nil, fmt.Errorf("circular import: %s", c.cycleChain(path))
		}
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read module %s: %w", path, err)
	}

	lexer := NewLexer(path, string(source))
	tokens, lexRes := lexer.Tokenize()
	if lexRes.IsErr() {
		return nil, lexRes.Err
	}
	parsed := NewParser(tokens).Parse()
	if parsed.IsErr() {
		return nil, parsed.Err
	}

	c.counter++
	mod := &Module{
		Path:       path,
		Prefix:     fmt.Sprintf("_mod%d_", c.counter),
		State:      ModuleLoading,
		Body:       parsed.Value,
		Source:     string(source),
		Consts:     make(map[string]bool),
		Funcs:      make(map[string]int),
		Enums:      make(map[string]map[string]int64),
		Namespaces: make(map[string]*Module),
	}
	// insert before compiling dependencies so a cycle through this module
	// is detected instead of recursing forever
	c.modules[path] = mod
	c.order = append(c.order, mod)
	c.loadStack = append(c.loadStack, path)
	defer func() {
		c.loadStack = c.loadStack[:len(c.loadStack)-1]
	}()

	c.log.Debugf("compiling %s as %s", path, mod.Prefix)

	// pass 1: imports
	if err := c.collectImports(mod); err != nil {
		delete(c.modules, path)
		for i, m := range c.order {
			if m == mod {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
		return nil, err
	}
	// pass 2: exports and top-level bindings
	c.collectExports(mod)

	mod.State = ModuleLoaded
	return mod, nil
}

func (c *ModuleCache) cycleChain(repeat string) string {
	var parts []string
	started := false
	for _, p := range c.loadStack {
		if p == repeat {
			started = true
		}
		if started {
			parts = append(parts, filepath.Base(p))
		}
	}
	parts = append(parts, filepath.Base(repeat))
	return strings.Join(parts, " -> ")
}

func (c *ModuleCache) collectImports(mod *Module) error {
	for _, stmt := range mod.Body.Statements {
		imp, ok := stmt.(*ImportStmt)
		if !ok {
			continue
		}
		resolved, err := c.Resolve(mod.Path, imp.Path)
		if err != nil {
			return NewCompileError(err.Error(), imp.Token.Loc)
		}
		dep, err := c.Compile(resolved)
		if err != nil {
			return err
		}

		if imp.IsNamespace {
			mod.Namespaces[imp.NamespaceName] = dep
			continue
		}
		for _, name := range imp.Names {
			exp := dep.FindExport(name.Name)
			if exp == nil {
				return NewCompileErrorf(imp.Token.Loc, "module %s does not export %q", dep.Path, name.Name)
			}
			local := name.Name
			if name.Alias != "" {
				local = name.Alias
			}
			mod.Imports = append(mod.Imports, &ImportBinding{
				LocalName:    local,
				OriginalName: exp.Name,
				ModulePrefix: dep.Prefix,
				IsFunction:   exp.IsFunction,
				NumParams:    exp.NumParams,
				Module:       dep,
			})
		}
	}
	return nil
}

// collectExports handles the three export shapes: an explicit exported
// declaration, an explicit export list, and the implicit rule that any
// top-level function-valued binding is exported without boilerplate.
func (c *ModuleCache) collectExports(mod *Module) {
	addExport := func(name string, isFn bool, numParams int) {
		if mod.FindExport(name) != nil {
			return
		}
		mod.Exports = append(mod.Exports, &Export{
			Name:       name,
			Mangled:    mod.Prefix + name,
			IsFunction: isFn,
			NumParams:  numParams,
		})
	}

	recordDecl := func(decl Stmt) (name string, isFn bool, numParams int) {
		switch d := decl.(type) {
		case *VarDeclareStmt:
			mod.TopLevel = append(mod.TopLevel, d.Name.Value)
			if d.IsConst {
				mod.Consts[d.Name.Value] = true
			}
			if fn, ok := d.Value.(*FunctionExpr); ok {
				mod.Funcs[d.Name.Value] = len(fn.Params)
				return d.Name.Value, true, len(fn.Params)
			}
			return d.Name.Value, false, 0
		case *FunctionDefStmt:
			mod.TopLevel = append(mod.TopLevel, d.Name.Value)
			mod.Funcs[d.Name.Value] = len(d.Params)
			return d.Name.Value, true, len(d.Params)
		case *EnumStmt:
			mod.TopLevel = append(mod.TopLevel, d.Name.Value)
			return d.Name.Value, false, 0
		}
		return "", false, 0
	}

	// record every top-level binding first so export lists can reference
	// declarations appearing later in the file
	type pending struct {
		name      string
		isFn      bool
		numParams int
		explicit  bool
	}
	var decls []pending
	for _, stmt := range mod.Body.Statements {
		switch d := stmt.(type) {
		case *VarDeclareStmt, *FunctionDefStmt, *EnumStmt:
			name, isFn, numParams := recordDecl(d)
			decls = append(decls, pending{name, isFn, numParams, false})
		case *ExportStmt:
			if d.Decl != nil {
				name, isFn, numParams := recordDecl(d.Decl)
				decls = append(decls, pending{name, isFn, numParams, true})
			}
		}
	}

	// explicit exported declarations
	for _, d := range decls {
		if d.explicit && d.name != "" {
			addExport(d.name, d.isFn, d.numParams)
		}
	}

	// explicit export lists, possibly aliased
	for _, stmt := range mod.Body.Statements {
		exp, ok := stmt.(*ExportStmt)
		if !ok || exp.Decl != nil {
			continue
		}
		for _, n := range exp.Names {
			exported := n.Name
			if n.Alias != "" {
				exported = n.Alias
			}
			isFn := false
			numParams := 0
			if arity, ok := mod.Funcs[n.Name]; ok {
				isFn = true
				numParams = arity
			}
			mod.Exports = append(mod.Exports, &Export{
				Name:       exported,
				Mangled:    mod.Prefix + n.Name,
				IsFunction: isFn,
				NumParams:  numParams,
			})
		}
	}

	// implicit rule: top-level function values are exported anyway
	for _, d := range decls {
		if !d.explicit && d.isFn {
			addExport(d.name, true, d.numParams)
		}
	}
}
