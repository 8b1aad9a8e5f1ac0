package hemlock

import (
	"io"
	"os"
	"path/filepath"
)

// CompileSource runs the whole pipeline for one program: lex, parse, then
// lower into C written to out. path names the main file for diagnostics
// and for resolving relative imports; cache carries the compiled modules.
func CompileSource(path string, source string, cache *ModuleCache, out io.Writer) error {
	lexer := NewLexer(path, source)
	tokens, tokErr := lexer.Tokenize()
	if tokErr.IsErr() {
		return tokErr.Err
	}

	parser := NewParser(tokens)
	program := parser.Parse()
	if program.IsErr() {
		return program.Err
	}

	cg := NewCodegen(cache)
	return cg.Generate(program.Value, path, out)
}

// CompileFile compiles the Hemlock program at path into C source on out.
func CompileFile(path string, stdlibRoot string, out io.Writer) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	source, err := os.ReadFile(abs)
	if err != nil {
		return err
	}
	cache := NewModuleCache(filepath.Dir(abs), stdlibRoot)
	return CompileSource(abs, string(source), cache, out)
}
