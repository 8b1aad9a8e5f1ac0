package hemlock

import (
	"bytes"
	"fmt"
	"io"
)

// sectionOrder is the fixed layout of the emitted translation unit. Every
// procedure is forward-declared before any body, so lowering order never
// constrains call order.
type sections struct {
	externDecls     bytes.Buffer
	mainGlobals     bytes.Buffer
	closureDecls    bytes.Buffer
	moduleGlobals   bytes.Buffer
	moduleFnDecls   bytes.Buffer
	moduleInitDecls bytes.Buffer
	mainFnDecls     bytes.Buffer
	closureImpls    bytes.Buffer
	externWrappers  bytes.Buffer
	moduleImpls     bytes.Buffer
	moduleInits     bytes.Buffer
	mainFnImpls     bytes.Buffer
	mainBody        bytes.Buffer
}

// Generate lowers the main program and every module reachable through its
// imports into a single C translation unit written to out.
func (cg *Codegen) Generate(program *Block, mainPath string, out io.Writer) error {
	cg.mainPath = mainPath
	var sec sections

	if err := cg.prepassMain(program); err != nil {
		return err
	}
	for _, mod := range cg.cache.Modules() {
		cg.prepassModule(mod)
	}

	// module procedures and init bodies
	for _, mod := range cg.cache.Modules() {
		if err := cg.lowerModule(mod, &sec); err != nil {
			return err
		}
	}

	// main-file named functions
	for _, stmt := range program.Statements {
		fn, ok := unwrapExport(stmt).(*FunctionDefStmt)
		if !ok {
			continue
		}
		err := cg.withBuffer(&sec.mainFnImpls, func() error {
			sig := cg.fnSignature("hml_fn_"+fn.Name.Value, fn.Params)
			cg.w("%s {", sig)
			cg.indentInc()
			if err := cg.lowerFunctionBody(fn.Params, fn.Body, nil, nil); err != nil {
				return err
			}
			cg.indentDec()
			cg.w("}")
			cg.w("")
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(&sec.mainFnDecls, "%s;\n", cg.fnSignature("hml_fn_"+fn.Name.Value, fn.Params))
	}

	// main body
	err := cg.withBuffer(&sec.mainBody, func() error {
		cg.indent = 1
		for _, stmt := range program.Statements {
			if err := cg.stmt(stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	// closures to a fixed point: emitting one body can discover more
	for i := 0; i < len(cg.closures); i++ {
		rec := cg.closures[i]
		if rec.Emitted {
			continue
		}
		rec.Emitted = true
		if err := cg.emitClosure(rec, &sec.closureImpls); err != nil {
			return err
		}
	}
	for _, rec := range cg.closures {
		fmt.Fprintf(&sec.closureDecls, "%s;\n", cg.fnSignature(rec.Name, rec.Fn.Params))
		fmt.Fprintf(&sec.closureDecls, "static HmlValue %s(HmlValue *_args, int _nargs, void *_env);\n",
			rec.wrapperName())
	}

	cg.emitExterns(&sec)

	for _, name := range cg.mainVars {
		fmt.Fprintf(&sec.mainGlobals, "static HmlValue _main_%s;\n", name)
	}

	return cg.assemble(&sec, out)
}

func unwrapExport(stmt Stmt) Stmt {
	if exp, ok := stmt.(*ExportStmt); ok && exp.Decl != nil {
		return exp.Decl
	}
	return stmt
}

// prepassMain registers every main-file top-level binding before lowering,
// so forward references and the _main_ promotion resolve.
func (cg *Codegen) prepassMain(program *Block) error {
	for _, stmt := range program.Statements {
		switch s := unwrapExport(stmt).(type) {
		case *VarDeclareStmt:
			cg.addMainVar(s.Name.Value)
			if s.IsConst {
				cg.mainConsts[s.Name.Value] = true
			}
		case *FunctionDefStmt:
			cg.addMainVar(s.Name.Value)
			cg.mainFuncs[s.Name.Value] = len(s.Params)
		case *EnumStmt:
			_, byName := enumValues(s)
			cg.enums[s.Name.Value] = byName
			cg.addMainVar(s.Name.Value)
		case *TypeDefStmt:
			cg.typeDefs[s.Name.Value] = s.Target
		case *ExternFnStmt:
			cg.externs = append(cg.externs, s)
		case *ImportStmt:
			if err := cg.importMain(s); err != nil {
				return err
			}
		}
	}
	return nil
}

// importMain compiles one of the main file's imports and records its
// bindings, mirroring what module compilation does for nested imports.
func (cg *Codegen) importMain(s *ImportStmt) error {
	path, err := cg.cache.Resolve(cg.mainPath, s.Path)
	if err != nil {
		return NewCompileError(err.Error(), s.Token.Loc)
	}
	dep, err := cg.cache.Compile(path)
	if err != nil {
		if herr, ok := err.(Error); ok {
			return herr
		}
		return NewCompileError(err.Error(), s.Token.Loc)
	}
	if s.IsNamespace {
		cg.mainNamespaces[s.NamespaceName] = dep
		return nil
	}
	for _, n := range s.Names {
		exp := dep.FindExport(n.Name)
		if exp == nil {
			return NewCompileErrorf(s.Token.Loc,
				"module %q has no export %q", s.Path, n.Name)
		}
		local := n.Name
		if n.Alias != "" {
			local = n.Alias
		}
		cg.mainImports = append(cg.mainImports, &ImportBinding{
			LocalName:    local,
			OriginalName: exp.Name,
			ModulePrefix: dep.Prefix,
			IsFunction:   exp.IsFunction,
			NumParams:    exp.NumParams,
			Module:       dep,
		})
	}
	return nil
}

// prepassModule registers module enums and externs for lowering. Enums are
// keyed on their owning module so two modules can declare the same name.
func (cg *Codegen) prepassModule(mod *Module) {
	for _, stmt := range mod.Body.Statements {
		switch s := unwrapExport(stmt).(type) {
		case *EnumStmt:
			_, byName := enumValues(s)
			mod.Enums[s.Name.Value] = byName
		case *ExternFnStmt:
			cg.externs = append(cg.externs, s)
		}
	}
}

// enumValues resolves member values: explicit integers are taken as given,
// auto members continue counting from the previous value.
func enumValues(s *EnumStmt) ([]int64, map[string]int64) {
	ordered := make([]int64, len(s.Members))
	byName := make(map[string]int64, len(s.Members))
	next := int64(0)
	for i, m := range s.Members {
		if m.Value != nil {
			next = *m.Value
		}
		ordered[i] = next
		byName[m.Name.Value] = next
		next++
	}
	return ordered, byName
}

func (cg *Codegen) lowerModule(mod *Module, sec *sections) error {
	for _, name := range mod.TopLevel {
		fmt.Fprintf(&sec.moduleGlobals, "static HmlValue %s%s;\n", mod.Prefix, name)
	}
	fmt.Fprintf(&sec.moduleInitDecls, "void %sinit(void);\n", mod.Prefix)

	// both declaration forms get a procedure: `fn name(...)` and a
	// function-valued `let`, so import and namespace call sites can
	// direct-call either one
	for _, stmt := range mod.Body.Statements {
		var name string
		var params []*Param
		var body *Block
		switch d := unwrapExport(stmt).(type) {
		case *FunctionDefStmt:
			name, params, body = d.Name.Value, d.Params, d.Body
		case *VarDeclareStmt:
			fn, ok := d.Value.(*FunctionExpr)
			if !ok {
				continue
			}
			name, params, body = d.Name.Value, fn.Params, fn.Body
		default:
			continue
		}
		sig := cg.fnSignature(mod.Prefix+"fn_"+name, params)
		fmt.Fprintf(&sec.moduleFnDecls, "%s;\n", sig)
		err := cg.withBuffer(&sec.moduleImpls, func() error {
			cg.w("%s {", sig)
			cg.indentInc()
			if err := cg.lowerFunctionBody(params, body, nil, mod); err != nil {
				return err
			}
			cg.indentDec()
			cg.w("}")
			cg.w("")
			return nil
		})
		if err != nil {
			return err
		}
	}

	// the init procedure runs the module's top-level code once, no matter
	// how many importers call it
	return cg.withBuffer(&sec.moduleInits, func() error {
		cg.w("void %sinit(void) {", mod.Prefix)
		cg.indentInc()
		cg.w("static int %sinit_done = 0;", mod.Prefix)
		cg.w("if (%sinit_done) return;", mod.Prefix)
		cg.w("%sinit_done = 1;", mod.Prefix)
		saved := cg.currentModule
		cg.currentModule = mod
		for _, stmt := range mod.Body.Statements {
			// a function-valued let binds the procedure emitted above, not a
			// second lowering of the literal
			if decl, ok := unwrapExport(stmt).(*VarDeclareStmt); ok {
				if fn, ok := decl.Value.(*FunctionExpr); ok {
					cg.w("%s%s = hml_val_function((HmlFn)%sfn_%s, %d);",
						mod.Prefix, decl.Name.Value, mod.Prefix, decl.Name.Value,
						countRequiredParams(fn.Params))
					continue
				}
			}
			if err := cg.stmt(stmt); err != nil {
				cg.currentModule = saved
				return err
			}
		}
		cg.currentModule = saved
		cg.indentDec()
		cg.w("}")
		cg.w("")
		return nil
	})
}

func (cg *Codegen) emitClosure(rec *ClosureRecord, buf *bytes.Buffer) error {
	return cg.withBuffer(buf, func() error {
		cg.w("%s {", cg.fnSignature(rec.Name, rec.Fn.Params))
		cg.indentInc()
		if err := cg.lowerFunctionBody(rec.Fn.Params, rec.Fn.Body, rec, rec.Module); err != nil {
			return err
		}
		cg.indentDec()
		cg.w("}")
		cg.w("")
		cg.w("static HmlValue %s(HmlValue *_args, int _nargs, void *_env) {", rec.wrapperName())
		call := fmt.Sprintf("    return %s((HmlClosureEnv *)_env", rec.Name)
		for i := range rec.Fn.Params {
			call += fmt.Sprintf(", _nargs > %d ? _args[%d] : hml_val_null()", i, i)
		}
		cg.w("%s);", call)
		cg.w("}")
		cg.w("")
		return nil
	})
}

func (cg *Codegen) fnSignature(symbol string, params []*Param) string {
	sig := fmt.Sprintf("HmlValue %s(HmlClosureEnv *_closure_env", symbol)
	for _, p := range params {
		sig += ", HmlValue " + p.Name.Value
	}
	return sig + ")"
}

// FFI

func (cg *Codegen) findExtern(name string) *ExternFnStmt {
	for _, e := range cg.externs {
		if e.Name.Value == name {
			return e
		}
	}
	return nil
}

func externCType(annotation string) string {
	switch annotation {
	case "string":
		return "const char *"
	case "f32", "f64", "number":
		return "double"
	case "ptr", "buffer":
		return "void *"
	case "void":
		return "void"
	default:
		return "long long"
	}
}

// emitExterns declares each foreign symbol and a wrapper converting
// between HmlValue and the annotated C types.
func (cg *Codegen) emitExterns(sec *sections) {
	seen := make(map[string]bool)
	for _, ext := range cg.externs {
		name := ext.Name.Value
		if seen[name] {
			continue
		}
		seen[name] = true

		decl := fmt.Sprintf("extern %s %s(", externCType(ext.ReturnType), name)
		for i, p := range ext.Params {
			if i > 0 {
				decl += ", "
			}
			decl += externCType(p.Type)
		}
		if len(ext.Params) == 0 {
			decl += "void"
		}
		fmt.Fprintf(&sec.externDecls, "%s);\n", decl)

		sig := fmt.Sprintf("static HmlValue hml_fn_%s(HmlClosureEnv *_closure_env", name)
		for _, p := range ext.Params {
			sig += ", HmlValue " + p.Name.Value
		}
		sig += ")"
		fmt.Fprintf(&sec.externDecls, "%s;\n", sig)

		w := &sec.externWrappers
		fmt.Fprintf(w, "%s {\n", sig)
		call := name + "("
		for i, p := range ext.Params {
			if i > 0 {
				call += ", "
			}
			call += externArg(p)
		}
		call += ")"
		switch ext.ReturnType {
		case "void", "":
			fmt.Fprintf(w, "    %s;\n", call)
			fmt.Fprintf(w, "    return hml_val_null();\n")
		case "string":
			fmt.Fprintf(w, "    return hml_val_cstring(%s);\n", call)
		case "f32", "f64", "number":
			fmt.Fprintf(w, "    return hml_val_float(%s);\n", call)
		case "ptr", "buffer":
			fmt.Fprintf(w, "    return hml_val_ptr(%s);\n", call)
		default:
			fmt.Fprintf(w, "    return hml_val_int(%s);\n", call)
		}
		fmt.Fprintf(w, "}\n\n")
	}
}

func externArg(p ExternParam) string {
	name := p.Name.Value
	switch p.Type {
	case "string":
		return fmt.Sprintf("hml_as_cstring(%s)", name)
	case "f32", "f64", "number":
		return fmt.Sprintf("hml_as_float(%s)", name)
	case "ptr", "buffer":
		return fmt.Sprintf("hml_as_ptr(%s)", name)
	case "bool":
		return fmt.Sprintf("(long long)hml_is_truthy(%s)", name)
	default:
		return fmt.Sprintf("hml_as_int(%s)", name)
	}
}

func (cg *Codegen) assemble(sec *sections, out io.Writer) error {
	var final bytes.Buffer
	final.WriteString("/* Generated by hemlockc. Do not edit. */\n")
	final.WriteString("#include <setjmp.h>\n")
	final.WriteString("#include \"hemlock_runtime.h\"\n\n")

	parts := []*bytes.Buffer{
		&sec.externDecls,
		&sec.mainGlobals,
		&sec.closureDecls,
		&sec.moduleGlobals,
		&sec.moduleFnDecls,
		&sec.moduleInitDecls,
		&sec.mainFnDecls,
		&sec.closureImpls,
		&sec.externWrappers,
		&sec.moduleImpls,
		&sec.moduleInits,
		&sec.mainFnImpls,
	}
	for _, part := range parts {
		if part.Len() == 0 {
			continue
		}
		final.Write(part.Bytes())
		final.WriteString("\n")
	}

	final.WriteString("int main(int argc, char **argv) {\n")
	final.WriteString("    hml_runtime_init(argc, argv);\n")
	final.Write(sec.mainBody.Bytes())
	final.WriteString("    hml_runtime_shutdown();\n")
	final.WriteString("    return 0;\n")
	final.WriteString("}\n")

	_, err := out.Write(final.Bytes())
	return err
}
