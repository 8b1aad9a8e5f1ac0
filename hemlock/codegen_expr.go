package hemlock

import (
	"fmt"
	"strconv"
)

// expr lowers one expression, emitting statements into the current buffer
// and returning the name of the temp holding the owned result.
func (cg *Codegen) expr(expr Expr) (string, error) {
	switch e := expr.(type) {
	case *NumberExpr:
		t := cg.temp()
		if e.IsInt {
			cg.w("HmlValue %s = hml_val_int(%d);", t, int64(e.Value))
		} else {
			cg.w("HmlValue %s = hml_val_float(%s);", t, strconv.FormatFloat(e.Value, 'g', -1, 64))
		}
		return t, nil
	case *StringExpr:
		t := cg.temp()
		cg.w("HmlValue %s = hml_val_cstring(\"%s\");", t, escapeString(e.Value))
		return t, nil
	case *BooleanExpr:
		t := cg.temp()
		v := 0
		if e.Value {
			v = 1
		}
		cg.w("HmlValue %s = hml_val_bool(%d);", t, v)
		return t, nil
	case *NullExpr:
		t := cg.temp()
		cg.w("HmlValue %s = hml_val_null();", t)
		return t, nil
	case *IdentExpr:
		return cg.loadVar(e.Name.Value, e.Name.Loc)
	case *InterpExpr:
		return cg.interpExpr(e)
	case *BinaryOp:
		return cg.binaryExpr(e)
	case *LogicalOp:
		return cg.logicalExpr(e)
	case *CoalesceExpr:
		return cg.coalesceExpr(e)
	case *UnaryOp:
		return cg.unaryExpr(e)
	case *TernaryExpr:
		return cg.ternaryExpr(e)
	case *CallExpr:
		return cg.callExpr(e)
	case *IndexExpr:
		return cg.indexExpr(e)
	case *IndexAssignExpr:
		return cg.indexAssignExpr(e)
	case *DotExpr:
		return cg.dotExpr(e)
	case *SetAttrExpr:
		return cg.setAttrExpr(e)
	case *AssignExpr:
		return cg.assignExpr(e)
	case *ArrayExpr:
		return cg.arrayExpr(e)
	case *MapExpr:
		return cg.mapExpr(e)
	case *FunctionExpr:
		return cg.closureExpr(e)
	case *AwaitExpr:
		return cg.awaitExpr(e)
	case *PrefixIncExpr:
		return cg.incDecExpr(e.Target, e.Op.Value, true)
	case *PostfixIncExpr:
		return cg.incDecExpr(e.Target, e.Op.Value, false)
	default:
		// an unhandled node shape degrades to a marked null so the rest of
		// the translation unit still comes out usable
		cg.log.Warningf("no lowering rule for %T at %s", expr, expr.GetToken().Loc)
		t := cg.temp()
		cg.w("HmlValue %s = hml_val_null(); /* UNSUPPORTED %T */", t, expr)
		return t, nil
	}
}

// identifier loads and stores

// loadVar resolves an identifier and emits a retained load. Resolution
// order: catch-parameter shadows, locals, captured variables, import
// bindings, module top-level bindings, main-file bindings, builtins.
// Anything left over is a compile error rather than emitted C that fails
// later.
func (cg *Codegen) loadVar(name string, loc Loc) (string, error) {
	t := cg.temp()
	if cg.isShadow(name) {
		cg.w("HmlValue %s = %s;", t, name)
		cg.w("hml_retain(&%s);", t)
		return t, nil
	}
	if cg.isLocal(name) {
		if idx := cg.sharedIndex(name); idx >= 0 {
			cg.w("HmlValue %s = hml_closure_env_get(%s, %d);", t, cg.sharedEnv.varName(), idx)
		} else {
			cg.w("HmlValue %s = %s;", t, name)
		}
		cg.w("hml_retain(&%s);", t)
		return t, nil
	}
	if cg.currentClosure != nil {
		if idx := cg.currentClosure.captureIndex(name); idx >= 0 {
			cg.w("HmlValue %s = hml_closure_env_get(_closure_env, %d);", t, cg.closureSlot(idx))
			cg.w("hml_retain(&%s);", t)
			return t, nil
		}
	}
	if b := cg.findImport(name); b != nil {
		cg.w("HmlValue %s = %s%s;", t, b.ModulePrefix, b.OriginalName)
		cg.w("hml_retain(&%s);", t)
		return t, nil
	}
	if cg.currentModule != nil && cg.currentModule.IsTopLevel(name) {
		cg.w("HmlValue %s = %s%s;", t, cg.currentModule.Prefix, name)
		cg.w("hml_retain(&%s);", t)
		return t, nil
	}
	if cg.currentModule == nil && cg.isMainVar(name) {
		cg.w("HmlValue %s = _main_%s;", t, name)
		cg.w("hml_retain(&%s);", t)
		return t, nil
	}
	if _, ok := LookupBuiltin(name); ok {
		cg.w("HmlValue %s = hml_builtin_ref(\"%s\");", t, name)
		return t, nil
	}
	if ext := cg.findExtern(name); ext != nil {
		cg.w("HmlValue %s = hml_val_function((HmlFn)hml_fn_%s, %d);", t, name, len(ext.Params))
		return t, nil
	}
	return "", NewCompileErrorf(loc, "undefined identifier %q", name)
}

// storeVar emits a store of an owned temp into the named binding. The temp
// stays live as the assignment's value; storage takes its own reference.
func (cg *Codegen) storeVar(name, val string, loc Loc) error {
	if cg.isConstName(name) {
		return NewCompileErrorf(loc, "cannot assign to constant %q", name)
	}
	emitStore := func(storage string) {
		cg.w("hml_release(&%s);", storage)
		cg.w("%s = %s;", storage, val)
		cg.w("hml_retain(&%s);", storage)
	}
	if cg.isShadow(name) {
		emitStore(name)
		return nil
	}
	if cg.isLocal(name) {
		emitStore(name)
		if idx := cg.sharedIndex(name); idx >= 0 {
			cg.w("hml_closure_env_set(%s, %d, %s);", cg.sharedEnv.varName(), idx, name)
		}
		return nil
	}
	if cg.currentClosure != nil {
		if idx := cg.currentClosure.captureIndex(name); idx >= 0 {
			cg.w("hml_closure_env_set(_closure_env, %d, %s);", cg.closureSlot(idx), val)
			return nil
		}
	}
	if b := cg.findImport(name); b != nil {
		emitStore(b.ModulePrefix + b.OriginalName)
		return nil
	}
	if cg.currentModule != nil && cg.currentModule.IsTopLevel(name) {
		if cg.currentModule.Consts[name] {
			return NewCompileErrorf(loc, "cannot assign to constant %q", name)
		}
		emitStore(cg.currentModule.Prefix + name)
		return nil
	}
	if cg.currentModule == nil && cg.isMainVar(name) {
		if cg.mainConsts[name] {
			return NewCompileErrorf(loc, "cannot assign to constant %q", name)
		}
		emitStore("_main_" + name)
		return nil
	}
	if _, ok := LookupBuiltin(name); ok {
		return NewCompileErrorf(loc, "cannot assign to builtin %q", name)
	}
	return NewCompileErrorf(loc, "undefined identifier %q", name)
}

func (cg *Codegen) assignExpr(e *AssignExpr) (string, error) {
	t, err := cg.expr(e.Value)
	if err != nil {
		return "", err
	}
	if err := cg.storeVar(e.Name.Value, t, e.Name.Loc); err != nil {
		return "", err
	}
	return t, nil
}

// operators

func (cg *Codegen) binaryExpr(e *BinaryOp) (string, error) {
	l, err := cg.expr(e.Left)
	if err != nil {
		return "", err
	}
	r, err := cg.expr(e.Right)
	if err != nil {
		return "", err
	}
	t := cg.temp()
	switch e.Op.Value {
	case "+":
		cg.w("HmlValue %s = hml_add(%s, %s);", t, l, r)
	case "-":
		cg.w("HmlValue %s = hml_sub(%s, %s);", t, l, r)
	case "*":
		cg.w("HmlValue %s = hml_mul(%s, %s);", t, l, r)
	case "/":
		cg.w("HmlValue %s = hml_div(%s, %s);", t, l, r)
	case "%":
		cg.w("HmlValue %s = hml_mod(%s, %s);", t, l, r)
	case "==":
		cg.w("HmlValue %s = hml_val_bool(hml_equals(%s, %s));", t, l, r)
	case "!=":
		cg.w("HmlValue %s = hml_val_bool(!hml_equals(%s, %s));", t, l, r)
	case "<":
		cg.w("HmlValue %s = hml_val_bool(hml_compare(%s, %s) < 0);", t, l, r)
	case "<=":
		cg.w("HmlValue %s = hml_val_bool(hml_compare(%s, %s) <= 0);", t, l, r)
	case ">":
		cg.w("HmlValue %s = hml_val_bool(hml_compare(%s, %s) > 0);", t, l, r)
	case ">=":
		cg.w("HmlValue %s = hml_val_bool(hml_compare(%s, %s) >= 0);", t, l, r)
	default:
		return "", NewCompileErrorf(e.Op.Loc, "unknown binary operator %q", e.Op.Value)
	}
	cg.w("hml_release(&%s);", l)
	cg.w("hml_release(&%s);", r)
	return t, nil
}

// logicalExpr short-circuits: the right operand is only evaluated when the
// left one does not decide the result.
func (cg *Codegen) logicalExpr(e *LogicalOp) (string, error) {
	l, err := cg.expr(e.Left)
	if err != nil {
		return "", err
	}
	cg.w("int %s_b = hml_is_truthy(%s);", l, l)
	cg.w("hml_release(&%s);", l)
	cond := fmt.Sprintf("%s_b", l)
	if e.Op.Value == "||" {
		cond = "!" + cond
	}
	cg.w("if (%s) {", cond)
	cg.indentInc()
	r, err := cg.expr(e.Right)
	if err != nil {
		return "", err
	}
	cg.w("%s_b = hml_is_truthy(%s);", l, r)
	cg.w("hml_release(&%s);", r)
	cg.indentDec()
	cg.w("}")
	t := cg.temp()
	cg.w("HmlValue %s = hml_val_bool(%s_b);", t, l)
	return t, nil
}

func (cg *Codegen) coalesceExpr(e *CoalesceExpr) (string, error) {
	l, err := cg.expr(e.Left)
	if err != nil {
		return "", err
	}
	t := cg.temp()
	cg.w("HmlValue %s;", t)
	cg.w("if (hml_is_null(%s)) {", l)
	cg.indentInc()
	cg.w("hml_release(&%s);", l)
	r, err := cg.expr(e.Right)
	if err != nil {
		return "", err
	}
	cg.w("%s = %s;", t, r)
	cg.indentDec()
	cg.w("} else {")
	cg.w("    %s = %s;", t, l)
	cg.w("}")
	return t, nil
}

func (cg *Codegen) unaryExpr(e *UnaryOp) (string, error) {
	o, err := cg.expr(e.Operand)
	if err != nil {
		return "", err
	}
	t := cg.temp()
	switch e.Op.Value {
	case "-":
		cg.w("HmlValue %s = hml_negate(%s);", t, o)
	case "!":
		cg.w("HmlValue %s = hml_val_bool(!hml_is_truthy(%s));", t, o)
	default:
		return "", NewCompileErrorf(e.Op.Loc, "unknown unary operator %q", e.Op.Value)
	}
	cg.w("hml_release(&%s);", o)
	return t, nil
}

func (cg *Codegen) ternaryExpr(e *TernaryExpr) (string, error) {
	c, err := cg.expr(e.Cond)
	if err != nil {
		return "", err
	}
	cg.w("int %s_b = hml_is_truthy(%s);", c, c)
	cg.w("hml_release(&%s);", c)
	t := cg.temp()
	cg.w("HmlValue %s;", t)
	cg.w("if (%s_b) {", c)
	cg.indentInc()
	a, err := cg.expr(e.Then)
	if err != nil {
		return "", err
	}
	cg.w("%s = %s;", t, a)
	cg.indentDec()
	cg.w("} else {")
	cg.indentInc()
	b, err := cg.expr(e.Else)
	if err != nil {
		return "", err
	}
	cg.w("%s = %s;", t, b)
	cg.indentDec()
	cg.w("}")
	return t, nil
}

// collections

func (cg *Codegen) arrayExpr(e *ArrayExpr) (string, error) {
	t := cg.temp()
	cg.w("HmlValue %s = hml_array_new(%d);", t, len(e.Elements))
	for _, elem := range e.Elements {
		v, err := cg.expr(elem)
		if err != nil {
			return "", err
		}
		cg.w("hml_array_push(%s, %s);", t, v)
		cg.w("hml_release(&%s);", v)
	}
	return t, nil
}

func (cg *Codegen) mapExpr(e *MapExpr) (string, error) {
	t := cg.temp()
	cg.w("HmlValue %s = hml_object_new();", t)
	for _, prop := range e.Properties {
		v, err := cg.expr(prop.Value)
		if err != nil {
			return "", err
		}
		cg.w("hml_object_set_field(%s, \"%s\", %s);", t, escapeString(prop.Key), v)
		cg.w("hml_release(&%s);", v)
	}
	return t, nil
}

// emitIndexLoad declares t and fills it from coll[idx], branching on the
// collection's runtime type tag.
func (cg *Codegen) emitIndexLoad(t, coll, idx string) {
	cg.w("HmlValue %s;", t)
	cg.w("if (hml_type_tag(%s) == HML_VAL_ARRAY) {", coll)
	cg.w("    %s = hml_array_get(%s, hml_as_int(%s));", t, coll, idx)
	cg.w("} else if (hml_type_tag(%s) == HML_VAL_OBJECT) {", coll)
	cg.w("    %s = hml_object_get(%s, %s);", t, coll, idx)
	cg.w("} else if (hml_type_tag(%s) == HML_VAL_STRING) {", coll)
	cg.w("    %s = hml_string_index(%s, hml_as_int(%s));", t, coll, idx)
	cg.w("} else if (hml_type_tag(%s) == HML_VAL_BUFFER) {", coll)
	cg.w("    %s = hml_buffer_get(%s, hml_as_int(%s));", t, coll, idx)
	cg.w("} else {")
	cg.w("    hml_throw(hml_val_cstring(\"value is not indexable\"));")
	cg.w("}")
}

func (cg *Codegen) emitIndexStore(coll, idx, val string) {
	cg.w("if (hml_type_tag(%s) == HML_VAL_ARRAY) {", coll)
	cg.w("    hml_array_set(%s, hml_as_int(%s), %s);", coll, idx, val)
	cg.w("} else if (hml_type_tag(%s) == HML_VAL_OBJECT) {", coll)
	cg.w("    hml_object_set(%s, %s, %s);", coll, idx, val)
	cg.w("} else if (hml_type_tag(%s) == HML_VAL_BUFFER) {", coll)
	cg.w("    hml_buffer_set(%s, hml_as_int(%s), %s);", coll, idx, val)
	cg.w("} else {")
	cg.w("    hml_throw(hml_val_cstring(\"value is not indexable\"));")
	cg.w("}")
}

func (cg *Codegen) indexExpr(e *IndexExpr) (string, error) {
	coll, err := cg.expr(e.Collection)
	if err != nil {
		return "", err
	}
	idx, err := cg.expr(e.Index)
	if err != nil {
		return "", err
	}
	t := cg.temp()
	cg.emitIndexLoad(t, coll, idx)
	cg.w("hml_release(&%s);", coll)
	cg.w("hml_release(&%s);", idx)
	return t, nil
}

func (cg *Codegen) indexAssignExpr(e *IndexAssignExpr) (string, error) {
	coll, err := cg.expr(e.Collection)
	if err != nil {
		return "", err
	}
	idx, err := cg.expr(e.Index)
	if err != nil {
		return "", err
	}
	val, err := cg.expr(e.Value)
	if err != nil {
		return "", err
	}
	cg.emitIndexStore(coll, idx, val)
	cg.w("hml_release(&%s);", coll)
	cg.w("hml_release(&%s);", idx)
	return val, nil
}

// dotExpr resolves, in order: imported namespace members, enum constants,
// builtin properties, then a plain object field read.
func (cg *Codegen) dotExpr(e *DotExpr) (string, error) {
	attr := e.Attr.Value
	if ident, ok := e.Obj.(*IdentExpr); ok && !cg.isShadow(ident.Name.Value) && !cg.isLocal(ident.Name.Value) {
		name := ident.Name.Value
		if dep := cg.findNamespace(name); dep != nil {
			exp := dep.FindExport(attr)
			if exp == nil {
				return "", NewCompileErrorf(e.Attr.Loc, "module %q has no export %q", name, attr)
			}
			t := cg.temp()
			cg.w("HmlValue %s = %s;", t, exp.Mangled)
			cg.w("hml_retain(&%s);", t)
			return t, nil
		}
		var members map[string]int64
		if cg.currentModule != nil {
			members = cg.currentModule.Enums[name]
		} else {
			members = cg.enums[name]
		}
		if members != nil {
			v, ok := members[attr]
			if !ok {
				return "", NewCompileErrorf(e.Attr.Loc, "enum %q has no member %q", name, attr)
			}
			t := cg.temp()
			cg.w("HmlValue %s = hml_val_int(%d);", t, v)
			return t, nil
		}
	}
	obj, err := cg.expr(e.Obj)
	if err != nil {
		return "", err
	}
	t := cg.temp()
	if sym, ok := lookupProperty(attr); ok {
		cg.w("HmlValue %s = %s(%s);", t, sym, obj)
	} else {
		cg.w("HmlValue %s = hml_object_get_field(%s, \"%s\");", t, obj, escapeString(attr))
	}
	cg.w("hml_release(&%s);", obj)
	return t, nil
}

func (cg *Codegen) setAttrExpr(e *SetAttrExpr) (string, error) {
	obj, err := cg.expr(e.Obj)
	if err != nil {
		return "", err
	}
	val, err := cg.expr(e.Value)
	if err != nil {
		return "", err
	}
	cg.w("hml_object_set_field(%s, \"%s\", %s);", obj, escapeString(e.Attr.Value), val)
	cg.w("hml_release(&%s);", obj)
	return val, nil
}

// calls

func (cg *Codegen) callExpr(e *CallExpr) (string, error) {
	switch callee := e.Callee.(type) {
	case *IdentExpr:
		return cg.namedCallExpr(e, callee)
	case *DotExpr:
		return cg.methodCallExpr(e, callee)
	}
	f, err := cg.expr(e.Callee)
	if err != nil {
		return "", err
	}
	return cg.genericCall(f, e.Arguments)
}

// namedCallExpr tries the static call paths: a known function behind an
// import binding, a builtin, or a top-level function of the current scope.
// Everything else goes through the generic caller on the loaded value.
func (cg *Codegen) namedCallExpr(e *CallExpr, callee *IdentExpr) (string, error) {
	name := callee.Name.Value
	bound := cg.isShadow(name) || cg.isLocal(name) ||
		(cg.currentClosure != nil && cg.currentClosure.captureIndex(name) >= 0)
	if !bound {
		if b := cg.findImport(name); b != nil {
			if b.IsFunction {
				return cg.directCall(e, b.ModulePrefix+"fn_"+b.OriginalName, b.NumParams)
			}
		} else if blt, ok := LookupBuiltin(name); ok {
			return cg.builtinCall(e, blt)
		} else if ext := cg.findExtern(name); ext != nil {
			return cg.directCall(e, "hml_fn_"+name, len(ext.Params))
		} else if cg.currentModule != nil {
			if arity, ok := cg.currentModule.Funcs[name]; ok {
				return cg.directCall(e, cg.currentModule.Prefix+"fn_"+name, arity)
			}
		} else if arity, ok := cg.mainFuncs[name]; ok {
			return cg.directCall(e, "hml_fn_"+name, arity)
		}
	}
	f, err := cg.loadVar(name, callee.Name.Loc)
	if err != nil {
		return "", err
	}
	return cg.genericCall(f, e.Arguments)
}

// directCall invokes a lowered function procedure. Missing trailing
// arguments are padded with null so parameter defaults kick in.
func (cg *Codegen) directCall(e *CallExpr, symbol string, numParams int) (string, error) {
	if len(e.Arguments) > numParams {
		return "", NewCompileErrorf(e.Token.Loc,
			"too many arguments: %d given, %d expected", len(e.Arguments), numParams)
	}
	args, err := cg.exprList(e.Arguments)
	if err != nil {
		return "", err
	}
	t := cg.temp()
	call := fmt.Sprintf("HmlValue %s = %s(NULL", t, symbol)
	for _, a := range args {
		call += ", " + a
	}
	for i := len(args); i < numParams; i++ {
		call += ", hml_val_null()"
	}
	cg.w("%s);", call)
	cg.releaseAll(args)
	return t, nil
}

func (cg *Codegen) builtinCall(e *CallExpr, b Builtin) (string, error) {
	if len(e.Arguments) > b.Arity || (!b.Variadic && len(e.Arguments) < b.Arity) {
		return "", NewCompileErrorf(e.Token.Loc,
			"%s expects %d argument(s), got %d", b.Name, b.Arity, len(e.Arguments))
	}
	args, err := cg.exprList(e.Arguments)
	if err != nil {
		return "", err
	}
	t := cg.temp()
	call := fmt.Sprintf("HmlValue %s = %s(", t, b.Symbol)
	for i, a := range args {
		if i > 0 {
			call += ", "
		}
		call += a
	}
	for i := len(args); i < b.Arity; i++ {
		if i > 0 {
			call += ", "
		}
		call += "hml_val_null()"
	}
	cg.w("%s);", call)
	cg.releaseAll(args)
	return t, nil
}

// methodCallExpr lowers obj.name(args). Namespace members call through the
// module's procedure; recognized methods use their catalog entry; anything
// else becomes a dynamic method dispatch.
func (cg *Codegen) methodCallExpr(e *CallExpr, callee *DotExpr) (string, error) {
	attr := callee.Attr.Value
	if ident, ok := callee.Obj.(*IdentExpr); ok && !cg.isShadow(ident.Name.Value) && !cg.isLocal(ident.Name.Value) {
		if dep := cg.findNamespace(ident.Name.Value); dep != nil {
			exp := dep.FindExport(attr)
			if exp == nil {
				return "", NewCompileErrorf(callee.Attr.Loc,
					"module %q has no export %q", ident.Name.Value, attr)
			}
			if exp.IsFunction {
				return cg.directCall(e, dep.Prefix+"fn_"+exp.Name, exp.NumParams)
			}
			t := cg.temp()
			cg.w("HmlValue %s = %s;", t, exp.Mangled)
			cg.w("hml_retain(&%s);", t)
			return cg.genericCall(t, e.Arguments)
		}
	}
	obj, err := cg.expr(callee.Obj)
	if err != nil {
		return "", err
	}
	if m, ok := LookupMethod(attr, len(e.Arguments)); ok {
		args, err := cg.exprList(e.Arguments)
		if err != nil {
			return "", err
		}
		t := cg.temp()
		argstr := obj
		for _, a := range args {
			argstr += ", " + a
		}
		switch m.Shape {
		case MethodDirect:
			cg.w("HmlValue %s = %s(%s);", t, m.Symbol, argstr)
		case MethodVoid:
			cg.w("%s(%s);", m.Symbol, argstr)
			cg.w("HmlValue %s = hml_val_null();", t)
		case MethodDual:
			cg.w("HmlValue %s;", t)
			cg.w("if (hml_type_tag(%s) == HML_VAL_STRING) {", obj)
			cg.w("    %s = %s(%s);", t, m.StringSymbol, argstr)
			cg.w("} else {")
			cg.w("    %s = %s(%s);", t, m.Symbol, argstr)
			cg.w("}")
		}
		cg.w("hml_release(&%s);", obj)
		cg.releaseAll(args)
		return t, nil
	}
	args, err := cg.exprList(e.Arguments)
	if err != nil {
		return "", err
	}
	t := cg.temp()
	if len(args) == 0 {
		cg.w("HmlValue %s = hml_call_method(%s, \"%s\", NULL, 0);", t, obj, escapeString(attr))
	} else {
		cg.w("HmlValue %s_args[%d];", t, len(args))
		for i, a := range args {
			cg.w("%s_args[%d] = %s;", t, i, a)
		}
		cg.w("HmlValue %s = hml_call_method(%s, \"%s\", %s_args, %d);",
			t, obj, escapeString(attr), t, len(args))
	}
	cg.w("hml_release(&%s);", obj)
	cg.releaseAll(args)
	return t, nil
}

// genericCall invokes a first-class function value, consuming it.
func (cg *Codegen) genericCall(fn string, argExprs []Expr) (string, error) {
	args, err := cg.exprList(argExprs)
	if err != nil {
		return "", err
	}
	t := cg.temp()
	if len(args) == 0 {
		cg.w("HmlValue %s = hml_call_function(%s, NULL, 0);", t, fn)
	} else {
		cg.w("HmlValue %s_args[%d];", t, len(args))
		for i, a := range args {
			cg.w("%s_args[%d] = %s;", t, i, a)
		}
		cg.w("HmlValue %s = hml_call_function(%s, %s_args, %d);", t, fn, t, len(args))
	}
	cg.w("hml_release(&%s);", fn)
	cg.releaseAll(args)
	return t, nil
}

func (cg *Codegen) exprList(exprs []Expr) ([]string, error) {
	var temps []string
	for _, e := range exprs {
		t, err := cg.expr(e)
		if err != nil {
			return nil, err
		}
		temps = append(temps, t)
	}
	return temps, nil
}

func (cg *Codegen) releaseAll(temps []string) {
	for _, t := range temps {
		cg.w("hml_release(&%s);", t)
	}
}

// closures

// closureExpr performs closure conversion for one function literal. The
// captured set is the literal's free variables that are bound in the
// enclosing function; main-file and module bindings resolve through their
// globals instead. The body is lowered later from the worklist.
func (cg *Codegen) closureExpr(fn *FunctionExpr) (string, error) {
	var captured []string
	for _, name := range FunctionFreeVars(fn) {
		if cg.isShadow(name) || cg.isLocal(name) ||
			(cg.currentClosure != nil && cg.currentClosure.captureIndex(name) >= 0) {
			captured = append(captured, name)
		}
	}
	rec := cg.registerClosure(fn, captured)
	nreq := countRequiredParams(fn.Params)
	t := cg.temp()
	cg.lastEnvID = -1
	cg.lastEnvCaptured = nil

	switch {
	case len(captured) == 0:
		cg.w("HmlValue %s = hml_val_closure(%s, NULL, %d);", t, rec.wrapperName(), nreq)
	case cg.allInSharedEnv(captured):
		rec.Shared = true
		rec.EnvID = cg.sharedEnv.id
		for _, name := range captured {
			rec.sharedSlots = append(rec.sharedSlots, cg.sharedEnv.index(name))
		}
		cg.w("HmlValue %s = hml_val_closure(%s, %s, %d);", t, rec.wrapperName(), cg.sharedEnv.varName(), nreq)
	default:
		envID := cg.envCount
		cg.envCount++
		rec.EnvID = envID
		cg.w("HmlClosureEnv *_env_%d = hml_closure_env_create(%d);", envID, len(captured))
		for i, name := range captured {
			cg.w("hml_closure_env_set(_env_%d, %d, %s);", envID, i, cg.captureSource(name))
		}
		cg.w("HmlValue %s = hml_val_closure(%s, _env_%d, %d);", t, rec.wrapperName(), envID, nreq)
		cg.lastEnvID = envID
		cg.lastEnvCaptured = captured
	}
	return t, nil
}

func (cg *Codegen) allInSharedEnv(names []string) bool {
	if cg.sharedEnv == nil {
		return false
	}
	for _, name := range names {
		if cg.sharedEnv.index(name) < 0 {
			return false
		}
	}
	return true
}

// captureSource yields a C expression reading a capture's current value at
// closure-creation time.
func (cg *Codegen) captureSource(name string) string {
	if cg.isShadow(name) {
		return name
	}
	if cg.isLocal(name) {
		if idx := cg.sharedIndex(name); idx >= 0 {
			return fmt.Sprintf("hml_closure_env_get(%s, %d)", cg.sharedEnv.varName(), idx)
		}
		return name
	}
	if cg.currentClosure != nil {
		if idx := cg.currentClosure.captureIndex(name); idx >= 0 {
			return fmt.Sprintf("hml_closure_env_get(_closure_env, %d)", cg.closureSlot(idx))
		}
	}
	return name
}

// strings and misc

func (cg *Codegen) interpExpr(e *InterpExpr) (string, error) {
	acc := cg.temp()
	cg.w("HmlValue %s = hml_val_cstring(\"%s\");", acc, escapeString(e.Parts[0]))
	for i, part := range e.Exprs {
		v, err := cg.expr(part)
		if err != nil {
			return "", err
		}
		s := cg.temp()
		cg.w("HmlValue %s = hml_to_string(%s);", s, v)
		cg.w("hml_release(&%s);", v)
		next := cg.temp()
		cg.w("HmlValue %s = hml_string_concat(%s, %s);", next, acc, s)
		cg.w("hml_release(&%s);", acc)
		cg.w("hml_release(&%s);", s)
		acc = next
		if e.Parts[i+1] != "" {
			lit := cg.temp()
			cg.w("HmlValue %s = hml_val_cstring(\"%s\");", lit, escapeString(e.Parts[i+1]))
			joined := cg.temp()
			cg.w("HmlValue %s = hml_string_concat(%s, %s);", joined, acc, lit)
			cg.w("hml_release(&%s);", acc)
			cg.w("hml_release(&%s);", lit)
			acc = joined
		}
	}
	return acc, nil
}

// awaitExpr joins a task value; anything else passes through unchanged.
func (cg *Codegen) awaitExpr(e *AwaitExpr) (string, error) {
	o, err := cg.expr(e.Operand)
	if err != nil {
		return "", err
	}
	t := cg.temp()
	cg.w("HmlValue %s;", t)
	cg.w("if (hml_type_tag(%s) == HML_VAL_TASK) {", o)
	cg.w("    %s = hml_join(%s);", t, o)
	cg.w("    hml_release(&%s);", o)
	cg.w("} else {")
	cg.w("    %s = %s;", t, o)
	cg.w("}")
	return t, nil
}

// incDecExpr lowers ++/-- with a single evaluation of the target's base.
// Prefix forms yield the updated value, postfix forms the original.
func (cg *Codegen) incDecExpr(target Expr, op string, prefix bool) (string, error) {
	fn := "hml_add"
	if op == "--" {
		fn = "hml_sub"
	}
	switch tgt := target.(type) {
	case *IdentExpr:
		name := tgt.Name.Value
		old, err := cg.loadVar(name, tgt.Name.Loc)
		if err != nil {
			return "", err
		}
		nv := cg.temp()
		cg.w("HmlValue %s = %s(%s, hml_val_int(1));", nv, fn, old)
		if err := cg.storeVar(name, nv, tgt.Name.Loc); err != nil {
			return "", err
		}
		if prefix {
			cg.w("hml_release(&%s);", old)
			return nv, nil
		}
		cg.w("hml_release(&%s);", nv)
		return old, nil
	case *IndexExpr:
		coll, err := cg.expr(tgt.Collection)
		if err != nil {
			return "", err
		}
		idx, err := cg.expr(tgt.Index)
		if err != nil {
			return "", err
		}
		old := cg.temp()
		cg.emitIndexLoad(old, coll, idx)
		nv := cg.temp()
		cg.w("HmlValue %s = %s(%s, hml_val_int(1));", nv, fn, old)
		cg.emitIndexStore(coll, idx, nv)
		cg.w("hml_release(&%s);", coll)
		cg.w("hml_release(&%s);", idx)
		if prefix {
			cg.w("hml_release(&%s);", old)
			return nv, nil
		}
		cg.w("hml_release(&%s);", nv)
		return old, nil
	case *DotExpr:
		obj, err := cg.expr(tgt.Obj)
		if err != nil {
			return "", err
		}
		attr := escapeString(tgt.Attr.Value)
		old := cg.temp()
		cg.w("HmlValue %s = hml_object_get_field(%s, \"%s\");", old, obj, attr)
		nv := cg.temp()
		cg.w("HmlValue %s = %s(%s, hml_val_int(1));", nv, fn, old)
		cg.w("hml_object_set_field(%s, \"%s\", %s);", obj, attr, nv)
		cg.w("hml_release(&%s);", obj)
		if prefix {
			cg.w("hml_release(&%s);", old)
			return nv, nil
		}
		cg.w("hml_release(&%s);", nv)
		return old, nil
	default:
		return "", NewCompileErrorf(target.GetToken().Loc, "invalid %s target", op)
	}
}
