package hemlock

import "fmt"

func (cg *Codegen) block(b *Block) error {
	mark := cg.scopeMark()
	for _, stmt := range b.Statements {
		if err := cg.stmt(stmt); err != nil {
			return err
		}
	}
	cg.scopeRelease(mark)
	return nil
}

func (cg *Codegen) stmt(stmt Stmt) error {
	cg.lastEnvID = -1
	cg.lastEnvCaptured = nil

	switch s := stmt.(type) {
	case *Block:
		cg.w("{")
		cg.indentInc()
		err := cg.block(s)
		cg.indentDec()
		cg.w("}")
		return err
	case *VarDeclareStmt:
		return cg.varDeclareStmt(s)
	case *ExprStmt:
		t, err := cg.expr(s.Expression)
		if err != nil {
			return err
		}
		cg.w("hml_release(&%s);", t)
		return nil
	case *IfStmt:
		return cg.ifStmt(s)
	case *WhileStmt:
		return cg.whileStmt(s)
	case *ForStmt:
		return cg.forStmt(s)
	case *ForInStmt:
		return cg.forInStmt(s)
	case *SwitchStmt:
		return cg.switchStmt(s)
	case *TryStmt:
		return cg.tryStmt(s)
	case *ThrowStmt:
		t, err := cg.expr(s.Value)
		if err != nil {
			return err
		}
		cg.w("hml_throw(%s);", t)
		return nil
	case *DeferStmt:
		return cg.deferStmt(s)
	case *BreakStmt:
		cg.w("break;")
		return nil
	case *ContinueStmt:
		if n := len(cg.loops); n > 0 && cg.loops[n-1].continueLabel != "" {
			cg.w("goto %s;", cg.loops[n-1].continueLabel)
		} else {
			cg.w("continue;")
		}
		return nil
	case *ReturnStmt:
		return cg.returnStmt(s)
	case *FunctionDefStmt:
		return cg.functionDefStmt(s)
	case *EnumStmt:
		return cg.enumStmt(s)
	case *TypeDefStmt:
		cg.typeDefs[s.Name.Value] = s.Target
		return nil
	case *ImportStmt:
		return cg.importStmt(s)
	case *ExportStmt:
		if s.Decl != nil {
			return cg.stmt(s.Decl)
		}
		return nil
	case *ExternFnStmt:
		// declaration handled by the assembler; nothing runs here
		return nil
	default:
		cg.log.Warningf("no lowering rule for %T at %s", stmt, stmt.GetToken().Loc)
		cg.w("; /* UNSUPPORTED %T */", stmt)
		return nil
	}
}

func (cg *Codegen) varDeclareStmt(s *VarDeclareStmt) error {
	// a recursive literal refers to the name it is being bound to, so the
	// binding must be visible to capture analysis before the initializer
	_, selfRef := s.Value.(*FunctionExpr)
	if selfRef && cg.inFunction {
		cg.declareLocal(s.Name.Value)
	}

	var t string
	if s.Value != nil {
		var err error
		t, err = cg.expr(s.Value)
		if err != nil {
			return err
		}
	} else {
		t = cg.temp()
		cg.w("HmlValue %s = hml_val_null();", t)
	}

	name := s.Name.Value
	switch {
	case cg.inFunction:
		if !selfRef {
			cg.declareLocal(name)
		}
		if s.IsConst {
			cg.consts[name] = true
		}
		cg.w("HmlValue %s = %s;", name, t)
		if idx := cg.sharedIndex(name); idx >= 0 {
			cg.w("hml_closure_env_set(%s, %d, %s);", cg.sharedEnv.varName(), idx, name)
		}
	case cg.currentModule != nil:
		cg.w("%s%s = %s;", cg.currentModule.Prefix, name, t)
	default:
		cg.addMainVar(name)
		if s.IsConst {
			cg.mainConsts[name] = true
		}
		cg.w("_main_%s = %s;", name, t)
	}

	// a closure bound to the name it captures needs one corrective store,
	// since its environment was populated before the binding existed
	if _, isFn := s.Value.(*FunctionExpr); isFn && cg.lastEnvID >= 0 {
		for i, cap := range cg.lastEnvCaptured {
			if cap == name {
				src, err := cg.loadVar(name, s.Name.Loc)
				if err != nil {
					return err
				}
				cg.w("hml_closure_env_set(_env_%d, %d, %s);", cg.lastEnvID, i, src)
				cg.w("hml_release(&%s);", src)
			}
		}
	}
	return nil
}

// enumStmt materializes the enum as an object of integer members, so
// namespace and first-class uses read real values. Same-scope member access
// still folds to the constant at lowering time.
func (cg *Codegen) enumStmt(s *EnumStmt) error {
	ordered, byName := enumValues(s)
	name := s.Name.Value
	var storage string
	switch {
	case cg.inFunction:
		cg.declareLocal(name)
		cg.w("HmlValue %s = hml_object_new();", name)
		storage = name
	case cg.currentModule != nil:
		cg.currentModule.Enums[name] = byName
		storage = cg.currentModule.Prefix + name
		cg.w("%s = hml_object_new();", storage)
	default:
		cg.enums[name] = byName
		cg.addMainVar(name)
		storage = "_main_" + name
		cg.w("%s = hml_object_new();", storage)
	}
	for i, m := range s.Members {
		cg.w("hml_object_set_field(%s, \"%s\", hml_val_int(%d));",
			storage, escapeString(m.Name.Value), ordered[i])
	}
	if cg.inFunction {
		if idx := cg.sharedIndex(name); idx >= 0 {
			cg.w("hml_closure_env_set(%s, %d, %s);", cg.sharedEnv.varName(), idx, name)
		}
	}
	return nil
}

func (cg *Codegen) ifStmt(s *IfStmt) error {
	t, err := cg.expr(s.Condition)
	if err != nil {
		return err
	}
	cg.w("int %s_b = hml_is_truthy(%s);", t, t)
	cg.w("hml_release(&%s);", t)
	cg.w("if (%s_b) {", t)
	cg.indentInc()
	if err := cg.block(s.ThenBranch); err != nil {
		return err
	}
	cg.indentDec()
	if s.ElseBranch != nil {
		cg.w("} else {")
		cg.indentInc()
		if err := cg.stmtInBlock(s.ElseBranch); err != nil {
			return err
		}
		cg.indentDec()
	}
	cg.w("}")
	return nil
}

// stmtInBlock lowers a statement that already sits inside emitted braces,
// avoiding a doubled pair for else branches.
func (cg *Codegen) stmtInBlock(stmt Stmt) error {
	if b, ok := stmt.(*Block); ok {
		return cg.block(b)
	}
	return cg.stmt(stmt)
}

// whileStmt re-evaluates the condition per iteration, so the lowered
// condition statements sit at the top of an unconditional loop.
func (cg *Codegen) whileStmt(s *WhileStmt) error {
	cg.w("while (1) {")
	cg.indentInc()
	t, err := cg.expr(s.Cond)
	if err != nil {
		return err
	}
	cg.w("if (!hml_is_truthy(%s)) { hml_release(&%s); break; }", t, t)
	cg.w("hml_release(&%s);", t)
	cg.loops = append(cg.loops, loopFrame{})
	cg.loopDepth++
	err = cg.block(s.Body)
	cg.loopDepth--
	cg.loops = cg.loops[:len(cg.loops)-1]
	if err != nil {
		return err
	}
	cg.indentDec()
	cg.w("}")
	return nil
}

func (cg *Codegen) forStmt(s *ForStmt) error {
	mark := cg.scopeMark()
	cg.w("{")
	cg.indentInc()
	if s.Init != nil {
		if err := cg.stmt(s.Init); err != nil {
			return err
		}
	}
	postLabel := fmt.Sprintf("_for_post_%d", cg.labelCount)
	cg.labelCount++
	cg.w("while (1) {")
	cg.indentInc()
	if s.Cond != nil {
		t, err := cg.expr(s.Cond)
		if err != nil {
			return err
		}
		cg.w("if (!hml_is_truthy(%s)) { hml_release(&%s); break; }", t, t)
		cg.w("hml_release(&%s);", t)
	}
	cg.loops = append(cg.loops, loopFrame{continueLabel: postLabel})
	cg.loopDepth++
	err := cg.block(s.Body)
	cg.loopDepth--
	cg.loops = cg.loops[:len(cg.loops)-1]
	if err != nil {
		return err
	}
	cg.w("%s:;", postLabel)
	if s.Post != nil {
		if err := cg.stmt(s.Post); err != nil {
			return err
		}
	}
	cg.indentDec()
	cg.w("}")
	cg.indentDec()
	cg.w("}")
	cg.scopeRelease(mark)
	return nil
}

// forInStmt iterates arrays as (index, element), objects as (key, value)
// and strings as (index, char); the single-variable form binds the element,
// key or char respectively.
func (cg *Codegen) forInStmt(s *ForInStmt) error {
	mark := cg.scopeMark()
	cg.w("{")
	cg.indentInc()
	it, err := cg.expr(s.Iterable)
	if err != nil {
		return err
	}
	cg.w("int %s_tag = hml_type_tag(%s);", it, it)
	cg.w("long long %s_len = 0;", it)
	cg.w("if (%s_tag == HML_VAL_ARRAY) {", it)
	cg.w("    %s_len = hml_array_length(%s);", it, it)
	cg.w("} else if (%s_tag == HML_VAL_OBJECT) {", it)
	cg.w("    %s_len = hml_object_field_count(%s);", it, it)
	cg.w("} else if (%s_tag == HML_VAL_STRING) {", it)
	cg.w("    %s_len = hml_string_length(%s);", it, it)
	cg.w("} else {")
	cg.w("    hml_throw(hml_val_cstring(\"value is not iterable\"));")
	cg.w("}")
	cg.w("for (long long %s_i = 0; %s_i < %s_len; %s_i++) {", it, it, it, it)
	cg.indentInc()

	key := s.KeyVar.Value
	cg.declareLocal(key)
	cg.w("HmlValue %s;", key)
	if s.ValueVar != nil {
		val := s.ValueVar.Value
		cg.declareLocal(val)
		cg.w("HmlValue %s;", val)
		cg.w("if (%s_tag == HML_VAL_ARRAY) {", it)
		cg.w("    %s = hml_val_int(%s_i);", key, it)
		cg.w("    %s = hml_array_get(%s, %s_i);", val, it, it)
		cg.w("} else if (%s_tag == HML_VAL_OBJECT) {", it)
		cg.w("    %s = hml_object_key_at(%s, %s_i);", key, it, it)
		cg.w("    %s = hml_object_value_at(%s, %s_i);", val, it, it)
		cg.w("} else {")
		cg.w("    %s = hml_val_int(%s_i);", key, it)
		cg.w("    %s = hml_string_index(%s, %s_i);", val, it, it)
		cg.w("}")
	} else {
		cg.w("if (%s_tag == HML_VAL_ARRAY) {", it)
		cg.w("    %s = hml_array_get(%s, %s_i);", key, it, it)
		cg.w("} else if (%s_tag == HML_VAL_OBJECT) {", it)
		cg.w("    %s = hml_object_key_at(%s, %s_i);", key, it, it)
		cg.w("} else {")
		cg.w("    %s = hml_string_index(%s, %s_i);", key, it, it)
		cg.w("}")
	}

	// captured loop variables are read through the shared environment, so
	// the fresh per-iteration values must land there too
	if idx := cg.sharedIndex(key); idx >= 0 {
		cg.w("hml_closure_env_set(%s, %d, %s);", cg.sharedEnv.varName(), idx, key)
	}
	if s.ValueVar != nil {
		if idx := cg.sharedIndex(s.ValueVar.Value); idx >= 0 {
			cg.w("hml_closure_env_set(%s, %d, %s);", cg.sharedEnv.varName(), idx, s.ValueVar.Value)
		}
	}

	cg.loops = append(cg.loops, loopFrame{})
	cg.loopDepth++
	err = cg.block(s.Body)
	cg.loopDepth--
	cg.loops = cg.loops[:len(cg.loops)-1]
	if err != nil {
		return err
	}
	cg.w("hml_release(&%s);", key)
	if s.ValueVar != nil {
		cg.w("hml_release(&%s);", s.ValueVar.Value)
	}
	cg.indentDec()
	cg.w("}")
	cg.w("hml_release(&%s);", it)
	cg.indentDec()
	cg.w("}")
	cg.scopeRelease(mark)
	return nil
}

// switchStmt lowers to a first-match if/else-if chain inside do/while(0),
// so a matching case body runs once and `break` leaves the construct. Every
// case value is evaluated once, in source order, before any comparison.
func (cg *Codegen) switchStmt(s *SwitchStmt) error {
	subj, err := cg.expr(s.Subject)
	if err != nil {
		return err
	}
	cg.w("do {")
	cg.indentInc()
	caseTemps := make([]string, len(s.Cases))
	for i, c := range s.Cases {
		ct, err := cg.expr(c.Value)
		if err != nil {
			return err
		}
		caseTemps[i] = ct
	}
	for i, c := range s.Cases {
		if i == 0 {
			cg.w("if (hml_equals(%s, %s)) {", subj, caseTemps[i])
		} else {
			cg.w("} else if (hml_equals(%s, %s)) {", subj, caseTemps[i])
		}
		cg.indentInc()
		if err := cg.block(c.Body); err != nil {
			return err
		}
		cg.indentDec()
	}
	if s.Default != nil {
		if len(s.Cases) == 0 {
			if err := cg.block(s.Default); err != nil {
				return err
			}
		} else {
			cg.w("} else {")
			cg.indentInc()
			if err := cg.block(s.Default); err != nil {
				return err
			}
			cg.indentDec()
			cg.w("}")
		}
	} else if len(s.Cases) > 0 {
		cg.w("}")
	}
	for _, ct := range caseTemps {
		cg.w("hml_release(&%s);", ct)
	}
	cg.indentDec()
	cg.w("} while (0);")
	cg.w("hml_release(&%s);", subj)
	return nil
}

func (cg *Codegen) tryStmt(s *TryStmt) error {
	n := cg.tryCount
	cg.tryCount++
	hasCatch := s.CatchBlock != nil
	hasFinally := s.FinallyBlock != nil

	if hasFinally {
		cg.w("HmlValue _try_ret_%d = hml_val_null();", n)
		cg.w("int _try_has_ret_%d = 0;", n)
		if !hasCatch {
			cg.w("HmlValue _exc_val_%d = hml_val_null();", n)
			cg.w("int _rethrow_%d = 0;", n)
		}
	}
	cg.w("HmlExceptionContext *_exc_ctx_%d = hml_exception_push();", n)
	cg.w("if (setjmp(_exc_ctx_%d->jmpbuf) == 0) {", n)
	cg.indentInc()
	if hasFinally {
		cg.tries = append(cg.tries, tryFrame{
			finallyLabel: fmt.Sprintf("_finally_%d", n),
			retVar:       fmt.Sprintf("_try_ret_%d", n),
			flagVar:      fmt.Sprintf("_try_has_ret_%d", n),
			ctxActive:    true,
		})
	}
	if err := cg.block(s.TryBlock); err != nil {
		return err
	}
	cg.w("hml_exception_pop();")
	cg.indentDec()
	cg.w("} else {")
	cg.indentInc()
	if hasFinally {
		cg.tries[len(cg.tries)-1].ctxActive = false
	}
	if hasCatch {
		param := s.CatchParam.Value
		cg.w("HmlValue %s = hml_exception_get_value();", param)
		cg.w("hml_exception_pop();")
		cg.pushShadow(param)
		err := cg.block(s.CatchBlock)
		cg.popShadow()
		if err != nil {
			return err
		}
		cg.w("hml_release(&%s);", param)
	} else {
		cg.w("_exc_val_%d = hml_exception_get_value();", n)
		cg.w("hml_exception_pop();")
		cg.w("_rethrow_%d = 1;", n)
	}
	cg.indentDec()
	cg.w("}")

	if hasFinally {
		cg.tries = cg.tries[:len(cg.tries)-1]
		cg.w("_finally_%d:;", n)
		if err := cg.block(s.FinallyBlock); err != nil {
			return err
		}
		if !hasCatch {
			cg.w("if (_rethrow_%d) {", n)
			cg.w("    hml_throw(_exc_val_%d);", n)
			cg.w("}")
		}
		cg.w("if (_try_has_ret_%d) {", n)
		cg.indentInc()
		if len(cg.tries) > 0 {
			outer := cg.tries[len(cg.tries)-1]
			cg.w("%s = _try_ret_%d;", outer.retVar, n)
			cg.w("%s = 1;", outer.flagVar)
			if outer.ctxActive {
				cg.w("hml_exception_pop();")
			}
			cg.w("goto %s;", outer.finallyLabel)
		} else if cg.inFunction {
			cg.w("return _try_ret_%d;", n)
		} else if cg.currentModule != nil {
			cg.w("hml_release(&_try_ret_%d);", n)
			cg.w("return;")
		} else {
			cg.w("hml_release(&_try_ret_%d);", n)
			cg.w("hml_runtime_shutdown();")
			cg.w("return 0;")
		}
		cg.indentDec()
		cg.w("}")
	}
	return nil
}

// deferStmt has two lowerings: outside loops the body joins a compile-time
// list re-emitted in reverse at every exit; inside loops the body becomes a
// closure pushed onto the runtime defer stack, since the pending count is
// only known at run time.
func (cg *Codegen) deferStmt(s *DeferStmt) error {
	if cg.loopDepth == 0 {
		cg.defers = append(cg.defers, deferEntry{body: s.Body})
		return nil
	}
	fn := &FunctionExpr{
		Token: s.Token,
		Body:  &Block{Token: s.Token, Statements: []Stmt{s.Body}},
	}
	t, err := cg.closureExpr(fn)
	if err != nil {
		return err
	}
	cg.w("hml_defer_push(%s);", t)
	cg.w("hml_release(&%s);", t)
	cg.runtimeDefers = true
	return nil
}

// emitExitDefers replays pending deferred statements, newest first, at one
// exit point. Runtime-stacked defers drain before the compile-time list
// because they were registered later.
func (cg *Codegen) emitExitDefers() error {
	if cg.runtimeDefers {
		cg.w("hml_defer_run_all();")
	}
	for i := len(cg.defers) - 1; i >= 0; i-- {
		if err := cg.stmt(cg.defers[i].body); err != nil {
			return err
		}
	}
	return nil
}

func (cg *Codegen) returnStmt(s *ReturnStmt) error {
	var t string
	if s.Value != nil {
		var err error
		t, err = cg.expr(s.Value)
		if err != nil {
			return err
		}
	} else {
		t = cg.temp()
		cg.w("HmlValue %s = hml_val_null();", t)
	}
	if err := cg.emitExitDefers(); err != nil {
		return err
	}
	if len(cg.tries) > 0 {
		frame := cg.tries[len(cg.tries)-1]
		cg.w("%s = %s;", frame.retVar, t)
		cg.w("%s = 1;", frame.flagVar)
		if frame.ctxActive {
			cg.w("hml_exception_pop();")
		}
		cg.w("goto %s;", frame.finallyLabel)
		return nil
	}
	if cg.inFunction {
		cg.w("return %s;", t)
		return nil
	}
	if cg.currentModule != nil {
		// module top-level return just stops the init procedure
		cg.w("hml_release(&%s);", t)
		cg.w("return;")
		return nil
	}
	cg.w("hml_release(&%s);", t)
	cg.w("hml_runtime_shutdown();")
	cg.w("return 0;")
	return nil
}

// functionDefStmt emits the value binding at the declaration site. The
// procedure body itself is lowered by the assembler for top-level
// functions; nested named functions lower like a let-bound literal.
func (cg *Codegen) functionDefStmt(s *FunctionDefStmt) error {
	name := s.Name.Value
	if cg.inFunction {
		fn := &FunctionExpr{
			Token:      s.Token,
			Params:     s.Params,
			Body:       s.Body,
			ReturnType: s.ReturnType,
			IsAsync:    s.IsAsync,
		}
		decl := &VarDeclareStmt{Token: s.Token, Name: s.Name, Value: fn}
		return cg.varDeclareStmt(decl)
	}
	nreq := countRequiredParams(s.Params)
	if cg.currentModule != nil {
		cg.w("%s%s = hml_val_function((HmlFn)%sfn_%s, %d);",
			cg.currentModule.Prefix, name, cg.currentModule.Prefix, name, nreq)
	} else {
		cg.addMainVar(name)
		cg.mainFuncs[name] = len(s.Params)
		cg.w("_main_%s = hml_val_function((HmlFn)hml_fn_%s, %d);", name, name, nreq)
	}
	return nil
}

func (cg *Codegen) importStmt(s *ImportStmt) error {
	importer := cg.mainPath
	if cg.currentModule != nil {
		importer = cg.currentModule.Path
	}
	dep := cg.cache.Dep(importer, s.Path)
	if dep == nil {
		return NewCompileErrorf(s.Token.Loc, "unresolved import %q", s.Path)
	}
	cg.w("%sinit();", dep.Prefix)
	return nil
}

func countRequiredParams(params []*Param) int {
	n := 0
	for _, p := range params {
		if p.Default == nil {
			n++
		}
	}
	return n
}

// lowerFunctionBody emits prologue, statements and the implicit null return
// of one procedure. rec is nil for named top-level functions; module is the
// module owning the body, nil for the main file.
func (cg *Codegen) lowerFunctionBody(params []*Param, body *Block, rec *ClosureRecord, module *Module) error {
	savedLocals := cg.locals
	savedConsts := cg.consts
	savedShadows := cg.shadows
	savedDefers := cg.defers
	savedRuntime := cg.runtimeDefers
	savedTries := cg.tries
	savedLoops := cg.loops
	savedDepth := cg.loopDepth
	savedInFn := cg.inFunction
	savedShared := cg.sharedEnv
	savedClosure := cg.currentClosure
	savedModule := cg.currentModule

	cg.locals = nil
	cg.consts = make(map[string]bool)
	cg.shadows = nil
	cg.defers = nil
	cg.runtimeDefers = false
	cg.tries = nil
	cg.loops = nil
	cg.loopDepth = 0
	cg.inFunction = true
	cg.sharedEnv = nil
	cg.currentClosure = rec
	cg.currentModule = module

	restore := func() {
		cg.locals = savedLocals
		cg.consts = savedConsts
		cg.shadows = savedShadows
		cg.defers = savedDefers
		cg.runtimeDefers = savedRuntime
		cg.tries = savedTries
		cg.loops = savedLoops
		cg.loopDepth = savedDepth
		cg.inFunction = savedInFn
		cg.sharedEnv = savedShared
		cg.currentClosure = savedClosure
		cg.currentModule = savedModule
	}
	defer restore()

	for _, p := range params {
		cg.declareLocal(p.Name.Value)
	}
	for _, p := range params {
		if p.Default != nil {
			cg.w("if (hml_is_null(%s)) {", p.Name.Value)
			cg.indentInc()
			d, err := cg.expr(p.Default)
			if err != nil {
				return err
			}
			cg.w("%s = %s;", p.Name.Value, d)
			cg.indentDec()
			cg.w("}")
		}
	}

	// pre-scan for nested literals so siblings capturing the same variable
	// share one environment; the scan's declarations are discarded
	scanMark := cg.scopeMark()
	cg.scanClosures(body)
	cg.locals = cg.locals[:scanMark]
	if cg.sharedEnv != nil {
		cg.w("HmlClosureEnv *%s = hml_closure_env_create(%d);", cg.sharedEnv.varName(), len(cg.sharedEnv.names))
		for i, name := range cg.sharedEnv.names {
			if cg.isLocal(name) {
				cg.w("hml_closure_env_set(%s, %d, %s);", cg.sharedEnv.varName(), i, name)
			}
		}
	}

	if err := cg.block(body); err != nil {
		return err
	}
	if err := cg.emitExitDefers(); err != nil {
		return err
	}
	cg.w("return hml_val_null();")
	return nil
}
