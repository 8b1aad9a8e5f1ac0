package hemlock

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/tliron/commonlog"
)

// SharedEnv is one capture-storage object reused by every closure literal
// nested directly inside the same enclosing function, so a write through
// one sibling is visible to the others.
type SharedEnv struct {
	id    int
	names []string
}

func (e *SharedEnv) add(name string) int {
	if idx := e.index(name); idx >= 0 {
		return idx
	}
	e.names = append(e.names, name)
	return len(e.names) - 1
}

func (e *SharedEnv) index(name string) int {
	for i, n := range e.names {
		if n == name {
			return i
		}
	}
	return -1
}

func (e *SharedEnv) varName() string {
	return fmt.Sprintf("_shared_env_%d", e.id)
}

// ClosureRecord links a generated procedure to the literal it came from.
// Records are appended while lowering and drained to a fixed point by the
// assembler, because emitting one closure body is what reveals the next.
type ClosureRecord struct {
	ID       int
	Name     string
	Fn       *FunctionExpr
	Module   *Module
	Captured []string
	EnvID    int // private or shared env id, -1 when no captures
	Shared   bool
	// slot of each captured name inside the shared env; unused for
	// private environments where slot i holds Captured[i]
	sharedSlots []int
	Emitted     bool
}

func (r *ClosureRecord) wrapperName() string {
	return fmt.Sprintf("_hml_closure_wrapper_%d", r.ID)
}

func (r *ClosureRecord) captureIndex(name string) int {
	for i, n := range r.Captured {
		if n == name {
			return i
		}
	}
	return -1
}

type deferEntry struct {
	body Stmt
}

type tryFrame struct {
	finallyLabel string
	retVar       string
	flagVar      string
	// whether this frame's exception context is still pushed; a return
	// that leaves the try block must pop it before jumping to finally
	ctxActive bool
}

type loopFrame struct {
	continueLabel string // empty means a plain 'continue' works
}

// Codegen is the mutable state threaded through one whole lowering run.
// Nothing here is shared between runs, so tests can lower independently.
type Codegen struct {
	buf    *bytes.Buffer
	indent int

	tempCount  int
	labelCount int
	anonCount  int
	envCount   int
	tryCount   int

	locals     []string
	consts     map[string]bool
	shadows    []string
	inFunction bool

	mainVars   []string
	mainVarSet map[string]bool
	mainConsts map[string]bool
	mainFuncs  map[string]int

	mainImports    []*ImportBinding
	mainNamespaces map[string]*Module

	// main-file enums; module enums live on their Module
	enums    map[string]map[string]int64
	typeDefs map[string]string
	externs  []*ExternFnStmt

	cache          *ModuleCache
	mainPath       string
	currentModule  *Module
	currentClosure *ClosureRecord
	closures       []*ClosureRecord
	sharedEnv      *SharedEnv

	defers        []deferEntry
	runtimeDefers bool
	tries         []tryFrame
	loops         []loopFrame
	loopDepth     int

	// self-reference fixup for `let f = fn() { ... f() ... }`
	lastEnvID       int
	lastEnvCaptured []string

	log commonlog.Logger
}

func NewCodegen(cache *ModuleCache) *Codegen {
	return &Codegen{
		buf:            &bytes.Buffer{},
		consts:         make(map[string]bool),
		mainVarSet:     make(map[string]bool),
		mainConsts:     make(map[string]bool),
		mainFuncs:      make(map[string]int),
		mainNamespaces: make(map[string]*Module),
		enums:          make(map[string]map[string]int64),
		typeDefs:       make(map[string]string),
		cache:          cache,
		lastEnvID:      -1,
		log:            commonlog.GetLogger("hemlock.codegen"),
	}
}

// emission helpers

func (cg *Codegen) w(format string, args ...any) {
	for i := 0; i < cg.indent; i++ {
		cg.buf.WriteString("    ")
	}
	fmt.Fprintf(cg.buf, format, args...)
	cg.buf.WriteByte('\n')
}

func (cg *Codegen) indentInc() { cg.indent++ }
func (cg *Codegen) indentDec() { cg.indent-- }

// withBuffer redirects emission into buf for the duration of fn.
func (cg *Codegen) withBuffer(buf *bytes.Buffer, fn func() error) error {
	saved := cg.buf
	savedIndent := cg.indent
	cg.buf = buf
	cg.indent = 0
	err := fn()
	cg.buf = saved
	cg.indent = savedIndent
	return err
}

func (cg *Codegen) temp() string {
	name := fmt.Sprintf("_t%d", cg.tempCount)
	cg.tempCount++
	return name
}

// local tracking; scopes save and restore the slice length

func (cg *Codegen) scopeMark() int {
	return len(cg.locals)
}

func (cg *Codegen) scopeRelease(mark int) {
	for _, name := range cg.locals[mark:] {
		delete(cg.consts, name)
	}
	cg.locals = cg.locals[:mark]
}

func (cg *Codegen) declareLocal(name string) {
	cg.locals = append(cg.locals, name)
}

func (cg *Codegen) isLocal(name string) bool {
	for _, n := range cg.locals {
		if n == name {
			return true
		}
	}
	return false
}

func (cg *Codegen) pushShadow(name string) {
	cg.shadows = append(cg.shadows, name)
}

func (cg *Codegen) popShadow() {
	cg.shadows = cg.shadows[:len(cg.shadows)-1]
}

func (cg *Codegen) isShadow(name string) bool {
	for _, n := range cg.shadows {
		if n == name {
			return true
		}
	}
	return false
}

func (cg *Codegen) isMainVar(name string) bool {
	return cg.mainVarSet[name]
}

func (cg *Codegen) addMainVar(name string) {
	if !cg.mainVarSet[name] {
		cg.mainVarSet[name] = true
		cg.mainVars = append(cg.mainVars, name)
	}
}

func (cg *Codegen) findMainImport(name string) *ImportBinding {
	for _, b := range cg.mainImports {
		if b.LocalName == name {
			return b
		}
	}
	return nil
}

func (cg *Codegen) findImport(name string) *ImportBinding {
	if cg.currentModule != nil {
		return cg.currentModule.FindImport(name)
	}
	return cg.findMainImport(name)
}

func (cg *Codegen) findNamespace(name string) *Module {
	if cg.currentModule != nil {
		return cg.currentModule.Namespaces[name]
	}
	return cg.mainNamespaces[name]
}

// identifier resolution

type varKind int

const (
	varUnresolved varKind = iota
	varShadow
	varLocal
	varImport
	varModule
	varMain
	varBuiltin
)

// resolveVar maps a source identifier to the C expression naming its
// storage. Shadows are checked before module/main promotion so a catch
// parameter cannot be misrouted to an unrelated same-named global.
func (cg *Codegen) resolveVar(name string) (string, varKind) {
	if cg.isShadow(name) {
		return name, varShadow
	}
	if cg.isLocal(name) {
		return name, varLocal
	}
	if b := cg.findImport(name); b != nil {
		return b.ModulePrefix + b.OriginalName, varImport
	}
	if cg.currentModule != nil && cg.currentModule.IsTopLevel(name) {
		return cg.currentModule.Prefix + name, varModule
	}
	if cg.currentModule == nil && cg.isMainVar(name) {
		return "_main_" + name, varMain
	}
	if _, ok := LookupBuiltin(name); ok {
		return "", varBuiltin
	}
	return "", varUnresolved
}

func (cg *Codegen) isConstName(name string) bool {
	if cg.consts[name] {
		return true
	}
	if cg.currentModule != nil {
		return cg.currentModule.Consts[name]
	}
	return cg.mainConsts[name]
}

// sharedIndex returns the slot of name in the current function's shared
// environment, or -1.
func (cg *Codegen) sharedIndex(name string) int {
	if cg.sharedEnv == nil {
		return -1
	}
	return cg.sharedEnv.index(name)
}

// closureSlot maps a capture-list position to its environment slot; shared
// environments can hold more names than this closure captures.
func (cg *Codegen) closureSlot(captureIdx int) int {
	r := cg.currentClosure
	if r == nil {
		return captureIdx
	}
	if !r.Shared {
		return captureIdx
	}
	// slot positions in the shared env were fixed at creation time
	return r.sharedSlots[captureIdx]
}

// registerClosure appends a worklist record for a literal discovered during
// lowering.
func (cg *Codegen) registerClosure(fn *FunctionExpr, captured []string) *ClosureRecord {
	rec := &ClosureRecord{
		ID:       cg.anonCount,
		Name:     fmt.Sprintf("_hml_closure_%d", cg.anonCount),
		Fn:       fn,
		Module:   cg.currentModule,
		Captured: captured,
		EnvID:    -1,
	}
	cg.anonCount++
	cg.closures = append(cg.closures, rec)
	cg.log.Debugf("closure %s captures %v", rec.Name, captured)
	return rec
}

// scanClosures pre-scans a function body for directly nested literals and
// unions their captured locals into one shared environment, so siblings
// referencing the same outer variable share a slot. Literal bodies are not
// descended into; deeper captures bubble up through free-variable analysis.
func (cg *Codegen) scanClosures(block *Block) {
	for _, stmt := range block.Statements {
		cg.scanClosuresStmt(stmt)
	}
}

func (cg *Codegen) scanClosuresStmt(stmt Stmt) {
	switch s := stmt.(type) {
	case *Block:
		cg.scanClosures(s)
	case *VarDeclareStmt:
		if _, isFn := s.Value.(*FunctionExpr); isFn {
			// a literal may capture the name it is being bound to, so the
			// binding is visible before its own initializer is scanned
			cg.declareLocal(s.Name.Value)
			cg.scanClosuresExpr(s.Value)
		} else {
			cg.scanClosuresExpr(s.Value)
			// the declared name becomes local for capture filtering of later
			// literals in this same scan
			cg.declareLocal(s.Name.Value)
		}
	case *ExprStmt:
		cg.scanClosuresExpr(s.Expression)
	case *IfStmt:
		cg.scanClosuresExpr(s.Condition)
		cg.scanClosures(s.ThenBranch)
		if s.ElseBranch != nil {
			cg.scanClosuresStmt(s.ElseBranch)
		}
	case *WhileStmt:
		cg.scanClosuresExpr(s.Cond)
		cg.scanClosures(s.Body)
	case *ForStmt:
		if s.Init != nil {
			cg.scanClosuresStmt(s.Init)
		}
		if s.Cond != nil {
			cg.scanClosuresExpr(s.Cond)
		}
		if s.Post != nil {
			cg.scanClosuresStmt(s.Post)
		}
		cg.scanClosures(s.Body)
	case *ForInStmt:
		cg.scanClosuresExpr(s.Iterable)
		cg.declareLocal(s.KeyVar.Value)
		if s.ValueVar != nil {
			cg.declareLocal(s.ValueVar.Value)
		}
		cg.scanClosures(s.Body)
	case *SwitchStmt:
		cg.scanClosuresExpr(s.Subject)
		for _, c := range s.Cases {
			cg.scanClosuresExpr(c.Value)
			cg.scanClosures(c.Body)
		}
		if s.Default != nil {
			cg.scanClosures(s.Default)
		}
	case *TryStmt:
		cg.scanClosures(s.TryBlock)
		if s.CatchBlock != nil {
			cg.scanClosures(s.CatchBlock)
		}
		if s.FinallyBlock != nil {
			cg.scanClosures(s.FinallyBlock)
		}
	case *ThrowStmt:
		cg.scanClosuresExpr(s.Value)
	case *DeferStmt:
		cg.scanClosuresStmt(s.Body)
	case *ReturnStmt:
		if s.Value != nil {
			cg.scanClosuresExpr(s.Value)
		}
	case *FunctionDefStmt:
		// a nested definition lowers as a literal bound to its name and may
		// recurse through it
		cg.declareLocal(s.Name.Value)
		cg.scanClosuresExpr(&FunctionExpr{Token: s.Token, Params: s.Params, Body: s.Body, IsAsync: s.IsAsync})
	case *ExportStmt:
		if s.Decl != nil {
			cg.scanClosuresStmt(s.Decl)
		}
	}
}

func (cg *Codegen) scanClosuresExpr(expr Expr) {
	switch e := expr.(type) {
	case *FunctionExpr:
		for _, name := range FunctionFreeVars(e) {
			if cg.isLocal(name) {
				if cg.sharedEnv == nil {
					cg.sharedEnv = &SharedEnv{id: cg.envCount}
					cg.envCount++
				}
				cg.sharedEnv.add(name)
			}
		}
	case *BinaryOp:
		cg.scanClosuresExpr(e.Left)
		cg.scanClosuresExpr(e.Right)
	case *LogicalOp:
		cg.scanClosuresExpr(e.Left)
		cg.scanClosuresExpr(e.Right)
	case *CoalesceExpr:
		cg.scanClosuresExpr(e.Left)
		cg.scanClosuresExpr(e.Right)
	case *UnaryOp:
		cg.scanClosuresExpr(e.Operand)
	case *TernaryExpr:
		cg.scanClosuresExpr(e.Cond)
		cg.scanClosuresExpr(e.Then)
		cg.scanClosuresExpr(e.Else)
	case *CallExpr:
		cg.scanClosuresExpr(e.Callee)
		for _, arg := range e.Arguments {
			cg.scanClosuresExpr(arg)
		}
	case *IndexExpr:
		cg.scanClosuresExpr(e.Collection)
		cg.scanClosuresExpr(e.Index)
	case *IndexAssignExpr:
		cg.scanClosuresExpr(e.Collection)
		cg.scanClosuresExpr(e.Index)
		cg.scanClosuresExpr(e.Value)
	case *DotExpr:
		cg.scanClosuresExpr(e.Obj)
	case *SetAttrExpr:
		cg.scanClosuresExpr(e.Obj)
		cg.scanClosuresExpr(e.Value)
	case *AssignExpr:
		cg.scanClosuresExpr(e.Value)
	case *ArrayExpr:
		for _, elem := range e.Elements {
			cg.scanClosuresExpr(elem)
		}
	case *MapExpr:
		for _, prop := range e.Properties {
			cg.scanClosuresExpr(prop.Value)
		}
	case *InterpExpr:
		for _, part := range e.Exprs {
			cg.scanClosuresExpr(part)
		}
	case *AwaitExpr:
		cg.scanClosuresExpr(e.Operand)
	case *PrefixIncExpr:
		cg.scanClosuresExpr(e.Target)
	case *PostfixIncExpr:
		cg.scanClosuresExpr(e.Target)
	}
}

// escapeString renders a Hemlock string as a C string literal body.
func escapeString(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString("\\\"")
		case '\\':
			sb.WriteString("\\\\")
		case '\n':
			sb.WriteString("\\n")
		case '\t':
			sb.WriteString("\\t")
		case '\r':
			sb.WriteString("\\r")
		case 0:
			sb.WriteString("\\0")
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
