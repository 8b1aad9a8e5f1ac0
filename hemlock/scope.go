package hemlock

// Scope is the nested bound-name table used during capture analysis. A name
// is visible if declared here or in any ancestor.
type Scope struct {
	parent *Scope
	names  map[string]bool
}

func NewScope(parent *Scope) *Scope {
	return &Scope{parent: parent, names: make(map[string]bool)}
}

func (s *Scope) Declare(name string) {
	s.names[name] = true
}

func (s *Scope) Has(name string) bool {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.names[name] {
			return true
		}
	}
	return false
}

// FreeVarSet collects free identifiers in first-occurrence order,
// ignoring duplicates.
type FreeVarSet struct {
	names []string
	seen  map[string]bool
}

func NewFreeVarSet() *FreeVarSet {
	return &FreeVarSet{seen: make(map[string]bool)}
}

func (f *FreeVarSet) Add(name string) {
	if f.seen[name] {
		return
	}
	f.seen[name] = true
	f.names = append(f.names, name)
}

func (f *FreeVarSet) Has(name string) bool {
	return f.seen[name]
}

func (f *FreeVarSet) Names() []string {
	return f.names
}

// FunctionFreeVars analyzes a function literal's body against a scope
// holding only its own parameters, returning every identifier the body
// references but does not bind itself.
func FunctionFreeVars(fn *FunctionExpr) []string {
	scope := NewScope(nil)
	for _, p := range fn.Params {
		scope.Declare(p.Name.Value)
	}
	free := NewFreeVarSet()
	for _, p := range fn.Params {
		if p.Default != nil {
			freeVarsExpr(p.Default, scope, free)
		}
	}
	freeVarsBlock(fn.Body, scope, free)
	return free.Names()
}

func freeVarsBlock(block *Block, scope *Scope, free *FreeVarSet) {
	if block == nil {
		return
	}
	inner := NewScope(scope)
	for _, stmt := range block.Statements {
		freeVarsStmt(stmt, inner, free)
	}
}

// freeVarsStmt adds bindings to the current scope as they are visited, so a
// use before the binding position still refers to the outer binding. This is
// lexical, not hoisted.
func freeVarsStmt(stmt Stmt, scope *Scope, free *FreeVarSet) {
	switch s := stmt.(type) {
	case *Block:
		freeVarsBlock(s, scope, free)
	case *VarDeclareStmt:
		if _, isFn := s.Value.(*FunctionExpr); isFn {
			// the one exception to declaration-order scoping: a literal may
			// recurse through the name it is being bound to
			scope.Declare(s.Name.Value)
			freeVarsExpr(s.Value, scope, free)
		} else {
			freeVarsExpr(s.Value, scope, free)
			scope.Declare(s.Name.Value)
		}
	case *ExprStmt:
		freeVarsExpr(s.Expression, scope, free)
	case *IfStmt:
		freeVarsExpr(s.Condition, scope, free)
		freeVarsBlock(s.ThenBranch, scope, free)
		if s.ElseBranch != nil {
			freeVarsStmt(s.ElseBranch, scope, free)
		}
	case *WhileStmt:
		freeVarsExpr(s.Cond, scope, free)
		freeVarsBlock(s.Body, scope, free)
	case *ForStmt:
		inner := NewScope(scope)
		if s.Init != nil {
			freeVarsStmt(s.Init, inner, free)
		}
		if s.Cond != nil {
			freeVarsExpr(s.Cond, inner, free)
		}
		if s.Post != nil {
			freeVarsStmt(s.Post, inner, free)
		}
		freeVarsBlock(s.Body, inner, free)
	case *ForInStmt:
		freeVarsExpr(s.Iterable, scope, free)
		inner := NewScope(scope)
		inner.Declare(s.KeyVar.Value)
		if s.ValueVar != nil {
			inner.Declare(s.ValueVar.Value)
		}
		freeVarsBlock(s.Body, inner, free)
	case *SwitchStmt:
		freeVarsExpr(s.Subject, scope, free)
		for _, c := range s.Cases {
			freeVarsExpr(c.Value, scope, free)
			freeVarsBlock(c.Body, scope, free)
		}
		if s.Default != nil {
			freeVarsBlock(s.Default, scope, free)
		}
	case *TryStmt:
		freeVarsBlock(s.TryBlock, scope, free)
		if s.CatchBlock != nil {
			// the catch parameter is scoped to the catch block only
			catchScope := NewScope(scope)
			if s.CatchParam != nil {
				catchScope.Declare(s.CatchParam.Value)
			}
			freeVarsBlock(s.CatchBlock, catchScope, free)
		}
		if s.FinallyBlock != nil {
			freeVarsBlock(s.FinallyBlock, scope, free)
		}
	case *ThrowStmt:
		freeVarsExpr(s.Value, scope, free)
	case *DeferStmt:
		freeVarsStmt(s.Body, scope, free)
	case *ReturnStmt:
		if s.Value != nil {
			freeVarsExpr(s.Value, scope, free)
		}
	case *FunctionDefStmt:
		scope.Declare(s.Name.Value)
		lit := &FunctionExpr{Token: s.Token, Params: s.Params, Body: s.Body, IsAsync: s.IsAsync}
		freeVarsNested(lit, scope, free)
	case *EnumStmt:
		scope.Declare(s.Name.Value)
	case *ExportStmt:
		if s.Decl != nil {
			freeVarsStmt(s.Decl, scope, free)
		}
	}
}

func freeVarsExpr(expr Expr, scope *Scope, free *FreeVarSet) {
	switch e := expr.(type) {
	case *IdentExpr:
		if !scope.Has(e.Name.Value) {
			free.Add(e.Name.Value)
		}
	case *BinaryOp:
		freeVarsExpr(e.Left, scope, free)
		freeVarsExpr(e.Right, scope, free)
	case *LogicalOp:
		freeVarsExpr(e.Left, scope, free)
		freeVarsExpr(e.Right, scope, free)
	case *CoalesceExpr:
		freeVarsExpr(e.Left, scope, free)
		freeVarsExpr(e.Right, scope, free)
	case *UnaryOp:
		freeVarsExpr(e.Operand, scope, free)
	case *TernaryExpr:
		freeVarsExpr(e.Cond, scope, free)
		freeVarsExpr(e.Then, scope, free)
		freeVarsExpr(e.Else, scope, free)
	case *CallExpr:
		freeVarsExpr(e.Callee, scope, free)
		for _, arg := range e.Arguments {
			freeVarsExpr(arg, scope, free)
		}
	case *IndexExpr:
		freeVarsExpr(e.Collection, scope, free)
		freeVarsExpr(e.Index, scope, free)
	case *IndexAssignExpr:
		freeVarsExpr(e.Collection, scope, free)
		freeVarsExpr(e.Index, scope, free)
		freeVarsExpr(e.Value, scope, free)
	case *DotExpr:
		freeVarsExpr(e.Obj, scope, free)
	case *SetAttrExpr:
		freeVarsExpr(e.Obj, scope, free)
		freeVarsExpr(e.Value, scope, free)
	case *AssignExpr:
		// an assignment target counts as a use of the outer binding
		if !scope.Has(e.Name.Value) {
			free.Add(e.Name.Value)
		}
		freeVarsExpr(e.Value, scope, free)
	case *ArrayExpr:
		for _, elem := range e.Elements {
			freeVarsExpr(elem, scope, free)
		}
	case *MapExpr:
		for _, prop := range e.Properties {
			freeVarsExpr(prop.Value, scope, free)
		}
	case *InterpExpr:
		for _, part := range e.Exprs {
			freeVarsExpr(part, scope, free)
		}
	case *AwaitExpr:
		freeVarsExpr(e.Operand, scope, free)
	case *PrefixIncExpr:
		freeVarsExpr(e.Target, scope, free)
	case *PostfixIncExpr:
		freeVarsExpr(e.Target, scope, free)
	case *FunctionExpr:
		freeVarsNested(e, scope, free)
	}
}

// freeVarsNested analyzes a nested function literal in a child scope holding
// its parameters, then contributes to the outer free set only those names
// the nested function neither binds nor receives as parameters.
func freeVarsNested(fn *FunctionExpr, scope *Scope, free *FreeVarSet) {
	for _, name := range FunctionFreeVars(fn) {
		if !scope.Has(name) {
			free.Add(name)
		}
	}
}
