package hemlock

import (
	"encoding/json"
	"fmt"
)

type ASTNode interface {
	GetToken() *Token
	String() string
}

type Stmt interface {
	ASTNode
	stmtNode() // dummy method
}

type Expr interface {
	ASTNode
	exprNode() // dummy method
}

// Visitor pattern for traversing the AST.
type Visitor interface {
	Visit(node ASTNode)
}

// WalkFunc is a function that can be used as a visitor.
type WalkFunc func(node ASTNode)

func (f WalkFunc) Visit(node ASTNode) {
	f(node)
}

// Walk traverses an AST node and its children for LSP.
func Walk(node ASTNode, visitor Visitor) {
	if node == nil {
		return
	}

	visitor.Visit(node)

	switch n := node.(type) {
	case *Block:
		for _, stmt := range n.Statements {
			Walk(stmt, visitor)
		}
	case *VarDeclareStmt:
		Walk(n.Value, visitor)
	case *ExprStmt:
		Walk(n.Expression, visitor)
	case *IfStmt:
		Walk(n.Condition, visitor)
		Walk(n.ThenBranch, visitor)
		if n.ElseBranch != nil {
			Walk(n.ElseBranch, visitor)
		}
	case *WhileStmt:
		Walk(n.Cond, visitor)
		Walk(n.Body, visitor)
	case *ForStmt:
		if n.Init != nil {
			Walk(n.Init, visitor)
		}
		if n.Cond != nil {
			Walk(n.Cond, visitor)
		}
		if n.Post != nil {
			Walk(n.Post, visitor)
		}
		Walk(n.Body, visitor)
	case *ForInStmt:
		Walk(n.Iterable, visitor)
		Walk(n.Body, visitor)
	case *SwitchStmt:
		Walk(n.Subject, visitor)
		for _, c := range n.Cases {
			Walk(c.Value, visitor)
			Walk(c.Body, visitor)
		}
		if n.Default != nil {
			Walk(n.Default, visitor)
		}
	case *TryStmt:
		Walk(n.TryBlock, visitor)
		if n.CatchBlock != nil {
			Walk(n.CatchBlock, visitor)
		}
		if n.FinallyBlock != nil {
			Walk(n.FinallyBlock, visitor)
		}
	case *ThrowStmt:
		Walk(n.Value, visitor)
	case *DeferStmt:
		Walk(n.Body, visitor)
	case *ReturnStmt:
		if n.Value != nil {
			Walk(n.Value, visitor)
		}
	case *FunctionDefStmt:
		for _, p := range n.Params {
			if p.Default != nil {
				Walk(p.Default, visitor)
			}
		}
		Walk(n.Body, visitor)
	case *ExportStmt:
		if n.Decl != nil {
			Walk(n.Decl, visitor)
		}
	case *BinaryOp:
		Walk(n.Left, visitor)
		Walk(n.Right, visitor)
	case *LogicalOp:
		Walk(n.Left, visitor)
		Walk(n.Right, visitor)
	case *CoalesceExpr:
		Walk(n.Left, visitor)
		Walk(n.Right, visitor)
	case *UnaryOp:
		Walk(n.Operand, visitor)
	case *TernaryExpr:
		Walk(n.Cond, visitor)
		Walk(n.Then, visitor)
		Walk(n.Else, visitor)
	case *CallExpr:
		Walk(n.Callee, visitor)
		for _, arg := range n.Arguments {
			Walk(arg, visitor)
		}
	case *IndexExpr:
		Walk(n.Collection, visitor)
		Walk(n.Index, visitor)
	case *IndexAssignExpr:
		Walk(n.Collection, visitor)
		Walk(n.Index, visitor)
		Walk(n.Value, visitor)
	case *DotExpr:
		Walk(n.Obj, visitor)
	case *SetAttrExpr:
		Walk(n.Obj, visitor)
		Walk(n.Value, visitor)
	case *AssignExpr:
		Walk(n.Value, visitor)
	case *ArrayExpr:
		for _, elem := range n.Elements {
			Walk(elem, visitor)
		}
	case *MapExpr:
		for _, prop := range n.Properties {
			Walk(prop.Value, visitor)
		}
	case *FunctionExpr:
		for _, p := range n.Params {
			if p.Default != nil {
				Walk(p.Default, visitor)
			}
		}
		Walk(n.Body, visitor)
	case *InterpExpr:
		for _, e := range n.Exprs {
			Walk(e, visitor)
		}
	case *AwaitExpr:
		Walk(n.Operand, visitor)
	case *PrefixIncExpr:
		Walk(n.Target, visitor)
	case *PostfixIncExpr:
		Walk(n.Target, visitor)
	}
}

type Block struct {
	Token      *Token
	Statements []Stmt
	EndToken   *Token
}

func (s *Block) GetToken() *Token { return s.Token }
func (s *Block) String() string {
	str := "Block [\n"
	for _, stmt := range s.Statements {
		str += "  " + stmt.String() + "\n"
	}
	return str + "]"
}
func (s *Block) stmtNode() {}
func (s *Block) MarshalJSON() ([]byte, error) {
	type Alias Block

	return json.Marshal(&struct {
		Type string `json:"type"`
		*Alias
	}{
		Type:  "Block",
		Alias: (*Alias)(s),
	})
}

// statements

type VarDeclareStmt struct {
	Token   *Token
	Name    *Token
	Type    string
	Value   Expr
	IsConst bool
}

func (s *VarDeclareStmt) GetToken() *Token { return s.Token }
func (s *VarDeclareStmt) String() string {
	return fmt.Sprintf("VarDeclareStmt (\n  Name: %s\n  Value: %v\n  IsConst: %t\n)",
		s.Name.Value, s.Value, s.IsConst)
}
func (s *VarDeclareStmt) stmtNode() {}
func (s *VarDeclareStmt) MarshalJSON() ([]byte, error) {
	type Alias VarDeclareStmt
	return json.Marshal(&struct {
		Type string `json:"type"`
		*Alias
	}{
		Type:  "VarDeclareStmt",
		Alias: (*Alias)(s),
	})
}

type ExprStmt struct {
	Token      *Token
	Expression Expr
}

func (s *ExprStmt) GetToken() *Token { return s.Token }
func (s *ExprStmt) String() string   { return fmt.Sprintf("ExprStmt (%v)", s.Expression) }
func (s *ExprStmt) stmtNode()        {}

type IfStmt struct {
	Token      *Token
	Condition  Expr
	ThenBranch *Block
	ElseBranch Stmt // *Block or a chained *IfStmt
}

func (s *IfStmt) GetToken() *Token { return s.Token }
func (s *IfStmt) String() string {
	return fmt.Sprintf("IfStmt (\n  Condition: %v\n  Then: %v\n  Else: %v\n)",
		s.Condition, s.ThenBranch, s.ElseBranch)
}
func (s *IfStmt) stmtNode() {}
func (s *IfStmt) MarshalJSON() ([]byte, error) {
	type Alias IfStmt
	return json.Marshal(&struct {
		Type string `json:"type"`
		*Alias
	}{
		Type:  "IfStmt",
		Alias: (*Alias)(s),
	})
}

type WhileStmt struct {
	Token *Token
	Cond  Expr
	Body  *Block
}

func (s *WhileStmt) GetToken() *Token { return s.Token }
func (s *WhileStmt) String() string {
	return fmt.Sprintf("WhileStmt (\n  Condition: %v\n  Body: %v\n)", s.Cond, s.Body)
}
func (s *WhileStmt) stmtNode() {}
func (s *WhileStmt) MarshalJSON() ([]byte, error) {
	type Alias WhileStmt
	return json.Marshal(&struct {
		Type string `json:"type"`
		*Alias
	}{
		Type:  "WhileStmt",
		Alias: (*Alias)(s),
	})
}

// C-style for loop: for (init; cond; post) { ... }
type ForStmt struct {
	Token *Token
	Init  Stmt
	Cond  Expr
	Post  Stmt
	Body  *Block
}

func (s *ForStmt) GetToken() *Token { return s.Token }
func (s *ForStmt) String() string {
	return fmt.Sprintf("ForStmt (\n  Init: %v\n  Cond: %v\n  Post: %v\n  Body: %v\n)",
		s.Init, s.Cond, s.Post, s.Body)
}
func (s *ForStmt) stmtNode() {}

// for (let k, v in iterable) { ... } - ValueVar may be nil.
type ForInStmt struct {
	Token    *Token
	KeyVar   *Token
	ValueVar *Token
	Iterable Expr
	Body     *Block
}

func (s *ForInStmt) GetToken() *Token { return s.Token }
func (s *ForInStmt) String() string {
	return fmt.Sprintf("ForInStmt (\n  KeyVar: %v\n  Iterable: %v\n  Body: %v\n)",
		s.KeyVar.Value, s.Iterable, s.Body)
}
func (s *ForInStmt) stmtNode() {}
func (s *ForInStmt) MarshalJSON() ([]byte, error) {
	type Alias ForInStmt
	return json.Marshal(&struct {
		Type string `json:"type"`
		*Alias
	}{
		Type:  "ForInStmt",
		Alias: (*Alias)(s),
	})
}

type SwitchCase struct {
	Value Expr
	Body  *Block
}

type SwitchStmt struct {
	Token   *Token
	Subject Expr
	Cases   []SwitchCase
	Default *Block
}

func (s *SwitchStmt) GetToken() *Token { return s.Token }
func (s *SwitchStmt) String() string {
	return fmt.Sprintf("SwitchStmt (\n  Subject: %v\n  Cases: %d\n)", s.Subject, len(s.Cases))
}
func (s *SwitchStmt) stmtNode() {}

type TryStmt struct {
	Token        *Token
	TryBlock     *Block
	CatchParam   *Token // nil when there is no catch clause
	CatchBlock   *Block
	FinallyBlock *Block
}

func (s *TryStmt) GetToken() *Token { return s.Token }
func (s *TryStmt) String() string {
	return fmt.Sprintf("TryStmt (\n  Try: %v\n  Catch: %v\n  Finally: %v\n)",
		s.TryBlock, s.CatchBlock, s.FinallyBlock)
}
func (s *TryStmt) stmtNode() {}

type ThrowStmt struct {
	Token *Token
	Value Expr
}

func (s *ThrowStmt) GetToken() *Token { return s.Token }
func (s *ThrowStmt) String() string   { return fmt.Sprintf("ThrowStmt (%v)", s.Value) }
func (s *ThrowStmt) stmtNode()        {}

type DeferStmt struct {
	Token *Token
	Body  Stmt
}

func (s *DeferStmt) GetToken() *Token { return s.Token }
func (s *DeferStmt) String() string   { return fmt.Sprintf("DeferStmt (%v)", s.Body) }
func (s *DeferStmt) stmtNode()        {}

type BreakStmt struct {
	Token *Token
}

func (s *BreakStmt) GetToken() *Token { return s.Token }
func (s *BreakStmt) String() string   { return "BreakStmt" }
func (s *BreakStmt) stmtNode()        {}

type ContinueStmt struct {
	Token *Token
}

func (s *ContinueStmt) GetToken() *Token { return s.Token }
func (s *ContinueStmt) String() string   { return "ContinueStmt" }
func (s *ContinueStmt) stmtNode()        {}

type ReturnStmt struct {
	Token *Token
	Value Expr
}

func (s *ReturnStmt) GetToken() *Token { return s.Token }
func (s *ReturnStmt) String() string {
	if s.Value != nil {
		return fmt.Sprintf("ReturnStmt (\n  Value: %v\n)", s.Value)
	}
	return "ReturnStmt (No Value)"
}
func (s *ReturnStmt) stmtNode() {}
func (s *ReturnStmt) MarshalJSON() ([]byte, error) {
	type Alias ReturnStmt
	return json.Marshal(&struct {
		Type string `json:"type"`
		*Alias
	}{
		Type:  "ReturnStmt",
		Alias: (*Alias)(s),
	})
}

type Param struct {
	Name    *Token
	Type    string
	Default Expr
}

func (p *Param) String() string {
	if p.Type != "" {
		return fmt.Sprintf("%s: %s", p.Name.Value, p.Type)
	}
	return p.Name.Value
}

type FunctionDefStmt struct {
	Token      *Token
	Name       *Token
	Params     []*Param
	Body       *Block
	ReturnType string
	IsAsync    bool
}

func (s *FunctionDefStmt) GetToken() *Token { return s.Token }
func (s *FunctionDefStmt) String() string {
	return fmt.Sprintf("FunctionDefStmt (\n  Name: %v\n  Parameters: %v\n  Body: %v\n)",
		s.Name.Value, s.Params, s.Body)
}
func (s *FunctionDefStmt) stmtNode() {}
func (s *FunctionDefStmt) MarshalJSON() ([]byte, error) {
	type Alias FunctionDefStmt
	return json.Marshal(&struct {
		Type string `json:"type"`
		*Alias
	}{
		Type:  "Func",
		Alias: (*Alias)(s),
	})
}

// EnumMember is one variant; Value is its explicit integer value, nil when
// auto-assigned.
type EnumMember struct {
	Name  *Token
	Value *int64
}

type EnumStmt struct {
	Token   *Token
	Name    *Token
	Members []*EnumMember
}

func (s *EnumStmt) GetToken() *Token { return s.Token }
func (s *EnumStmt) String() string {
	return fmt.Sprintf("EnumStmt (Name: %s, Members: %d)", s.Name.Value, len(s.Members))
}
func (s *EnumStmt) stmtNode() {}

// define Name = <type>  - annotation only, no code is generated.
type TypeDefStmt struct {
	Token  *Token
	Name   *Token
	Target string
}

func (s *TypeDefStmt) GetToken() *Token { return s.Token }
func (s *TypeDefStmt) String() string {
	return fmt.Sprintf("TypeDefStmt (Name: %s, Target: %s)", s.Name.Value, s.Target)
}
func (s *TypeDefStmt) stmtNode() {}

type ImportName struct {
	Name  string
	Alias string // empty means no alias
}

type ImportStmt struct {
	Token         *Token
	Path          string
	Names         []ImportName
	IsNamespace   bool
	NamespaceName string
}

func (s *ImportStmt) GetToken() *Token { return s.Token }
func (s *ImportStmt) String() string {
	return fmt.Sprintf("ImportStmt (Path: %q, Names: %v)", s.Path, s.Names)
}
func (s *ImportStmt) stmtNode() {}
func (s *ImportStmt) MarshalJSON() ([]byte, error) {
	type Alias ImportStmt
	return json.Marshal(&struct {
		Type string `json:"type"`
		*Alias
	}{
		Type:  "ImportStmt",
		Alias: (*Alias)(s),
	})
}

type ExportName struct {
	Name  string
	Alias string
}

type ExportStmt struct {
	Token *Token
	Decl  Stmt // exported declaration, nil for an export list
	Names []ExportName
}

func (s *ExportStmt) GetToken() *Token { return s.Token }
func (s *ExportStmt) String() string {
	if s.Decl != nil {
		return fmt.Sprintf("ExportStmt (Decl: %v)", s.Decl)
	}
	return fmt.Sprintf("ExportStmt (Names: %v)", s.Names)
}
func (s *ExportStmt) stmtNode() {}

type ExternParam struct {
	Name *Token
	Type string
}

// extern fn name(a: int, b: string): int
type ExternFnStmt struct {
	Token      *Token
	Name       *Token
	Params     []ExternParam
	ReturnType string
}

func (s *ExternFnStmt) GetToken() *Token { return s.Token }
func (s *ExternFnStmt) String() string {
	return fmt.Sprintf("ExternFnStmt (Name: %s, Params: %d, ReturnType: %s)",
		s.Name.Value, len(s.Params), s.ReturnType)
}
func (s *ExternFnStmt) stmtNode() {}

// Expressions

type IdentExpr struct {
	Token *Token
	Name  *Token
}

func (e *IdentExpr) GetToken() *Token { return e.Token }
func (e *IdentExpr) String() string   { return fmt.Sprintf("IdentExpr (Name: %s)", e.Name.Value) }
func (e *IdentExpr) exprNode()        {}
func (e *IdentExpr) MarshalJSON() ([]byte, error) {
	type Alias IdentExpr
	return json.Marshal(&struct {
		Type string `json:"type"`
		*Alias
	}{
		Type:  "IdentExpr",
		Alias: (*Alias)(e),
	})
}

type NumberExpr struct {
	Token *Token
	Value float64
	IsInt bool
}

func (e *NumberExpr) GetToken() *Token { return e.Token }
func (e *NumberExpr) String() string {
	return fmt.Sprintf("Number (Value: %v, IsInt: %t)", e.Value, e.IsInt)
}
func (e *NumberExpr) exprNode() {}
func (e *NumberExpr) MarshalJSON() ([]byte, error) {
	type Alias NumberExpr
	return json.Marshal(&struct {
		Type string `json:"type"`
		*Alias
	}{
		Type:  "Number",
		Alias: (*Alias)(e),
	})
}

type StringExpr struct {
	Token *Token
	Value string
}

func (e *StringExpr) GetToken() *Token { return e.Token }
func (e *StringExpr) String() string   { return fmt.Sprintf("String (Value: %q)", e.Value) }
func (e *StringExpr) exprNode()        {}
func (e *StringExpr) MarshalJSON() ([]byte, error) {
	type Alias StringExpr
	return json.Marshal(&struct {
		Type string `json:"type"`
		*Alias
	}{
		Type:  "String",
		Alias: (*Alias)(e),
	})
}

// "a ${x} b ${y} c" - always one more string part than expression parts.
type InterpExpr struct {
	Token *Token
	Parts []string
	Exprs []Expr
}

func (e *InterpExpr) GetToken() *Token { return e.Token }
func (e *InterpExpr) String() string {
	return fmt.Sprintf("InterpExpr (Parts: %d)", len(e.Exprs))
}
func (e *InterpExpr) exprNode() {}

type BooleanExpr struct {
	Token *Token
	Value bool
}

func (e *BooleanExpr) GetToken() *Token { return e.Token }
func (e *BooleanExpr) String() string   { return fmt.Sprintf("Boolean (Value: %t)", e.Value) }
func (e *BooleanExpr) exprNode()        {}

type NullExpr struct {
	Token *Token
}

func (e *NullExpr) GetToken() *Token { return e.Token }
func (e *NullExpr) String() string   { return "Null" }
func (e *NullExpr) exprNode()        {}

type BinaryOp struct {
	Token *Token
	Left  Expr
	Op    *Token
	Right Expr
}

func (e *BinaryOp) GetToken() *Token { return e.Token }
func (e *BinaryOp) String() string {
	return fmt.Sprintf("BinaryOp (\n  Left: %v\n  Op: %s\n  Right: %v\n)",
		e.Left, e.Op.Value, e.Right)
}
func (e *BinaryOp) exprNode() {}
func (e *BinaryOp) MarshalJSON() ([]byte, error) {
	type Alias BinaryOp
	return json.Marshal(&struct {
		Type string `json:"type"`
		*Alias
	}{
		Type:  "BinaryOp",
		Alias: (*Alias)(e),
	})
}

type LogicalOp struct {
	Token *Token
	Left  Expr
	Op    *Token
	Right Expr
}

func (e *LogicalOp) GetToken() *Token { return e.Token }
func (e *LogicalOp) String() string {
	return fmt.Sprintf("LogicalOp (\n  Left: %v\n  Op: %s\n  Right: %v\n)",
		e.Left, e.Op.Value, e.Right)
}
func (e *LogicalOp) exprNode() {}

type CoalesceExpr struct {
	Token *Token
	Left  Expr
	Right Expr
}

func (e *CoalesceExpr) GetToken() *Token { return e.Token }
func (e *CoalesceExpr) String() string {
	return fmt.Sprintf("CoalesceExpr (\n  Left: %v\n  Right: %v\n)", e.Left, e.Right)
}
func (e *CoalesceExpr) exprNode() {}

type UnaryOp struct {
	Token   *Token
	Op      *Token
	Operand Expr
}

func (e *UnaryOp) GetToken() *Token { return e.Token }
func (e *UnaryOp) String() string {
	return fmt.Sprintf("UnaryOp (\n  Op: %s\n  Operand: %v\n)", e.Op.Value, e.Operand)
}
func (e *UnaryOp) exprNode() {}

type TernaryExpr struct {
	Token *Token
	Cond  Expr
	Then  Expr
	Else  Expr
}

func (e *TernaryExpr) GetToken() *Token { return e.Token }
func (e *TernaryExpr) String() string {
	return fmt.Sprintf("TernaryExpr (\n  Cond: %v\n  Then: %v\n  Else: %v\n)",
		e.Cond, e.Then, e.Else)
}
func (e *TernaryExpr) exprNode() {}

type CallExpr struct {
	Token     *Token // The '(' token
	Callee    Expr
	Arguments []Expr
}

func (e *CallExpr) GetToken() *Token { return e.Token }
func (e *CallExpr) String() string {
	return fmt.Sprintf("CallExpr (\n  Callee: %v\n)", e.Callee)
}
func (e *CallExpr) exprNode() {}
func (e *CallExpr) MarshalJSON() ([]byte, error) {
	type Alias CallExpr
	return json.Marshal(&struct {
		Type string `json:"type"`
		*Alias
	}{
		Type:  "CallExpr",
		Alias: (*Alias)(e),
	})
}

type IndexExpr struct {
	Token      *Token
	Collection Expr
	Index      Expr
}

func (e *IndexExpr) GetToken() *Token { return e.Token }
func (e *IndexExpr) String() string {
	return fmt.Sprintf("IndexExpr (\n  Collection: %v\n  Index: %v\n)",
		e.Collection, e.Index)
}
func (e *IndexExpr) exprNode() {}

type IndexAssignExpr struct {
	Token      *Token
	Collection Expr
	Index      Expr
	Value      Expr
}

func (e *IndexAssignExpr) GetToken() *Token { return e.Token }
func (e *IndexAssignExpr) String() string {
	return fmt.Sprintf("IndexAssignExpr (\n  Collection: %v\n  Index: %v\n  Value: %v\n)",
		e.Collection, e.Index, e.Value)
}
func (e *IndexAssignExpr) exprNode() {}

type DotExpr struct {
	Token *Token
	Obj   Expr
	Attr  Token
}

func (e *DotExpr) GetToken() *Token { return e.Token }
func (e *DotExpr) String() string {
	return fmt.Sprintf("DotExpr (\n  Obj: %v\n  Attr: %s\n)", e.Obj, e.Attr.Value)
}
func (e *DotExpr) exprNode() {}
func (e *DotExpr) MarshalJSON() ([]byte, error) {
	type Alias DotExpr
	return json.Marshal(&struct {
		Type string `json:"type"`
		*Alias
	}{
		Type:  "DotExpr",
		Alias: (*Alias)(e),
	})
}

type SetAttrExpr struct {
	Token *Token
	Obj   Expr
	Attr  *Token
	Value Expr
}

func (e *SetAttrExpr) GetToken() *Token { return e.Token }
func (e *SetAttrExpr) String() string {
	return fmt.Sprintf("SetAttrExpr (\n  Obj: %v\n  Attr: %s\n  Value: %v\n)",
		e.Obj, e.Attr.Value, e.Value)
}
func (e *SetAttrExpr) exprNode() {}

type AssignExpr struct {
	Token *Token
	Name  *Token
	Value Expr
}

func (e *AssignExpr) GetToken() *Token { return e.Token }
func (e *AssignExpr) String() string {
	return fmt.Sprintf("AssignExpr (\n  Name: %s\n  Value: %v\n)", e.Name.Value, e.Value)
}
func (e *AssignExpr) exprNode() {}
func (e *AssignExpr) MarshalJSON() ([]byte, error) {
	type Alias AssignExpr
	return json.Marshal(&struct {
		Type string `json:"type"`
		*Alias
	}{
		Type:  "AssignExpr",
		Alias: (*Alias)(e),
	})
}

type ArrayExpr struct {
	Token    *Token
	Elements []Expr
}

func (e *ArrayExpr) GetToken() *Token { return e.Token }
func (e *ArrayExpr) String() string {
	return fmt.Sprintf("ArrayExpr (\n  Elements: %v\n)", e.Elements)
}
func (e *ArrayExpr) exprNode() {}

type MapProperty struct {
	Key   string
	Value Expr
}

// object literal like js
type MapExpr struct {
	Token      *Token
	Properties []MapProperty
}

func (e *MapExpr) GetToken() *Token { return e.Token }
func (e *MapExpr) String() string {
	return fmt.Sprintf("MapExpr (\n  Properties: %v\n)", e.Properties)
}
func (e *MapExpr) exprNode() {}

type FunctionExpr struct {
	Token      *Token
	Params     []*Param
	Body       *Block
	ReturnType string
	IsAsync    bool
}

func (e *FunctionExpr) GetToken() *Token { return e.Token }
func (e *FunctionExpr) String() string {
	return fmt.Sprintf("FunctionExpr (\n  Parameters: %v\n  Body: %v\n)", e.Params, e.Body)
}
func (e *FunctionExpr) exprNode() {}
func (e *FunctionExpr) MarshalJSON() ([]byte, error) {
	type Alias FunctionExpr
	return json.Marshal(&struct {
		Type string `json:"type"`
		*Alias
	}{
		Type:  "FunctionExpr",
		Alias: (*Alias)(e),
	})
}

type AwaitExpr struct {
	Token   *Token
	Operand Expr
}

func (e *AwaitExpr) GetToken() *Token { return e.Token }
func (e *AwaitExpr) String() string   { return fmt.Sprintf("AwaitExpr (%v)", e.Operand) }
func (e *AwaitExpr) exprNode()        {}

// ++x / --x; Target is an IdentExpr, IndexExpr or DotExpr.
type PrefixIncExpr struct {
	Token  *Token
	Op     *Token
	Target Expr
}

func (e *PrefixIncExpr) GetToken() *Token { return e.Token }
func (e *PrefixIncExpr) String() string {
	return fmt.Sprintf("PrefixIncExpr (\n  Op: %s\n  Target: %v\n)", e.Op.Value, e.Target)
}
func (e *PrefixIncExpr) exprNode() {}

type PostfixIncExpr struct {
	Token  *Token
	Op     *Token
	Target Expr
}

func (e *PostfixIncExpr) GetToken() *Token { return e.Token }
func (e *PostfixIncExpr) String() string {
	return fmt.Sprintf("PostfixIncExpr (\n  Op: %s\n  Target: %v\n)", e.Op.Value, e.Target)
}
func (e *PostfixIncExpr) exprNode() {}
