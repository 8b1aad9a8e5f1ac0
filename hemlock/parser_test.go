package hemlock

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func parseProgram(t *testing.T, src string) *Block {
	t.Helper()
	tokens := lexAll(t, src)
	res := NewParser(tokens).Parse()
	if res.IsErr() {
		t.Fatalf("Parse(%q) failed: %v", src, res.Err)
	}
	return res.Value
}

func parseErr(t *testing.T, src string) Error {
	t.Helper()
	tokens := lexAll(t, src)
	res := NewParser(tokens).Parse()
	if res.IsOk() {
		t.Fatalf("Parse(%q) unexpectedly succeeded", src)
	}
	return res.Err
}

func firstStmt(t *testing.T, src string) Stmt {
	t.Helper()
	prog := parseProgram(t, src)
	if len(prog.Statements) == 0 {
		t.Fatalf("no statements parsed from %q", src)
	}
	return prog.Statements[0]
}

func firstExpr(t *testing.T, src string) Expr {
	t.Helper()
	stmt, ok := firstStmt(t, src).(*ExprStmt)
	if !ok {
		t.Fatalf("statement type = %T, want *ExprStmt", firstStmt(t, src))
	}
	return stmt.Expression
}

func TestParseVarDeclarations(t *testing.T) {
	decl := firstStmt(t, `let x: int = 5`).(*VarDeclareStmt)
	if decl.Name.Value != "x" || decl.Type != "int" || decl.IsConst {
		t.Fatalf("declaration = %v", decl)
	}
	num, ok := decl.Value.(*NumberExpr)
	if !ok || num.Value != 5 || !num.IsInt {
		t.Fatalf("initializer = %v", decl.Value)
	}

	cdecl := firstStmt(t, `const pi = 3.14`).(*VarDeclareStmt)
	if !cdecl.IsConst {
		t.Fatal("const declaration not marked IsConst")
	}
}

func TestParseFunctionDefWithDefaults(t *testing.T) {
	def := firstStmt(t, `fn greet(name, punct = "!") { return name + punct }`).(*FunctionDefStmt)
	if def.Name.Value != "greet" || len(def.Params) != 2 {
		t.Fatalf("definition = %v", def)
	}
	if def.Params[0].Default != nil {
		t.Fatal("required parameter has a default")
	}
	if def.Params[1].Default == nil {
		t.Fatal("optional parameter missing its default")
	}
}

func TestParseAsyncFunctionDef(t *testing.T) {
	def := firstStmt(t, `async fn work() { return 1 }`).(*FunctionDefStmt)
	if !def.IsAsync {
		t.Fatal("async fn not marked IsAsync")
	}
}

func TestParseCompoundAssignmentDesugars(t *testing.T) {
	assign := firstExpr(t, `x += 2`).(*AssignExpr)
	if assign.Name.Value != "x" {
		t.Fatalf("target = %q", assign.Name.Value)
	}
	bin, ok := assign.Value.(*BinaryOp)
	if !ok {
		t.Fatalf("value type = %T, want *BinaryOp", assign.Value)
	}
	if bin.Op.Kind != TokenPlus {
		t.Fatalf("desugared operator = %v, want TokenPlus", bin.Op.Kind)
	}
	if _, ok := bin.Left.(*IdentExpr); !ok {
		t.Fatalf("left operand type = %T", bin.Left)
	}
}

func TestParseAssignmentTargets(t *testing.T) {
	if _, ok := firstExpr(t, `xs[0] = 1`).(*IndexAssignExpr); !ok {
		t.Fatal("index assignment not recognized")
	}
	if _, ok := firstExpr(t, `obj.field = 1`).(*SetAttrExpr); !ok {
		t.Fatal("property assignment not recognized")
	}
	err := parseErr(t, `1 = 2`)
	if !strings.Contains(err.Error(), "invalid assignment target") {
		t.Fatalf("error = %v", err)
	}
}

func TestParseIncDecTargets(t *testing.T) {
	if _, ok := firstExpr(t, `i++`).(*PostfixIncExpr); !ok {
		t.Fatal("postfix increment not recognized")
	}
	if _, ok := firstExpr(t, `--i`).(*PrefixIncExpr); !ok {
		t.Fatal("prefix decrement not recognized")
	}
	err := parseErr(t, `(a + b)++`)
	if !strings.Contains(err.Error(), "invalid increment/decrement target") {
		t.Fatalf("error = %v", err)
	}
}

func TestParseForLoops(t *testing.T) {
	forStmt := firstStmt(t, `for (let i = 0; i < 10; i++) { i }`).(*ForStmt)
	if forStmt.Init == nil || forStmt.Cond == nil || forStmt.Post == nil {
		t.Fatalf("for clauses = %v", forStmt)
	}

	forIn := firstStmt(t, `for (let k, v in pairs) { k }`).(*ForInStmt)
	if forIn.KeyVar.Value != "k" || forIn.ValueVar == nil || forIn.ValueVar.Value != "v" {
		t.Fatalf("for-in variables = %v / %v", forIn.KeyVar, forIn.ValueVar)
	}

	single := firstStmt(t, `for (let x in xs) { x }`).(*ForInStmt)
	if single.ValueVar != nil {
		t.Fatal("single-variable for-in should have nil ValueVar")
	}
}

func TestParseSwitch(t *testing.T) {
	sw := firstStmt(t, `switch (n) { case 1: { a } case 2: { b } default: { c } }`).(*SwitchStmt)
	if len(sw.Cases) != 2 {
		t.Fatalf("case count = %d, want 2", len(sw.Cases))
	}
	if sw.Default == nil {
		t.Fatal("default block not captured")
	}
}

func TestParseTryShapes(t *testing.T) {
	full := firstStmt(t, `try { a } catch (e) { b } finally { c }`).(*TryStmt)
	if full.CatchParam == nil || full.CatchParam.Value != "e" || full.FinallyBlock == nil {
		t.Fatalf("try clauses = %v", full)
	}

	finOnly := firstStmt(t, `try { a } finally { c }`).(*TryStmt)
	if finOnly.CatchParam != nil || finOnly.CatchBlock != nil {
		t.Fatal("finally-only try should have no catch clause")
	}

	err := parseErr(t, `try { a }`)
	if !strings.Contains(err.Error(), "catch or finally") {
		t.Fatalf("error = %v", err)
	}
}

func TestParseImportForms(t *testing.T) {
	named := firstStmt(t, `import { add, mul as times } from "./math"`).(*ImportStmt)
	wantNames := []ImportName{{Name: "add"}, {Name: "mul", Alias: "times"}}
	if diff := cmp.Diff(wantNames, named.Names); diff != "" {
		t.Fatalf("import names (-want +got):\n%s", diff)
	}
	if named.Path != "./math" || named.IsNamespace {
		t.Fatalf("import = %v", named)
	}

	ns := firstStmt(t, `import * as math from "./math"`).(*ImportStmt)
	if !ns.IsNamespace || ns.NamespaceName != "math" {
		t.Fatalf("namespace import = %v", ns)
	}

	bare := firstStmt(t, `import "./math" as m`).(*ImportStmt)
	if !bare.IsNamespace || bare.NamespaceName != "m" {
		t.Fatalf("path-as import = %v", bare)
	}
}

func TestParseExportForms(t *testing.T) {
	decl := firstStmt(t, `export fn add(a, b) { return a + b }`).(*ExportStmt)
	if _, ok := decl.Decl.(*FunctionDefStmt); !ok {
		t.Fatalf("exported declaration type = %T", decl.Decl)
	}

	list := firstStmt(t, `export { add, mul as times }`).(*ExportStmt)
	if len(list.Names) != 2 || list.Names[1].Alias != "times" {
		t.Fatalf("export list = %v", list.Names)
	}

	err := parseErr(t, `export 1 + 2`)
	if !strings.Contains(err.Error(), "only declarations can be exported") {
		t.Fatalf("error = %v", err)
	}
}

func TestParseExtern(t *testing.T) {
	ext := firstStmt(t, `extern fn write(fd: i32, buf: ptr, len: u64): i64`).(*ExternFnStmt)
	if ext.Name.Value != "write" || len(ext.Params) != 3 {
		t.Fatalf("extern = %v", ext)
	}
	if ext.Params[1].Type != "ptr" || ext.ReturnType != "i64" {
		t.Fatalf("extern types = %v / %s", ext.Params, ext.ReturnType)
	}

	void := firstStmt(t, `extern fn flush()`).(*ExternFnStmt)
	if void.ReturnType != "void" {
		t.Fatalf("default return type = %q, want void", void.ReturnType)
	}
}

func TestParseStringInterpolation(t *testing.T) {
	interp := firstExpr(t, `"sum = ${a + b}!"`).(*InterpExpr)
	if len(interp.Exprs) != 1 {
		t.Fatalf("expression count = %d, want 1", len(interp.Exprs))
	}
	wantParts := []string{"sum = ", "!"}
	if diff := cmp.Diff(wantParts, interp.Parts); diff != "" {
		t.Fatalf("string parts (-want +got):\n%s", diff)
	}

	// an escaped marker stays a plain string
	plain := firstExpr(t, `"worth \$5"`).(*StringExpr)
	if plain.Value != "worth $5" {
		t.Fatalf("escaped marker = %q", plain.Value)
	}
}

func TestParsePrecedence(t *testing.T) {
	bin := firstExpr(t, `1 + 2 * 3`).(*BinaryOp)
	if bin.Op.Kind != TokenPlus {
		t.Fatalf("root operator = %v, want TokenPlus", bin.Op.Kind)
	}
	right, ok := bin.Right.(*BinaryOp)
	if !ok || right.Op.Kind != TokenMul {
		t.Fatalf("right operand = %v, want multiplication", bin.Right)
	}

	tern := firstExpr(t, `a ?? b ? c : d`).(*TernaryExpr)
	if _, ok := tern.Cond.(*CoalesceExpr); !ok {
		t.Fatalf("ternary condition type = %T, want *CoalesceExpr", tern.Cond)
	}
}

func TestParseDeferAndThrow(t *testing.T) {
	def := firstStmt(t, `defer close(f)`).(*DeferStmt)
	if _, ok := def.Body.(*ExprStmt); !ok {
		t.Fatalf("defer body type = %T", def.Body)
	}

	thr := firstStmt(t, `throw "boom"`).(*ThrowStmt)
	if _, ok := thr.Value.(*StringExpr); !ok {
		t.Fatalf("throw value type = %T", thr.Value)
	}
}

func TestParseEnumMemberValues(t *testing.T) {
	enum := firstStmt(t, `enum Status { Ok, NotFound = 404, Gone }`).(*EnumStmt)
	if enum.Name.Value != "Status" || len(enum.Members) != 3 {
		t.Fatalf("enum = %v", enum)
	}
	names := make([]string, len(enum.Members))
	for i, m := range enum.Members {
		names[i] = m.Name.Value
	}
	if diff := cmp.Diff([]string{"Ok", "NotFound", "Gone"}, names); diff != "" {
		t.Fatalf("member names mismatch (-want +got):\n%s", diff)
	}
	if enum.Members[0].Value != nil || enum.Members[2].Value != nil {
		t.Fatal("auto members carry explicit values")
	}
	if enum.Members[1].Value == nil || *enum.Members[1].Value != 404 {
		t.Fatalf("explicit member value = %v, want 404", enum.Members[1].Value)
	}

	neg := firstStmt(t, `enum Level { Unset = -1, Debug }`).(*EnumStmt)
	if neg.Members[0].Value == nil || *neg.Members[0].Value != -1 {
		t.Fatalf("negative member value = %v, want -1", neg.Members[0].Value)
	}
}
