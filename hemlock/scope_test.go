package hemlock

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func freeVarsOf(t *testing.T, src string) []string {
	t.Helper()
	fn, ok := firstExpr(t, src).(*FunctionExpr)
	if !ok {
		t.Fatalf("source %q is not a function literal", src)
	}
	return FunctionFreeVars(fn)
}

func TestFreeVarsParamsAndLocalsBound(t *testing.T) {
	got := freeVarsOf(t, `fn(a, b) {
    let c = a + b
    return c + d
}`)
	if diff := cmp.Diff([]string{"d"}, got); diff != "" {
		t.Fatalf("free vars (-want +got):\n%s", diff)
	}
}

func TestFreeVarsUseBeforeDeclaration(t *testing.T) {
	// x before its own `let` refers to the outer binding
	got := freeVarsOf(t, `fn() {
    let a = x
    let x = 1
    return x
}`)
	if diff := cmp.Diff([]string{"x"}, got); diff != "" {
		t.Fatalf("free vars (-want +got):\n%s", diff)
	}
}

func TestFreeVarsRecursiveLiteral(t *testing.T) {
	// a literal may recurse through the name it is being bound to, so the
	// enclosing function does not report it free
	got := freeVarsOf(t, `fn() {
    let loop = fn(n) { return loop(n) }
    return loop
}`)
	if len(got) != 0 {
		t.Fatalf("free vars = %v, want none", got)
	}
}

func TestFreeVarsNestedLiteralContributes(t *testing.T) {
	got := freeVarsOf(t, `fn(a) {
    return fn(b) { return a + b + c }
}`)
	if diff := cmp.Diff([]string{"c"}, got); diff != "" {
		t.Fatalf("free vars (-want +got):\n%s", diff)
	}
}

func TestFreeVarsCatchParamScoped(t *testing.T) {
	got := freeVarsOf(t, `fn() {
    try {
        risky()
    } catch (e) {
        log(e)
    }
    return e
}`)
	want := []string{"risky", "log", "e"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("free vars (-want +got):\n%s", diff)
	}
}

func TestFreeVarsAssignmentTargetCounts(t *testing.T) {
	got := freeVarsOf(t, `fn() {
    total = total + 1
}`)
	if diff := cmp.Diff([]string{"total"}, got); diff != "" {
		t.Fatalf("free vars (-want +got):\n%s", diff)
	}
}

func TestFreeVarsForInBindsLoopVars(t *testing.T) {
	got := freeVarsOf(t, `fn(xs) {
    for (let i, x in xs) {
        sink(i, x)
    }
}`)
	if diff := cmp.Diff([]string{"sink"}, got); diff != "" {
		t.Fatalf("free vars (-want +got):\n%s", diff)
	}
}

func TestFreeVarsDefaultParams(t *testing.T) {
	got := freeVarsOf(t, `fn(a, b = base) { return a + b }`)
	if diff := cmp.Diff([]string{"base"}, got); diff != "" {
		t.Fatalf("free vars (-want +got):\n%s", diff)
	}
}
