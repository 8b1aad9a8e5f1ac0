package hemlock

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

// compileMain lowers a main program (plus any modules previously written
// into dir) and returns the generated C translation unit.
func compileMain(t *testing.T, dir, src string) string {
	t.Helper()
	path := writeModule(t, dir, "main.hml", src)
	var out bytes.Buffer
	if err := CompileSource(path, src, NewModuleCache(dir, ""), &out); err != nil {
		t.Fatalf("CompileSource failed: %v\nsource:\n%s", err, src)
	}
	return out.String()
}

func compileMainErr(t *testing.T, src string) error {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "main.hml")
	var out bytes.Buffer
	err := CompileSource(path, src, NewModuleCache(dir, ""), &out)
	if err == nil {
		t.Fatalf("CompileSource unexpectedly succeeded for:\n%s", src)
	}
	return err
}

func mustContain(t *testing.T, out string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(out, want) {
			t.Errorf("generated C missing %q", want)
		}
	}
	if t.Failed() {
		t.Logf("output:\n%s", out)
		t.FailNow()
	}
}

func TestGenerateProgramSkeleton(t *testing.T) {
	out := compileMain(t, t.TempDir(), `let x = 1`)
	mustContain(t, out,
		`#include "hemlock_runtime.h"`,
		"#include <setjmp.h>",
		"int main(int argc, char **argv) {",
		"hml_runtime_init(argc, argv);",
		"hml_runtime_shutdown();",
		"return 0;",
	)
	// top-level bindings get process-wide storage
	mustContain(t, out, "static HmlValue _main_x;")
}

func TestCounterClosureMutatesThroughEnv(t *testing.T) {
	out := compileMain(t, t.TempDir(), `
fn make_counter() {
    let n = 0
    return fn() {
        n = n + 1
        return n
    }
}
`)
	mustContain(t, out,
		"hml_closure_env_create(1)",
		"static HmlValue _hml_closure_wrapper_0(HmlValue *_args, int _nargs, void *_env)",
		"hml_val_closure(_hml_closure_wrapper_0",
		// the captured counter is read and written via the env, never a copy
		"hml_closure_env_get(_closure_env, 0)",
		"hml_closure_env_set(_closure_env, 0,",
	)
}

func TestSiblingClosuresShareOneEnv(t *testing.T) {
	out := compileMain(t, t.TempDir(), `
fn make_cell() {
    let value = 0
    let set = fn(v) { value = v }
    let get = fn() { return value }
    return [set, get]
}
`)
	if !strings.Contains(out, "_shared_env_0") {
		t.Fatalf("no shared env materialized:\n%s", out)
	}
	// both literals close over the same env object
	if got := strings.Count(out, "hml_val_closure(_hml_closure_wrapper_"); got != 2 {
		t.Fatalf("closure constructions = %d, want 2", got)
	}
	if got := strings.Count(out, ", _shared_env_0, "); got != 2 {
		t.Fatalf("closures bound to the shared env = %d, want 2\n%s", got, out)
	}
}

func TestNestedCaptureChain(t *testing.T) {
	out := compileMain(t, t.TempDir(), `
fn outer() {
    let x = 1
    return fn() {
        return fn() { return x }
    }
}
`)
	// the middle closure re-captures x out of its own env for the inner one
	mustContain(t, out,
		"hml_closure_env_get(_closure_env, 0)",
		"_hml_closure_wrapper_1",
	)
}

func TestSelfReferentialBindingPatched(t *testing.T) {
	out := compileMain(t, t.TempDir(), `
fn run() {
    let fact = fn(n) {
        if (n <= 1) { return 1 }
        return n * fact(n - 1)
    }
    return fact(5)
}
`)
	// the env slot for fact is written once the binding exists, and the
	// recursive call reads it back through the same env
	idx := strings.Index(out, "hml_val_closure(_hml_closure_wrapper_0, _shared_env_0, 1)")
	if idx < 0 {
		t.Fatalf("closure not bound to the shared env:\n%s", out)
	}
	fixup := strings.Index(out, "hml_closure_env_set(_shared_env_0, 0, fact);")
	if fixup < 0 || fixup < idx {
		t.Fatalf("self-reference writeback missing or misplaced:\n%s", out)
	}
	mustContain(t, out, "hml_closure_env_get(_closure_env, 0)")
}

func TestModuleInitIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "dep.hml", `
export let answer = 42
fn helper() { return answer }
`)
	out := compileMain(t, dir, `
import { answer } from "./dep"
let x = answer
`)
	mustContain(t, out,
		"void _mod1_init(void) {",
		"static int _mod1_init_done = 0;",
		"if (_mod1_init_done) return;",
		"_mod1_init_done = 1;",
		// main runs the initializer before touching its exports
		"_mod1_init();",
		"static HmlValue _mod1_answer;",
	)
	initCall := strings.Index(out, "_mod1_init();")
	use := strings.Index(out, "_main_x = ")
	if use >= 0 && initCall > use {
		t.Fatalf("module initialized after first use:\n%s", out)
	}
}

func TestImportedFunctionCalledDirectly(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "dep.hml", `export fn double(x) { return x * 2 }`)
	out := compileMain(t, dir, `
import { double } from "./dep"
let y = double(3)
`)
	mustContain(t, out, "_mod1_fn_double(NULL")
}

func TestTryCatchFinallyMachinery(t *testing.T) {
	out := compileMain(t, t.TempDir(), `
fn risky() {
    try {
        return 1
    } catch (e) {
        return 2
    } finally {
        let cleanup = 0
    }
}
`)
	mustContain(t, out,
		"hml_exception_push();",
		"setjmp(_exc_ctx_0->jmpbuf) == 0",
		"hml_exception_pop();",
		"_finally_",
		// a return inside try parks its value and runs the finally first
		"_try_ret_",
		"_try_has_ret_",
	)
}

func TestCatchlessFinallyRethrows(t *testing.T) {
	out := compileMain(t, t.TempDir(), `
fn f() {
    try {
        throw "boom"
    } finally {
        let cleanup = 0
    }
}
`)
	mustContain(t, out, "_rethrow_", "hml_throw(_exc_val_")
}

func TestDeferRunsInReverseOrder(t *testing.T) {
	out := compileMain(t, t.TempDir(), `
fn first() { return 1 }
fn second() { return 2 }
fn f() {
    defer first()
    defer second()
    return 0
}
`)
	impl := out[strings.LastIndex(out, "hml_fn_f("):]
	b := strings.Index(impl, "hml_fn_second(")
	a := strings.Index(impl, "hml_fn_first(")
	if a < 0 || b < 0 {
		t.Fatalf("deferred calls not emitted:\n%s", impl)
	}
	if b > a {
		t.Fatalf("defers not reversed: second at %d, first at %d\n%s", b, a, impl)
	}
}

func TestDeferInLoopUsesRuntimeStack(t *testing.T) {
	out := compileMain(t, t.TempDir(), `
fn sink(x) { return x }
fn f() {
    for (let i = 0; i < 3; i++) {
        defer sink(i)
    }
    return 0
}
`)
	mustContain(t, out, "hml_defer_push(", "hml_defer_run_all();")
}

func TestForLoopContinueHitsPostClause(t *testing.T) {
	out := compileMain(t, t.TempDir(), `
fn f() {
    for (let i = 0; i < 10; i++) {
        if (i == 3) { continue }
    }
    return 0
}
`)
	mustContain(t, out, "goto _for_post_", "_for_post_")
}

func TestForInPairs(t *testing.T) {
	out := compileMain(t, t.TempDir(), `
fn f(xs) {
    for (let i, x in xs) {
        let y = x
    }
    return 0
}
`)
	mustContain(t, out,
		"hml_type_tag(",
		"HML_VAL_ARRAY",
		"hml_array_get(",
		"hml_object_key_at(",
		"hml_string_index(",
	)
}

func TestSwitchFirstMatchWins(t *testing.T) {
	out := compileMain(t, t.TempDir(), `
fn f(n) {
    switch (n) {
        case 1: { return 10 }
        case 2: { return 20 }
        default: { return 0 }
    }
}
`)
	mustContain(t, out, "do {", "} while (0);", "hml_equals(")
}

func TestExternLowering(t *testing.T) {
	out := compileMain(t, t.TempDir(), `
extern fn putenv(s: string): i32
fn f() {
    return putenv("K=V")
}
`)
	mustContain(t, out,
		"extern long long putenv(const char *);",
		"static HmlValue hml_fn_putenv(HmlClosureEnv *_closure_env, HmlValue s)",
		"hml_as_cstring(",
		"hml_val_int(putenv(",
	)
}

func TestStringInterpolationConcat(t *testing.T) {
	out := compileMain(t, t.TempDir(), `
fn f(a) {
    return "value: ${a}!"
}
`)
	mustContain(t, out, "hml_to_string(", "hml_string_concat(")
}

func TestUndefinedIdentifierDiagnostic(t *testing.T) {
	err := compileMainErr(t, `let x = nope`)
	if !strings.Contains(err.Error(), `undefined identifier "nope"`) {
		t.Fatalf("error = %v", err)
	}
}

func TestConstAssignmentDiagnostic(t *testing.T) {
	err := compileMainErr(t, `
const limit = 10
fn f() {
    limit = 20
    return 0
}
`)
	if !strings.Contains(err.Error(), `cannot assign to constant "limit"`) {
		t.Fatalf("error = %v", err)
	}
}

func TestEnumMembersLowerToInts(t *testing.T) {
	out := compileMain(t, t.TempDir(), `
enum Color { Red, Green, Blue }
let c = Color.Green
`)
	// member access folds to the constant; the enum itself is a real object
	mustContain(t, out,
		"hml_val_int(1)",
		"static HmlValue _main_Color;",
		"_main_Color = hml_object_new();",
		`hml_object_set_field(_main_Color, "Green", hml_val_int(1));`,
	)
}

// implBody returns the emitted body of the procedure opened by sig.
func implBody(t *testing.T, out, sig string) string {
	t.Helper()
	start := strings.Index(out, sig)
	if start < 0 {
		t.Fatalf("procedure %q not emitted:\n%s", sig, out)
	}
	rest := out[start:]
	end := strings.Index(rest, "\n}")
	if end < 0 {
		t.Fatalf("procedure %q not terminated:\n%s", sig, out)
	}
	return rest[:end]
}

func TestModuleEnumsScopedPerModule(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "a.hml", `
enum Color { Red, Green }
export fn green() { return Color.Green }
`)
	writeModule(t, dir, "b.hml", `
enum Color { Red = 10, Green }
export fn green2() { return Color.Green }
`)
	out := compileMain(t, dir, `
import { green } from "./a"
import { green2 } from "./b"
let x = green()
let y = green2()
`)
	// each module folds its own Color, not whichever compiled last
	aBody := implBody(t, out, "HmlValue _mod1_fn_green(HmlClosureEnv *_closure_env) {")
	if !strings.Contains(aBody, "hml_val_int(1)") {
		t.Fatalf("first module's member value wrong:\n%s", aBody)
	}
	bBody := implBody(t, out, "HmlValue _mod2_fn_green2(HmlClosureEnv *_closure_env) {")
	if !strings.Contains(bBody, "hml_val_int(11)") {
		t.Fatalf("second module's member value wrong:\n%s", bBody)
	}
}

func TestNamespaceEnumReadsInitializedObject(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "colors.hml", `export enum Color { Red, Green, Blue }`)
	out := compileMain(t, dir, `
import * as colors from "./colors"
let g = colors.Color.Green
`)
	mustContain(t, out,
		"static HmlValue _mod1_Color;",
		"_mod1_Color = hml_object_new();",
		`hml_object_set_field(_mod1_Color, "Green", hml_val_int(1));`,
		"hml_object_get_field(",
	)
}

func TestImportedLetFunctionCalledDirectly(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "dep.hml", `export let double = fn(x) { return x * 2 }`)
	out := compileMain(t, dir, `
import { double } from "./dep"
let y = double(3)
`)
	// the procedure backing the binding exists, the global points at it and
	// the import call site targets it
	mustContain(t, out,
		"HmlValue _mod1_fn_double(HmlClosureEnv *_closure_env, HmlValue x)",
		"_mod1_double = hml_val_function((HmlFn)_mod1_fn_double, 1);",
		"_mod1_fn_double(NULL",
	)
}

func TestForInLoopVarSyncedIntoSharedEnv(t *testing.T) {
	out := compileMain(t, t.TempDir(), `
fn collect(xs) {
    let fns = []
    for (let k in xs) {
        fns.push(fn() { return k })
        let copy = k
    }
    return fns
}
`)
	// each iteration writes the fresh loop value into the slot every body
	// read of k resolves through
	mustContain(t, out,
		"hml_closure_env_set(_shared_env_0, 0, k);",
		"hml_closure_env_get(_shared_env_0, 0)",
	)
}

func TestSwitchCaseValuesPreEvaluated(t *testing.T) {
	out := compileMain(t, t.TempDir(), `
fn pick(n) { return n }
fn f(n) {
    switch (n) {
        case pick(1): { return 10 }
        case pick(2): { return 20 }
        default: { return 0 }
    }
}
`)
	firstCmp := strings.Index(out, "if (hml_equals(")
	lastEval := strings.LastIndex(out, "hml_fn_pick(NULL")
	if firstCmp < 0 || lastEval < 0 {
		t.Fatalf("switch lowering incomplete:\n%s", out)
	}
	if lastEval > firstCmp {
		t.Fatalf("case value evaluated after a comparison:\n%s", out)
	}
}

func TestDefersReplayedAtEachReturn(t *testing.T) {
	out := compileMain(t, t.TempDir(), `
fn first() { return 1 }
fn second() { return 2 }
fn f(flag) {
    defer first()
    defer second()
    if (flag) { return 1 }
    return 2
}
`)
	impl := out[strings.LastIndex(out, "HmlValue hml_fn_f("):]
	// both explicit returns replay the list, as does the implicit exit
	if got := strings.Count(impl, "hml_fn_first(NULL"); got != 3 {
		t.Fatalf("first deferred call emitted %d times, want 3\n%s", got, impl)
	}
	if got := strings.Count(impl, "hml_fn_second(NULL"); got != 3 {
		t.Fatalf("second deferred call emitted %d times, want 3\n%s", got, impl)
	}
	rest := impl
	for exit := 0; exit < 3; exit++ {
		b := strings.Index(rest, "hml_fn_second(NULL")
		a := strings.Index(rest, "hml_fn_first(NULL")
		if b < 0 || a < 0 || b > a {
			t.Fatalf("defers not reversed at exit %d:\n%s", exit, impl)
		}
		rest = rest[a+1:]
	}
}
