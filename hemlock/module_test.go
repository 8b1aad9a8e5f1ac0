package hemlock

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeModule(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestResolveRelativeAndExtension(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "util.hml", `fn id(x) { return x }`)
	cache := NewModuleCache(dir, "")

	// extension is appended when missing; both spellings resolve to one path
	short, err := cache.Resolve("", "./util")
	if err != nil {
		t.Fatalf("Resolve(./util): %v", err)
	}
	long, err := cache.Resolve("", "./util.hml")
	if err != nil {
		t.Fatalf("Resolve(./util.hml): %v", err)
	}
	if short != long {
		t.Fatalf("spellings diverge: %q vs %q", short, long)
	}
	if filepath.Base(short) != "util.hml" {
		t.Fatalf("resolved path = %q", short)
	}
}

func TestResolveRelativeToImporter(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "lib")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	writeModule(t, sub, "inner.hml", `let a = 1`)
	importer := writeModule(t, sub, "outer.hml", `import "./inner"`)

	cache := NewModuleCache(dir, "")
	resolved, err := cache.Resolve(importer, "./inner")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if filepath.Dir(resolved) != filepath.Dir(importer) {
		t.Fatalf("resolved against wrong base: %q", resolved)
	}
}

func TestResolveStdlibAlias(t *testing.T) {
	stdlib := t.TempDir()
	writeModule(t, stdlib, "strings.hml", `fn upper(s) { return s }`)

	cache := NewModuleCache(t.TempDir(), stdlib)
	resolved, err := cache.Resolve("", "@stdlib/strings")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !strings.HasSuffix(resolved, "strings.hml") {
		t.Fatalf("resolved path = %q", resolved)
	}

	bare := NewModuleCache(t.TempDir(), "")
	if _, err := bare.Resolve("", "@stdlib/strings"); err == nil {
		t.Fatal("expected error without a stdlib root")
	}
}

func TestResolveMissingFile(t *testing.T) {
	cache := NewModuleCache(t.TempDir(), "")
	_, err := cache.Resolve("", "./nothing")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("error = %v", err)
	}
}

func TestCompileExports(t *testing.T) {
	dir := t.TempDir()
	path := writeModule(t, dir, "math.hml", `
export fn add(a, b) { return a + b }
fn helper(x, y, z = 0) { return x }
export { total }
let total = 0
const scale = 2
`)
	cache := NewModuleCache(dir, "")
	mod, err := cache.Compile(path)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	add := mod.FindExport("add")
	if add == nil || !add.IsFunction || add.NumParams != 2 {
		t.Fatalf("add export = %v", add)
	}
	if add.Mangled != mod.Prefix+"add" {
		t.Fatalf("mangled = %q, want prefix %q applied", add.Mangled, mod.Prefix)
	}

	// top-level functions are exported even without the keyword
	helper := mod.FindExport("helper")
	if helper == nil || helper.NumParams != 3 {
		t.Fatalf("implicit function export = %v", helper)
	}

	total := mod.FindExport("total")
	if total == nil || total.IsFunction {
		t.Fatalf("listed export = %v", total)
	}

	if mod.FindExport("scale") != nil {
		t.Fatal("private const leaked into exports")
	}
	if !mod.Consts["scale"] {
		t.Fatal("const not tracked")
	}
	if !mod.IsTopLevel("scale") {
		t.Fatal("private binding missing from top-level set")
	}
}

func TestCompileCachedIdentity(t *testing.T) {
	dir := t.TempDir()
	path := writeModule(t, dir, "once.hml", `fn f() { return 1 }`)
	cache := NewModuleCache(dir, "")

	first, err := cache.Compile(path)
	if err != nil {
		t.Fatalf("first Compile: %v", err)
	}
	second, err := cache.Compile(path)
	if err != nil {
		t.Fatalf("second Compile: %v", err)
	}
	if first != second {
		t.Fatal("cache returned a different module object")
	}
	if len(cache.Modules()) != 1 {
		t.Fatalf("module count = %d, want 1", len(cache.Modules()))
	}
}

func TestCompileImportBindings(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "dep.hml", `export fn double(x) { return x * 2 }`)
	path := writeModule(t, dir, "user.hml", `
import { double as twice } from "./dep"
let y = twice(3)
`)
	cache := NewModuleCache(dir, "")
	mod, err := cache.Compile(path)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	bind := mod.FindImport("twice")
	if bind == nil {
		t.Fatal("aliased import not bound")
	}
	if bind.OriginalName != "double" || !bind.IsFunction || bind.NumParams != 1 {
		t.Fatalf("binding = %+v", bind)
	}
	if mod.FindImport("double") != nil {
		t.Fatal("original name should not be bound when aliased")
	}
}

func TestCompileNamespaceImport(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "dep.hml", `export let version = 3`)
	path := writeModule(t, dir, "user.hml", `import * as dep from "./dep"`)

	cache := NewModuleCache(dir, "")
	mod, err := cache.Compile(path)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	ns := mod.Namespaces["dep"]
	if ns == nil || ns.FindExport("version") == nil {
		t.Fatalf("namespace binding = %v", ns)
	}
}

func TestCompileMissingExport(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "dep.hml", `let hidden = 1`)
	path := writeModule(t, dir, "user.hml", `import { hidden } from "./dep"`)

	cache := NewModuleCache(dir, "")
	_, err := cache.Compile(path)
	if err == nil || !strings.Contains(err.Error(), `does not export "hidden"`) {
		t.Fatalf("error = %v", err)
	}
}

func TestCompileCycleDetection(t *testing.T) {
	dir := t.TempDir()
	pathA := writeModule(t, dir, "a.hml", `import "./b" as b
fn fa() { return 1 }`)
	writeModule(t, dir, "b.hml", `import "./a" as a
fn fb() { return 2 }`)

	cache := NewModuleCache(dir, "")
	_, err := cache.Compile(pathA)
	if err == nil {
		t.Fatal("cycle went undetected")
	}
	msg := err.Error()
	if !strings.Contains(msg, "circular import") {
		t.Fatalf("error = %v", err)
	}
	if !strings.Contains(msg, "a.hml -> b.hml -> a.hml") {
		t.Fatalf("cycle chain not reported: %v", err)
	}
}

func TestCompileFailureNotCached(t *testing.T) {
	dir := t.TempDir()
	path := writeModule(t, dir, "user.hml", `import "./dep" as dep`)

	cache := NewModuleCache(dir, "")
	if _, err := cache.Compile(path); err == nil {
		t.Fatal("expected failure for missing dependency")
	}
	if len(cache.Modules()) != 0 {
		t.Fatalf("failed module left in cache: %v", cache.Modules())
	}

	// once the dependency exists the same path compiles cleanly
	writeModule(t, dir, "dep.hml", `export let ok = true`)
	mod, err := cache.Compile(path)
	if err != nil {
		t.Fatalf("Compile after fix: %v", err)
	}
	if mod.Namespaces["dep"] == nil {
		t.Fatal("dependency not bound on retry")
	}
}

func TestDiamondImportSharesOneModule(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "shared.hml", `export fn f() { return 1 }`)
	writeModule(t, dir, "left.hml", `import { f } from "./shared"`)
	writeModule(t, dir, "right.hml", `import { f } from "./shared"`)
	path := writeModule(t, dir, "top.hml", `
import "./left" as l
import "./right" as r
`)

	cache := NewModuleCache(dir, "")
	if _, err := cache.Compile(path); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	// top, left, right, shared - the diamond base compiles exactly once
	if got := len(cache.Modules()); got != 4 {
		t.Fatalf("module count = %d, want 4", got)
	}
}
