package hemlock

import "sort"

// Builtin describes one runtime entry point a bare identifier or direct
// call can resolve to. Symbol is the C function emitted for a direct call;
// identifiers used as values materialize a function value wrapping it.
type Builtin struct {
	Name     string
	Symbol   string
	Arity    int
	Variadic bool // accepts Arity or fewer args, padded with null
}

var builtinCatalog = map[string]Builtin{
	// io
	"print":   {"print", "hml_print", 1, false},
	"println": {"println", "hml_println", 1, false},
	"input":   {"input", "hml_input", 1, true},
	"eprint":  {"eprint", "hml_eprint", 1, false},

	// introspection / conversion
	"typeof":    {"typeof", "hml_typeof", 1, false},
	"to_string": {"to_string", "hml_to_string", 1, false},
	"to_int":    {"to_int", "hml_to_int", 1, false},
	"to_float":  {"to_float", "hml_to_float", 1, false},
	"parse_int": {"parse_int", "hml_parse_int", 1, false},
	"assert":    {"assert", "hml_assert", 2, true},

	// math
	"abs":    {"abs", "hml_abs", 1, false},
	"sqrt":   {"sqrt", "hml_sqrt", 1, false},
	"floor":  {"floor", "hml_floor", 1, false},
	"ceil":   {"ceil", "hml_ceil", 1, false},
	"round":  {"round", "hml_round", 1, false},
	"pow":    {"pow", "hml_pow", 2, false},
	"min":    {"min", "hml_min", 2, false},
	"max":    {"max", "hml_max", 2, false},
	"random": {"random", "hml_random", 0, false},
	"sin":    {"sin", "hml_sin", 1, false},
	"cos":    {"cos", "hml_cos", 1, false},
	"tan":    {"tan", "hml_tan", 1, false},
	"log":    {"log", "hml_log", 1, false},
	"exp":    {"exp", "hml_exp", 1, false},

	// filesystem
	"open":          {"open", "hml_open", 2, true},
	"read_file":     {"read_file", "hml_read_file", 1, false},
	"write_file":    {"write_file", "hml_write_file", 2, false},
	"append_file":   {"append_file", "hml_append_file", 2, false},
	"delete_file":   {"delete_file", "hml_delete_file", 1, false},
	"file_exists":   {"file_exists", "hml_file_exists", 1, false},
	"list_dir":      {"list_dir", "hml_list_dir", 1, false},
	"make_dir":      {"make_dir", "hml_make_dir", 1, false},
	"cwd":           {"cwd", "hml_cwd", 0, false},
	"chdir":         {"chdir", "hml_chdir", 1, false},
	"absolute_path": {"absolute_path", "hml_absolute_path", 1, false},

	// environment / process
	"getenv": {"getenv", "hml_getenv", 1, false},
	"setenv": {"setenv", "hml_setenv", 2, false},
	"args":   {"args", "hml_args", 0, false},
	"exit":   {"exit", "hml_exit", 1, true},
	"exec":   {"exec", "hml_exec", 1, false},

	// time
	"time_now": {"time_now", "hml_time_now", 0, false},
	"clock_ms": {"clock_ms", "hml_clock_ms", 0, false},
	"sleep":    {"sleep", "hml_sleep", 1, false},

	// concurrency
	"spawn":   {"spawn", "hml_spawn", 2, true},
	"channel": {"channel", "hml_channel_create", 1, true},
	"join":    {"join", "hml_join", 1, false},

	// buffers
	"buffer": {"buffer", "hml_buffer_create", 1, false},

	// sockets
	"socket":       {"socket", "hml_socket_create", 2, true},
	"resolve_host": {"resolve_host", "hml_resolve_host", 1, false},
}

// LookupBuiltin returns the catalog entry for a name, if any.
// BuiltinNames lists every callable builtin, for editor tooling.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtinCatalog))
	for name := range builtinCatalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func LookupBuiltin(name string) (Builtin, bool) {
	b, ok := builtinCatalog[name]
	return b, ok
}

// MethodShape controls how a property-call lowers.
type MethodShape int

const (
	// MethodDirect: result = symbol(obj, args...)
	MethodDirect MethodShape = iota
	// MethodVoid: symbol(obj, args...); result = null
	MethodVoid
	// MethodDual: runtime type-tag branch between StringSymbol (for
	// strings) and Symbol (everything else)
	MethodDual
)

// Method describes one recognized method name at a fixed arity. Anything
// not in the table falls back to a dynamic hml_call_method dispatch.
type Method struct {
	Symbol       string
	StringSymbol string
	Shape        MethodShape
}

type methodKey struct {
	name  string
	arity int
}

var methodCatalog = map[methodKey]Method{
	// string methods
	{"split", 1}:       {Symbol: "hml_string_split", Shape: MethodDirect},
	{"trim", 0}:        {Symbol: "hml_string_trim", Shape: MethodDirect},
	{"upper", 0}:       {Symbol: "hml_string_upper", Shape: MethodDirect},
	{"lower", 0}:       {Symbol: "hml_string_lower", Shape: MethodDirect},
	{"replace", 2}:     {Symbol: "hml_string_replace", Shape: MethodDirect},
	{"starts_with", 1}: {Symbol: "hml_string_starts_with", Shape: MethodDirect},
	{"ends_with", 1}:   {Symbol: "hml_string_ends_with", Shape: MethodDirect},
	{"char_at", 1}:     {Symbol: "hml_string_char_at", Shape: MethodDirect},
	{"byte_at", 1}:     {Symbol: "hml_string_byte_at", Shape: MethodDirect},

	// methods shared by strings and arrays, dispatched on the type tag
	{"slice", 2}:    {Symbol: "hml_array_slice", StringSymbol: "hml_string_slice", Shape: MethodDual},
	{"find", 1}:     {Symbol: "hml_array_find", StringSymbol: "hml_string_find", Shape: MethodDual},
	{"contains", 1}: {Symbol: "hml_array_contains", StringSymbol: "hml_string_contains", Shape: MethodDual},

	// array methods
	{"push", 1}:    {Symbol: "hml_array_push", Shape: MethodVoid},
	{"pop", 0}:     {Symbol: "hml_array_pop", Shape: MethodDirect},
	{"shift", 0}:   {Symbol: "hml_array_shift", Shape: MethodDirect},
	{"unshift", 1}: {Symbol: "hml_array_unshift", Shape: MethodVoid},
	{"insert", 2}:  {Symbol: "hml_array_insert", Shape: MethodVoid},
	{"remove", 1}:  {Symbol: "hml_array_remove", Shape: MethodDirect},
	{"join", 1}:    {Symbol: "hml_array_join", Shape: MethodDirect},
	{"concat", 1}:  {Symbol: "hml_array_concat", Shape: MethodDirect},
	{"reverse", 0}: {Symbol: "hml_array_reverse", Shape: MethodVoid},
	{"first", 0}:   {Symbol: "hml_array_first", Shape: MethodDirect},
	{"last", 0}:    {Symbol: "hml_array_last", Shape: MethodDirect},
	{"clear", 0}:   {Symbol: "hml_array_clear", Shape: MethodVoid},
	{"map", 1}:     {Symbol: "hml_array_map", Shape: MethodDirect},
	{"filter", 1}:  {Symbol: "hml_array_filter", Shape: MethodDirect},
	{"reduce", 2}:  {Symbol: "hml_array_reduce", Shape: MethodDirect},

	// file methods
	{"read", 1}:  {Symbol: "hml_file_read", Shape: MethodDirect},
	{"read", 0}:  {Symbol: "hml_file_read_all", Shape: MethodDirect},
	{"write", 1}: {Symbol: "hml_file_write", Shape: MethodDirect},
	{"seek", 1}:  {Symbol: "hml_file_seek", Shape: MethodDirect},
	{"tell", 0}:  {Symbol: "hml_file_tell", Shape: MethodDirect},
	{"close", 0}: {Symbol: "hml_handle_close", Shape: MethodVoid},

	// channel / socket methods
	{"send", 1}: {Symbol: "hml_channel_send", Shape: MethodVoid},
	{"recv", 0}: {Symbol: "hml_channel_recv", Shape: MethodDirect},

	// serialization
	{"serialize", 0}:   {Symbol: "hml_serialize", Shape: MethodDirect},
	{"deserialize", 0}: {Symbol: "hml_deserialize", Shape: MethodDirect},
}

// LookupMethod returns the lowering rule for a method call with the given
// argument count, if the catalog recognizes it.
func LookupMethod(name string, arity int) (Method, bool) {
	m, ok := methodCatalog[methodKey{name, arity}]
	return m, ok
}

// builtin properties read through GetProperty, dispatched on the type tag
type propertyRule struct {
	symbol string
}

var propertyCatalog = map[string]propertyRule{
	"length":      {"hml_value_length"},
	"byte_length": {"hml_value_byte_length"},
	"capacity":    {"hml_buffer_capacity"},
	"fd":          {"hml_handle_fd"},
	"address":     {"hml_socket_address"},
	"port":        {"hml_socket_port"},
	"closed":      {"hml_handle_closed"},
}

func lookupProperty(name string) (string, bool) {
	r, ok := propertyCatalog[name]
	return r.symbol, ok
}
