package runtime

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
)

// Builtin is a native function exposed to sable programs. Arity is the
// exact argument count, or -1 for variadic builtins. The callback receives
// the evaluated arguments and must not mutate arguments it does not own;
// a non-nil Exception return is raised in the calling program.
type Builtin struct {
	Name  string
	Arity int
	Call  func(args []*Object) (*Object, *Exception)
}

var builtinRegistry map[string]*Builtin

// stdout is where print/println write. Swappable so tests can capture
// program output.
var stdout io.Writer = os.Stdout

// SetOutput redirects print/println output and returns the previous writer.
func SetOutput(w io.Writer) io.Writer {
	prev := stdout
	stdout = w
	return prev
}

// initBuiltins populates the process-wide builtin registry. Idempotent.
func initBuiltins() {
	if builtinRegistry != nil {
		return
	}
	builtinRegistry = map[string]*Builtin{}
	for _, builtin := range []*Builtin{
		{Name: "print", Arity: -1, Call: builtinPrint},
		{Name: "println", Arity: -1, Call: builtinPrintln},
		{Name: "Str", Arity: -1, Call: builtinStr},
		{Name: "Typeof", Arity: 1, Call: builtinTypeof},
		{Name: "input", Arity: 1, Call: builtinInput},
		{Name: "Number", Arity: 1, Call: builtinNumber},
		{Name: "len", Arity: 1, Call: builtinLen},
	} {
		builtinRegistry[builtin.Name] = builtin
	}
}

// IsBuiltin reports whether the identifier names a builtin function.
func IsBuiltin(identifier string) bool {
	initBuiltins()
	_, ok := builtinRegistry[identifier]
	return ok
}

// IsBuiltinIdentifier reports whether the identifier is resolvable without
// any declaration: a builtin function or a builtin exception. The
// free-variable collector and the semantic pass both treat these names as
// always bound.
func IsBuiltinIdentifier(identifier string) bool {
	return IsBuiltin(identifier) || IsBuiltinException(identifier)
}

// GetBuiltin returns the registry entry for a builtin name, or nil.
func GetBuiltin(identifier string) *Builtin {
	initBuiltins()
	return builtinRegistry[identifier]
}

// BuiltinNames returns the names of all registered builtin functions.
func BuiltinNames() []string {
	initBuiltins()
	names := make([]string, 0, len(builtinRegistry))
	for name := range builtinRegistry {
		names = append(names, name)
	}
	return names
}

// builtinPrint writes each argument's rendering followed by a space.
func builtinPrint(args []*Object) (*Object, *Exception) {
	for _, arg := range args {
		fmt.Fprintf(stdout, "%s ", arg.ToString())
	}
	return Undefined(), nil
}

// builtinPrintln is print plus a trailing newline.
func builtinPrintln(args []*Object) (*Object, *Exception) {
	for _, arg := range args {
		fmt.Fprintf(stdout, "%s ", arg.ToString())
	}
	fmt.Fprintln(stdout)
	return Undefined(), nil
}

// builtinStr concatenates the renderings of all its arguments into a single
// string.
func builtinStr(args []*Object) (*Object, *Exception) {
	var builder strings.Builder
	for _, arg := range args {
		builder.WriteString(arg.ToString())
	}
	return NewString(builder.String()), nil
}

// builtinTypeof returns the variant name of its argument.
func builtinTypeof(args []*Object) (*Object, *Exception) {
	return NewString(args[0].Type.String()), nil
}

// builtinInput prompts with its argument's rendering and returns the line
// read from the terminal, or Null at end of input.
func builtinInput(args []*Object) (*Object, *Exception) {
	line, err := readline.Line(args[0].ToString())
	if err != nil {
		return Null(), nil
	}
	return NewString(line), nil
}

// builtinNumber converts a value to a number: numbers pass through, strings
// are parsed; anything unparsable or of another type yields Null.
func builtinNumber(args []*Object) (*Object, *Exception) {
	arg := args[0]
	switch arg.Type {
	case NumberType:
		return NewNumber(arg.Number), nil
	case StringType:
		n, err := strconv.ParseFloat(strings.TrimSpace(arg.Str), 64)
		if err != nil {
			return Null(), nil
		}
		return NewNumber(n), nil
	default:
		return Null(), nil
	}
}

// builtinLen returns the length of a string, list, map or set.
func builtinLen(args []*Object) (*Object, *Exception) {
	arg := args[0]
	switch arg.Type {
	case StringType:
		return NewNumber(float64(len(arg.Str))), nil
	case ListType:
		return NewNumber(float64(arg.List.Length())), nil
	case MapType:
		return NewNumber(float64(arg.Map.Size())), nil
	case SetType:
		return NewNumber(float64(arg.Set.Size())), nil
	default:
		return nil, &Exception{Name: ExcNonIndexibleObject, Message: fmt.Sprintf("len expects a string or collection, got %s", arg.Type)}
	}
}
