// Package runtime contains the value model the virtual machine executes
// against: tagged objects with shared mutable interiors, the list/map/set
// collections, function records bound to closure slots, exceptions, and the
// builtin and attribute-method registries.
package runtime

import (
	"fmt"
	"strconv"
	"strings"
)

// Type tags an Object with its runtime variant. The declaration order is
// the total order used when comparing values of different variants, which
// keeps sorting stable across mixed collections.
type Type int

const (
	UndefinedType Type = iota
	NullType
	NumberType
	StringType
	ListType
	SetType
	MapType
	ClassType
	ExceptionType
	FunctionType
)

func (t Type) String() string {
	switch t {
	case UndefinedType:
		return "Undefined"
	case NullType:
		return "Null"
	case NumberType:
		return "Number"
	case StringType:
		return "String"
	case FunctionType:
		return "Function"
	case ListType:
		return "List"
	case MapType:
		return "Map"
	case SetType:
		return "Set"
	case ClassType:
		return "Class"
	case ExceptionType:
		return "Exception"
	default:
		return "Unknown"
	}
}

// Object is a single runtime value. Undefined, Null and Number are
// primitives; every other variant is a reference type whose interior
// (Str excepted, strings being immutable) is shared by all aliases of the
// object. Variables, collection slots and closure slots all hold *Object,
// so mutating an object's payload in place is observed through every alias.
// Only the payload field matching Type is meaningful.
type Object struct {
	Type   Type
	Number float64
	Str    string
	Func   *Function
	List   *List
	Map    *Map
	Set    *Set
	Class  *Class
	Exc    *Exception
}

// Class is a class instance: the (immutable) class name plus the attribute
// map materialised from the constructor frame's lookup table.
type Class struct {
	Name  string
	Attrs *Map
}

// Exception is an exception value: a name and an optional message.
type Exception struct {
	Name    string
	Message string
}

func Undefined() *Object          { return &Object{Type: UndefinedType} }
func Null() *Object               { return &Object{Type: NullType} }
func NewNumber(n float64) *Object { return &Object{Type: NumberType, Number: n} }
func NewString(s string) *Object  { return &Object{Type: StringType, Str: s} }

func NewList(list *List) *Object   { return &Object{Type: ListType, List: list} }
func NewMap(m *Map) *Object        { return &Object{Type: MapType, Map: m} }
func NewSet(s *Set) *Object        { return &Object{Type: SetType, Set: s} }
func NewFunction(f *Function) *Object {
	return &Object{Type: FunctionType, Func: f}
}
func NewClass(c *Class) *Object { return &Object{Type: ClassType, Class: c} }
func NewException(name, message string) *Object {
	return &Object{Type: ExceptionType, Exc: &Exception{Name: name, Message: message}}
}

// Mutate overwrites the target's payload with the source's, so that every
// alias of target observes the new contents. Reference types rebind the
// interior pointer; primitives and strings copy the value itself.
func (obj *Object) Mutate(src *Object) {
	obj.Type = src.Type
	obj.Number = src.Number
	obj.Str = src.Str
	obj.Func = src.Func
	obj.List = src.List
	obj.Map = src.Map
	obj.Set = src.Set
	obj.Class = src.Class
	obj.Exc = src.Exc
}

// Snapshot returns the object to store when binding must not alias an
// existing primitive: closure slots at CREATE_FUNCTION time, and CREATE_VAR
// on a non-disposable value. Primitives are copied so the new binding
// observes the value at capture time; reference types keep the shared
// object.
func (obj *Object) Snapshot() *Object {
	switch obj.Type {
	case UndefinedType, NullType, NumberType:
		fresh := &Object{}
		fresh.Mutate(obj)
		return fresh
	default:
		return obj
	}
}

// IsPrimitive reports whether the object is one of the primitive variants.
func (obj *Object) IsPrimitive() bool {
	return obj.Type == UndefinedType || obj.Type == NullType || obj.Type == NumberType
}

// Truthy is the two-valued projection used by conditional jumps: false for
// Undefined, Null, 0 and empty string/list/map/set, true otherwise.
func (obj *Object) Truthy() bool {
	switch obj.Type {
	case UndefinedType, NullType:
		return false
	case NumberType:
		return obj.Number != 0
	case StringType:
		return len(obj.Str) != 0
	case ListType:
		return obj.List.Length() != 0
	case MapType:
		return obj.Map.Size() != 0
	case SetType:
		return obj.Set.Size() != 0
	default:
		return true
	}
}

// Equals implements value equality: deep for primitives and strings, by
// underlying record for functions, by reference identity for collections
// and classes, by name for exceptions.
func (obj *Object) Equals(other *Object) bool {
	if obj.Type != other.Type {
		return false
	}
	switch obj.Type {
	case UndefinedType, NullType:
		return true
	case NumberType:
		return obj.Number == other.Number
	case StringType:
		return obj.Str == other.Str
	case FunctionType:
		return obj.Func.Same(other.Func)
	case ListType:
		return obj.List == other.List
	case MapType:
		return obj.Map == other.Map
	case SetType:
		return obj.Set == other.Set
	case ClassType:
		return obj.Class == other.Class
	case ExceptionType:
		return obj.Exc.Name == other.Exc.Name
	default:
		return false
	}
}

// Compare orders two objects. Different variants order by variant rank;
// numbers and strings order by value; every other same-variant pair
// compares equal, which is enough to keep sorting stable.
func (obj *Object) Compare(other *Object) int {
	if obj.Type != other.Type {
		if obj.Type < other.Type {
			return -1
		}
		return 1
	}
	switch obj.Type {
	case NumberType:
		switch {
		case obj.Number < other.Number:
			return -1
		case obj.Number > other.Number:
			return 1
		}
		return 0
	case StringType:
		return strings.Compare(obj.Str, other.Str)
	default:
		return 0
	}
}

// Hash returns a bucket hash for the object. The second return is false for
// unhashable variants (list, map, set, class), which callers surface as an
// UnhashableType exception.
func (obj *Object) Hash() (uint64, bool) {
	switch obj.Type {
	case UndefinedType:
		return 1, true
	case NullType:
		return 2, true
	case NumberType:
		// hash the decimal rendering so 1 and 1.0 land in the same bucket
		return djb2(strconv.FormatFloat(obj.Number, 'g', -1, 64)), true
	case StringType:
		return djb2(obj.Str), true
	case FunctionType:
		return obj.Func.id, true
	case ExceptionType:
		return djb2(obj.Exc.Name), true
	default:
		return 0, false
	}
}

func djb2(s string) uint64 {
	var hash uint64 = 5381
	for _, c := range s {
		hash = hash*33 + uint64(c)
	}
	return hash
}

// FormatNumber renders a number the way print does: shortest decimal
// representation, no trailing zeros.
func FormatNumber(n float64) string {
	return strconv.FormatFloat(n, 'g', -1, 64)
}

// ToString renders the object for print and Str.
func (obj *Object) ToString() string {
	switch obj.Type {
	case UndefinedType:
		return "undefined"
	case NullType:
		return "null"
	case NumberType:
		return FormatNumber(obj.Number)
	case StringType:
		return obj.Str
	case FunctionType:
		return obj.Func.ToString()
	case ListType:
		parts := make([]string, 0, obj.List.Length())
		for _, e := range obj.List.Elements {
			parts = append(parts, e.ToString())
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case MapType:
		parts := make([]string, 0, obj.Map.Size())
		for _, entry := range obj.Map.Entries() {
			parts = append(parts, entry.Key.ToString()+": "+entry.Value.ToString())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case SetType:
		parts := make([]string, 0, obj.Set.Size())
		for _, e := range obj.Set.Elements() {
			parts = append(parts, e.ToString())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case ClassType:
		return fmt.Sprintf("<%s object>", obj.Class.Name)
	case ExceptionType:
		if obj.Exc.Message != "" {
			return fmt.Sprintf("%s: %s", obj.Exc.Name, obj.Exc.Message)
		}
		return obj.Exc.Name
	default:
		return "unknown"
	}
}
