package runtime

import (
	"fmt"
	"strings"
)

// AttrBuiltin is a native attribute of a builtin-typed value: either a
// method (IsFunc true; LOAD_ATTRIBUTE wraps it into a function bound to the
// target) or a getter (IsFunc false; invoked immediately and its result
// pushed). Arity follows the Builtin convention, -1 meaning variadic.
type AttrBuiltin struct {
	Name   string
	Target Type
	Arity  int
	IsFunc bool
	Call   func(target *Object, args []*Object) (*Object, *Exception)
	Get    func(target *Object) *Object
}

type attrKey struct {
	target Type
	name   string
}

var attrRegistry map[attrKey]*AttrBuiltin

// initAttrs populates the process-wide (type, attribute-name) registry.
// Idempotent.
func initAttrs() {
	if attrRegistry != nil {
		return
	}
	attrRegistry = map[attrKey]*AttrBuiltin{}
	registerListAttrs()
	registerMapAttrs()
	registerSetAttrs()
	registerStringAttrs()
}

func registerAttr(attr *AttrBuiltin) {
	attrRegistry[attrKey{target: attr.Target, name: attr.Name}] = attr
}

// GetAttr resolves an attribute of a builtin-typed value. Methods come back
// wrapped as a function value bound to the target; getters are invoked
// immediately. Returns nil when the type has no such attribute.
func GetAttr(target *Object, name string) *Object {
	initAttrs()
	attr, ok := attrRegistry[attrKey{target: target.Type, name: name}]
	if !ok {
		return nil
	}
	if attr.IsFunc {
		return NewFunction(NewAttrFunction(attr, target))
	}
	return attr.Get(target)
}

func registerListAttrs() {
	registerAttr(&AttrBuiltin{
		Name: "append", Target: ListType, Arity: 1, IsFunc: true,
		Call: func(target *Object, args []*Object) (*Object, *Exception) {
			target.List.Append(args[0])
			return target, nil
		},
	})
	registerAttr(&AttrBuiltin{
		Name: "pop", Target: ListType, Arity: 0, IsFunc: true,
		Call: func(target *Object, args []*Object) (*Object, *Exception) {
			last, ok := target.List.PopLast()
			if !ok {
				return nil, &Exception{Name: ExcIndexOutOfBounds, Message: "pop on empty list"}
			}
			return last, nil
		},
	})
	registerAttr(&AttrBuiltin{
		Name: "popFirst", Target: ListType, Arity: 0, IsFunc: true,
		Call: func(target *Object, args []*Object) (*Object, *Exception) {
			first, ok := target.List.PopFirst()
			if !ok {
				return nil, &Exception{Name: ExcIndexOutOfBounds, Message: "popFirst on empty list"}
			}
			return first, nil
		},
	})
	registerAttr(&AttrBuiltin{
		Name: "contains", Target: ListType, Arity: 1, IsFunc: true,
		Call: func(target *Object, args []*Object) (*Object, *Exception) {
			return boolNumber(target.List.Contains(args[0])), nil
		},
	})
	registerAttr(&AttrBuiltin{
		Name: "clear", Target: ListType, Arity: 0, IsFunc: true,
		Call: func(target *Object, args []*Object) (*Object, *Exception) {
			target.List.Clear()
			return target, nil
		},
	})
}

func registerMapAttrs() {
	registerAttr(&AttrBuiltin{
		Name: "insert", Target: MapType, Arity: 2, IsFunc: true,
		Call: func(target *Object, args []*Object) (*Object, *Exception) {
			if !target.Map.Insert(args[0], args[1]) {
				return nil, unhashable(args[0])
			}
			return target, nil
		},
	})
	registerAttr(&AttrBuiltin{
		Name: "remove", Target: MapType, Arity: 1, IsFunc: true,
		Call: func(target *Object, args []*Object) (*Object, *Exception) {
			value, ok := target.Map.Remove(args[0])
			if !ok {
				return nil, &Exception{Name: ExcKeyError, Message: fmt.Sprintf("no entry for key %s", args[0].ToString())}
			}
			return value, nil
		},
	})
	registerAttr(&AttrBuiltin{
		Name: "containsKey", Target: MapType, Arity: 1, IsFunc: true,
		Call: func(target *Object, args []*Object) (*Object, *Exception) {
			return boolNumber(target.Map.ContainsKey(args[0])), nil
		},
	})
	registerAttr(&AttrBuiltin{
		Name: "keys", Target: MapType, Arity: 0, IsFunc: true,
		Call: func(target *Object, args []*Object) (*Object, *Exception) {
			keys := NewListOf()
			for _, entry := range target.Map.Entries() {
				keys.Append(entry.Key)
			}
			return NewList(keys), nil
		},
	})
	registerAttr(&AttrBuiltin{
		Name: "values", Target: MapType, Arity: 0, IsFunc: true,
		Call: func(target *Object, args []*Object) (*Object, *Exception) {
			values := NewListOf()
			for _, entry := range target.Map.Entries() {
				values.Append(entry.Value)
			}
			return NewList(values), nil
		},
	})
	registerAttr(&AttrBuiltin{
		Name: "clear", Target: MapType, Arity: 0, IsFunc: true,
		Call: func(target *Object, args []*Object) (*Object, *Exception) {
			target.Map.Clear()
			return target, nil
		},
	})
}

func registerSetAttrs() {
	registerAttr(&AttrBuiltin{
		Name: "add", Target: SetType, Arity: 1, IsFunc: true,
		Call: func(target *Object, args []*Object) (*Object, *Exception) {
			if !target.Set.Add(args[0]) {
				return nil, unhashable(args[0])
			}
			return target, nil
		},
	})
	registerAttr(&AttrBuiltin{
		Name: "remove", Target: SetType, Arity: 1, IsFunc: true,
		Call: func(target *Object, args []*Object) (*Object, *Exception) {
			if !target.Set.Remove(args[0]) {
				return nil, &Exception{Name: ExcKeyError, Message: fmt.Sprintf("no element %s", args[0].ToString())}
			}
			return target, nil
		},
	})
	registerAttr(&AttrBuiltin{
		Name: "contains", Target: SetType, Arity: 1, IsFunc: true,
		Call: func(target *Object, args []*Object) (*Object, *Exception) {
			return boolNumber(target.Set.Contains(args[0])), nil
		},
	})
	registerAttr(&AttrBuiltin{
		Name: "clear", Target: SetType, Arity: 0, IsFunc: true,
		Call: func(target *Object, args []*Object) (*Object, *Exception) {
			target.Set.Clear()
			return target, nil
		},
	})
}

func registerStringAttrs() {
	registerAttr(&AttrBuiltin{
		Name: "upper", Target: StringType, Arity: 0, IsFunc: true,
		Call: func(target *Object, args []*Object) (*Object, *Exception) {
			return NewString(strings.ToUpper(target.Str)), nil
		},
	})
	registerAttr(&AttrBuiltin{
		Name: "lower", Target: StringType, Arity: 0, IsFunc: true,
		Call: func(target *Object, args []*Object) (*Object, *Exception) {
			return NewString(strings.ToLower(target.Str)), nil
		},
	})
	registerAttr(&AttrBuiltin{
		Name: "split", Target: StringType, Arity: 1, IsFunc: true,
		Call: func(target *Object, args []*Object) (*Object, *Exception) {
			if args[0].Type != StringType {
				return nil, &Exception{Name: ExcInvalidIndexType, Message: "split expects a string separator"}
			}
			parts := NewListOf()
			for _, part := range strings.Split(target.Str, args[0].Str) {
				parts.Append(NewString(part))
			}
			return NewList(parts), nil
		},
	})
}

func boolNumber(b bool) *Object {
	if b {
		return NewNumber(1)
	}
	return NewNumber(0)
}

func unhashable(obj *Object) *Exception {
	return &Exception{Name: ExcUnhashableType, Message: fmt.Sprintf("%s is not hashable", obj.Type)}
}
