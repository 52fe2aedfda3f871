package vm

import (
	mapset "github.com/deckarep/golang-set"

	"sable/runtime"
)

// initialGCThreshold is the live-object count that triggers the first
// collection; the threshold is multiplied by growthFactor after each pass.
const (
	initialGCThreshold = 2
	gcGrowthFactor     = 10
)

// GC tracks every heap-allocated runtime object the machine has published
// and reclaims the unreachable ones with a mark-and-sweep pass. Roots are
// the call frames' lookup tables, the operand stack and the raised
// exception slot; marking follows collection elements, class attributes and
// closure slots, so cyclic structures are collected during execution.
type GC struct {
	registry  mapset.Set
	threshold int

	// Collections counts completed sweep passes; Reclaimed counts objects
	// dropped from the registry across all of them.
	Collections int
	Reclaimed   int
}

// NewGC returns a collector with an empty registry and the initial
// adaptive threshold.
func NewGC() *GC {
	return &GC{
		registry:  mapset.NewThreadUnsafeSet(),
		threshold: initialGCThreshold,
	}
}

// Register adds a heap object to the registry. Registration happens before
// the object's first external reference is published.
func (gc *GC) Register(obj *runtime.Object) {
	gc.registry.Add(obj)
}

// Size returns the number of live registered objects.
func (gc *GC) Size() int {
	return gc.registry.Cardinality()
}

// Tick runs after each executed instruction that falls through to the next
// one; the VM skips it after jumps, user-function calls, returns and
// raises. When the live-object count
// reaches the adaptive threshold a collection pass runs and the threshold
// grows. Roots are requested lazily so ticks below the threshold cost one
// set lookup.
func (gc *GC) Tick(roots func() []*runtime.Object) {
	if gc.registry.Cardinality() < gc.threshold {
		return
	}
	gc.Collect(roots())
	gc.threshold *= gcGrowthFactor
}

// Collect performs one mark-and-sweep pass and returns the number of
// objects reclaimed.
func (gc *GC) Collect(roots []*runtime.Object) int {
	marked := mapset.NewThreadUnsafeSet()
	for _, root := range roots {
		mark(root, marked)
	}

	var dead []interface{}
	gc.registry.Each(func(entry interface{}) bool {
		if !marked.Contains(entry) {
			dead = append(dead, entry)
		}
		return false
	})
	for _, entry := range dead {
		gc.registry.Remove(entry)
	}

	gc.Collections++
	gc.Reclaimed += len(dead)
	return len(dead)
}

// Cleanup drains the registry at program exit and returns how many objects
// it still held.
func (gc *GC) Cleanup() int {
	remaining := gc.registry.Cardinality()
	gc.Reclaimed += remaining
	gc.registry.Clear()
	return remaining
}

// mark traverses the object graph from obj, following every interior
// reference: list elements, map keys and values, set elements, class
// attributes, closure slots and attribute-method targets.
func mark(obj *runtime.Object, marked mapset.Set) {
	if obj == nil || !marked.Add(obj) {
		return
	}
	switch obj.Type {
	case runtime.ListType:
		for _, element := range obj.List.Elements {
			mark(element, marked)
		}
	case runtime.MapType:
		for _, entry := range obj.Map.Entries() {
			mark(entry.Key, marked)
			mark(entry.Value, marked)
		}
	case runtime.SetType:
		for _, element := range obj.Set.Elements() {
			mark(element, marked)
		}
	case runtime.ClassType:
		for _, entry := range obj.Class.Attrs.Entries() {
			mark(entry.Key, marked)
			mark(entry.Value, marked)
		}
	case runtime.FunctionType:
		for _, slot := range obj.Func.Closures {
			mark(slot, marked)
		}
		mark(obj.Func.Target, marked)
	}
}
