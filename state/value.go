package state

import (
	"fmt"
	"strconv"
)

// Type is the runtime type of a value.
type Type int8

const (
	TypeNone Type = iota - 1
	TypeNil
	TypeBoolean
	TypeLightUserdata
	TypeNumber
	TypeString
	TypeTable
	TypeFunction
	TypeUserdata
	TypeThread
)

var typeNames = [...]string{
	TypeNil:           "nil",
	TypeBoolean:       "boolean",
	TypeLightUserdata: "userdata",
	TypeNumber:        "number",
	TypeString:        "string",
	TypeTable:         "table",
	TypeFunction:      "function",
	TypeUserdata:      "userdata",
	TypeThread:        "thread",
}

// String returns the name scripts see for the type.
func (t Type) String() string {
	if t == TypeNone {
		return "no value"
	}
	if t < 0 || int(t) >= len(typeNames) {
		return "type(" + strconv.Itoa(int(t)) + ")"
	}
	return typeNames[t]
}

// Value is any value that can live on the stack.
type Value interface {
	Type() Type
}

type nilValue struct{}

func (nilValue) Type() Type { return TypeNil }

// Nil is the nil value.
var Nil Value = nilValue{}

// Bool is a boolean value.
type Bool bool

func (Bool) Type() Type { return TypeBoolean }

// Number is a numeric value.
type Number float64

func (Number) Type() Type { return TypeNumber }

// String is an immutable text value.
type String string

func (String) Type() Type { return TypeString }

// LightUserdata is a bare address with identity semantics. It is not tracked
// by the collector.
type LightUserdata uintptr

func (LightUserdata) Type() Type { return TypeLightUserdata }

// Table is an associative array. Nil keys are rejected, nil values delete.
type Table struct {
	hash map[Value]Value
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{hash: make(map[Value]Value)}
}

func (*Table) Type() Type { return TypeTable }

// Get returns the value stored under k, or Nil.
func (t *Table) Get(k Value) Value {
	if k == nil {
		return Nil
	}
	if v, ok := t.hash[k]; ok {
		return v
	}
	return Nil
}

// Set stores v under k. Setting Nil removes the key.
func (t *Table) Set(k, v Value) bool {
	if k == nil || k.Type() == TypeNil {
		return false
	}
	if v == nil || v.Type() == TypeNil {
		delete(t.hash, k)
		return true
	}
	t.hash[k] = v
	return true
}

// Len returns the number of keys.
func (t *Table) Len() int {
	return len(t.hash)
}

// Each calls fn for every key/value pair until fn returns false.
func (t *Table) Each(fn func(k, v Value) bool) {
	for k, v := range t.hash {
		if !fn(k, v) {
			return
		}
	}
}

// GoFunction is the native calling convention of the runtime: arguments are
// at stack positions 1..Top(), the return value is the number of results left
// on top of the stack.
type GoFunction func(L *State) int

// Function is a callable value with captured upvalues.
type Function struct {
	Fn       GoFunction
	Name     string
	upvalues []Value
}

// NewFunction creates a function value capturing upvalues.
func NewFunction(name string, fn GoFunction, upvalues ...Value) *Function {
	ups := make([]Value, len(upvalues))
	copy(ups, upvalues)
	return &Function{Fn: fn, Name: name, upvalues: ups}
}

func (*Function) Type() Type { return TypeFunction }

// NumUpvalues returns the number of captured values.
func (f *Function) NumUpvalues() int {
	return len(f.upvalues)
}

// Upvalue returns captured value i (1-based), or nil.
func (f *Function) Upvalue(i int) Value {
	if i < 1 || i > len(f.upvalues) {
		return nil
	}
	return f.upvalues[i-1]
}

// Userdata is a block of runtime-owned memory holding a Go value. Its
// lifetime is decided by the collector.
type Userdata struct {
	Value     any
	finalizer func(*Userdata)
	size      int
	slot      int
	finalized bool
}

func (*Userdata) Type() Type { return TypeUserdata }

// Size returns the number of bytes charged to the allocator.
func (u *Userdata) Size() int {
	return u.size
}

// Finalized reports whether the collector has already reclaimed u.
func (u *Userdata) Finalized() bool {
	return u.finalized
}

// TypeOf returns the type of v; a nil Value is TypeNone.
func TypeOf(v Value) Type {
	if v == nil {
		return TypeNone
	}
	return v.Type()
}

// Format renders v the way the runtime prints values.
func Format(v Value) string {
	switch x := v.(type) {
	case nil:
		return "none"
	case nilValue:
		return "nil"
	case Bool:
		return strconv.FormatBool(bool(x))
	case Number:
		return strconv.FormatFloat(float64(x), 'g', 14, 64)
	case String:
		return string(x)
	case LightUserdata:
		return fmt.Sprintf("userdata: %#x", uintptr(x))
	case *Table:
		return fmt.Sprintf("table: %p", x)
	case *Function:
		if x.Name != "" {
			return fmt.Sprintf("function: %s", x.Name)
		}
		return fmt.Sprintf("function: %p", x)
	case *Userdata:
		return fmt.Sprintf("userdata: %p", x)
	case *State:
		return fmt.Sprintf("thread: %p", x)
	default:
		return fmt.Sprintf("%v", v)
	}
}
