package gate

import (
	"strings"

	"github.com/wippyai/callgate/state"
)

// Tag is the expected type of one argument. Values equal the matching
// state.Type so a check is a plain comparison.
type Tag int8

const (
	Any           = Tag(state.TypeNone)
	Nil           = Tag(state.TypeNil)
	Boolean       = Tag(state.TypeBoolean)
	LightUserdata = Tag(state.TypeLightUserdata)
	Number        = Tag(state.TypeNumber)
	String        = Tag(state.TypeString)
	Table         = Tag(state.TypeTable)
	Function      = Tag(state.TypeFunction)
	Userdata      = Tag(state.TypeUserdata)
)

func (t Tag) String() string {
	if t == Any {
		return "any"
	}
	return state.Type(t).String()
}

// Matches reports whether a value of type typ satisfies the tag.
func (t Tag) Matches(typ state.Type) bool {
	return t == Any || Tag(typ) == t
}

// Signature is the ordered list of argument tags of a native, or the
// unchecked sentinel meaning no type checking.
type Signature struct {
	tags    []Tag
	checked bool
}

// Sig builds a checked signature. Sig() declares a native taking no
// checked arguments.
func Sig(tags ...Tag) Signature {
	cp := make([]Tag, len(tags))
	copy(cp, tags)
	return Signature{tags: cp, checked: true}
}

// Unchecked returns the sentinel signature.
func Unchecked() Signature {
	return Signature{}
}

// Count returns the number of tags, or -1 for an unchecked signature.
func (s Signature) Count() int {
	if !s.checked {
		return -1
	}
	return len(s.tags)
}

// Checked reports whether arguments are validated.
func (s Signature) Checked() bool {
	return s.checked
}

func (s Signature) clone() Signature {
	if !s.checked {
		return Signature{}
	}
	return Sig(s.tags...)
}

// Tags returns a copy of the tags.
func (s Signature) Tags() []Tag {
	cp := make([]Tag, len(s.tags))
	copy(cp, s.tags)
	return cp
}

func (s Signature) String() string {
	if !s.checked {
		return "(unchecked)"
	}
	parts := make([]string, len(s.tags))
	for i, t := range s.tags {
		parts[i] = t.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
