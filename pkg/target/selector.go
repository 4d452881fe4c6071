package target

import "fmt"

// SelectorKind discriminates the ways a session can name its target.
type SelectorKind uint8

const (
	// SelectorUnspecified looks the target up in the registry by name.
	SelectorUnspecified SelectorKind = iota
	// SelectorSpecified uses a caller-supplied descriptor as-is.
	SelectorSpecified
	// SelectorAuto autodetects the chip identity from the live hardware.
	SelectorAuto
)

// Selector is a closed tagged union consumed exactly once during session
// construction. Use one of the constructors below; the zero value selects
// by empty name and will fail resolution.
type Selector struct {
	kind   SelectorKind
	name   string
	target *Target
}

// SelectByName resolves the target from the registry by name.
func SelectByName(name string) Selector {
	return Selector{kind: SelectorUnspecified, name: name}
}

// SelectTarget uses the supplied descriptor without consulting the registry.
func SelectTarget(t *Target) Selector {
	return Selector{kind: SelectorSpecified, target: t}
}

// SelectAuto autodetects the chip from identification registers.
func SelectAuto() Selector {
	return Selector{kind: SelectorAuto}
}

// Kind returns the selector variant.
func (s Selector) Kind() SelectorKind { return s.kind }

// Name returns the lookup name for SelectorUnspecified selectors.
func (s Selector) Name() string { return s.name }

// Target returns the descriptor for SelectorSpecified selectors.
func (s Selector) Target() *Target { return s.target }

func (s Selector) String() string {
	switch s.kind {
	case SelectorUnspecified:
		return fmt.Sprintf("name(%s)", s.name)
	case SelectorSpecified:
		return fmt.Sprintf("specified(%s)", s.target.Name)
	case SelectorAuto:
		return "auto"
	default:
		return "invalid"
	}
}
