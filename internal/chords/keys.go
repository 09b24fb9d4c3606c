// package chords implements chord root transposition over free-form chord sheets
package chords

import (
	"fmt"
	"strings"
)

// Key is one of the twelve canonical pitch names, ordered around the circle of semitones starting at C.
type Key int

const (
	C Key = iota
	CSharp
	D
	DSharp
	E
	F
	FSharp
	G
	GSharp
	A
	ASharp
	B
)

// Semitones is the size of the key table.
const Semitones = 12

var keyNames = [Semitones]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// user input only; chord tokens in text are never normalized
var flatAliases = map[string]Key{
	"Db": CSharp,
	"Eb": DSharp,
	"Gb": FSharp,
	"Ab": GSharp,
	"Bb": ASharp,
}

// Keys returns the twelve keys in table order.
func Keys() []Key {
	keys := make([]Key, Semitones)
	for i := range keys {
		keys[i] = Key(i)
	}
	return keys
}

// Valid reports whether k is inside the key table.
func (k Key) Valid() bool {
	return k >= C && k <= B
}

func (k Key) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Key(%d)", int(k))
	}
	return keyNames[k]
}

// Shift moves k by n semitones, wrapping around the table in both directions.
func (k Key) Shift(n int) Key {
	return Key(mod(int(k)+n, Semitones))
}

// MarshalText implements [encoding.TextMarshaler].
func (k Key) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKey, int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler] using [ParseKey].
func (k *Key) UnmarshalText(text []byte) error {
	parsed, err := ParseKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ErrUnknownKey is returned when a key name is not in the table.
var ErrUnknownKey = fmt.Errorf("unknown key")

// ParseKey resolves a canonical key name.
//
// Flat spellings (Db, Eb, Gb, Ab, Bb) are accepted and mapped to their sharp equivalents.
func ParseKey(name string) (Key, error) {
	name = strings.TrimSpace(name)
	if k, ok := lookupRoot(name); ok {
		return k, nil
	}
	if k, ok := flatAliases[name]; ok {
		return k, nil
	}
	return C, fmt.Errorf("%w: %q", ErrUnknownKey, name)
}

// MustParseKey is like [ParseKey] but panics on unknown names.
func MustParseKey(name string) Key {
	k, err := ParseKey(name)
	if err != nil {
		panic(err)
	}
	return k
}

// Interval returns the number of semitones to move up from source to reach target, in [0,12).
func Interval(source, target Key) int {
	return mod(int(target)-int(source), Semitones)
}

func lookupRoot(root string) (Key, bool) {
	for i, name := range keyNames {
		if name == root {
			return Key(i), true
		}
	}
	return C, false
}

func mod(n, m int) int {
	return ((n % m) + m) % m
}
