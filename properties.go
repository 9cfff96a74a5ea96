package mediagraph

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// ValueType identifies the stored type of a property value.
type ValueType int

const (
	ValueString ValueType = iota // UTF-8 string
	ValueInt                     // 64-bit signed integer
	ValueDouble                  // 64-bit float
)

func (t ValueType) String() string {
	switch t {
	case ValueString:
		return "string"
	case ValueInt:
		return "int"
	case ValueDouble:
		return "double"
	default:
		return "unknown"
	}
}

// Value is a typed property value.
type Value struct {
	Type   ValueType
	String string
	Int    int64
	Double float64
}

// Text formats the value as a string regardless of its stored type.
func (v Value) Text() string {
	switch v.Type {
	case ValueInt:
		return strconv.FormatInt(v.Int, 10)
	case ValueDouble:
		return strconv.FormatFloat(v.Double, 'g', -1, 64)
	default:
		return v.String
	}
}

// AsInt coerces the value to an int. Unparseable strings yield 0.
func (v Value) AsInt() int {
	switch v.Type {
	case ValueInt:
		return int(v.Int)
	case ValueDouble:
		return int(v.Double)
	default:
		return parseInt(v.String)
	}
}

// AsDouble coerces the value to a float64. Unparseable strings yield 0.
func (v Value) AsDouble() float64 {
	switch v.Type {
	case ValueInt:
		return float64(v.Int)
	case ValueDouble:
		return v.Double
	default:
		return parseDouble(v.String)
	}
}

func parseInt(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 0, 64); err == nil {
		return int(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return int(f)
	}
	return 0
}

func parseDouble(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if n, err := strconv.ParseInt(s, 0, 64); err == nil {
		return float64(n)
	}
	return 0
}

// Properties is a string-keyed store of typed values attached to every
// service, frame and profile-file loader. Setting a key overwrites any
// previous value. Missing keys read as absent, never as an error, except
// through Value.
//
// Properties is safe for concurrent use so a consumer's worker and its
// owner may both touch it.
type Properties struct {
	mu     sync.RWMutex
	values map[string]Value
}

// NewProperties creates an empty property store.
func NewProperties() *Properties {
	return &Properties{values: make(map[string]Value)}
}

func (p *Properties) put(name string, v Value) error {
	if name == "" {
		return ErrInvalidName
	}
	p.mu.Lock()
	if p.values == nil {
		p.values = make(map[string]Value)
	}
	p.values[name] = v
	p.mu.Unlock()
	return nil
}

// Set stores a string value.
func (p *Properties) Set(name, value string) error {
	return p.put(name, Value{Type: ValueString, String: value})
}

// SetInt stores an integer value.
func (p *Properties) SetInt(name string, value int) error {
	return p.put(name, Value{Type: ValueInt, Int: int64(value)})
}

// SetDouble stores a floating point value.
func (p *Properties) SetDouble(name string, value float64) error {
	return p.put(name, Value{Type: ValueDouble, Double: value})
}

// SetValue stores an already typed value.
func (p *Properties) SetValue(name string, v Value) error {
	return p.put(name, v)
}

// Value returns the typed value for name or ErrPropertyNotFound.
func (p *Properties) Value(name string) (Value, error) {
	p.mu.RLock()
	v, ok := p.values[name]
	p.mu.RUnlock()
	if !ok {
		return Value{}, fmt.Errorf("%w: %q", ErrPropertyNotFound, name)
	}
	return v, nil
}

// Get returns the value for name formatted as a string. The boolean is false
// when the key is absent.
func (p *Properties) Get(name string) (string, bool) {
	p.mu.RLock()
	v, ok := p.values[name]
	p.mu.RUnlock()
	if !ok {
		return "", false
	}
	return v.Text(), true
}

// GetString returns the value for name, or def when absent.
func (p *Properties) GetString(name, def string) string {
	if s, ok := p.Get(name); ok {
		return s
	}
	return def
}

// GetInt returns the value for name coerced to an int, or 0.
func (p *Properties) GetInt(name string) int {
	p.mu.RLock()
	v, ok := p.values[name]
	p.mu.RUnlock()
	if !ok {
		return 0
	}
	return v.AsInt()
}

// GetDouble returns the value for name coerced to a float64, or 0.
func (p *Properties) GetDouble(name string) float64 {
	p.mu.RLock()
	v, ok := p.values[name]
	p.mu.RUnlock()
	if !ok {
		return 0
	}
	return v.AsDouble()
}

// GetBool treats any non-zero integer value, "true" or "yes" as true.
func (p *Properties) GetBool(name string) bool {
	s, ok := p.Get(name)
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "on":
		return true
	}
	return p.GetInt(name) != 0
}

// IntOr returns GetInt(name) when name is set, otherwise def.
func (p *Properties) IntOr(name string, def int) int {
	if !p.Has(name) {
		return def
	}
	return p.GetInt(name)
}

// DoubleOr returns GetDouble(name) when name is set, otherwise def.
func (p *Properties) DoubleOr(name string, def float64) float64 {
	if !p.Has(name) {
		return def
	}
	return p.GetDouble(name)
}

// Has reports whether name is set.
func (p *Properties) Has(name string) bool {
	p.mu.RLock()
	_, ok := p.values[name]
	p.mu.RUnlock()
	return ok
}

// Delete removes name. Deleting a missing key is a no-op.
func (p *Properties) Delete(name string) {
	p.mu.Lock()
	delete(p.values, name)
	p.mu.Unlock()
}

// Count returns the number of stored keys.
func (p *Properties) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.values)
}

// Names returns all keys in lexical order.
func (p *Properties) Names() []string {
	p.mu.RLock()
	names := make([]string, 0, len(p.values))
	for name := range p.values {
		names = append(names, name)
	}
	p.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Inherit copies every value from other, overwriting existing keys.
func (p *Properties) Inherit(other *Properties) {
	if other == nil || other == p {
		return
	}
	other.mu.RLock()
	snapshot := make(map[string]Value, len(other.values))
	for k, v := range other.values {
		snapshot[k] = v
	}
	other.mu.RUnlock()

	p.mu.Lock()
	if p.values == nil {
		p.values = make(map[string]Value, len(snapshot))
	}
	for k, v := range snapshot {
		p.values[k] = v
	}
	p.mu.Unlock()
}

// Parse sets a property from a "name=value" assignment. Values keep their
// string form and are coerced on read.
func (p *Properties) Parse(assignment string) error {
	name, value, ok := strings.Cut(assignment, "=")
	if !ok {
		return fmt.Errorf("%w: missing '=' in %q", ErrInvalidName, assignment)
	}
	return p.Set(strings.TrimSpace(name), strings.TrimSpace(value))
}
