package mediagraph

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Parameter types accepted in descriptors.
const (
	ParamString  = "string"
	ParamInteger = "integer"
	ParamFloat   = "float"
	ParamBoolean = "boolean"
)

// Parameter documents one service property.
type Parameter struct {
	Identifier  string   `yaml:"identifier"`
	Type        string   `yaml:"type"`
	Title       string   `yaml:"title,omitempty"`
	Description string   `yaml:"description,omitempty"`
	Default     string   `yaml:"default,omitempty"`
	Minimum     *float64 `yaml:"minimum,omitempty"`
	Maximum     *float64 `yaml:"maximum,omitempty"`
	Values      []string `yaml:"values,omitempty"`
}

// Descriptor is the metadata of a registered service, loaded from a YAML
// service file.
//
//	type: filter
//	identifier: brightness
//	title: Brightness
//	parameters:
//	  - identifier: level
//	    type: float
//	    default: 1.0
//
// Services implemented in Go name their constructor with "builtin" (which
// defaults to the identifier). Services implemented in a shared library name
// it with "library" and "symbol".
type Descriptor struct {
	Type        string      `yaml:"type"`
	Identifier  string      `yaml:"identifier"`
	Title       string      `yaml:"title,omitempty"`
	Description string      `yaml:"description,omitempty"`
	Version     string      `yaml:"version,omitempty"`
	Tags        []string    `yaml:"tags,omitempty"`
	Builtin     string      `yaml:"builtin,omitempty"`
	Library     string      `yaml:"library,omitempty"`
	Symbol      string      `yaml:"symbol,omitempty"`
	Parameters  []Parameter `yaml:"parameters,omitempty"`

	source string
}

// Kind returns the service kind named by Type.
func (d *Descriptor) Kind() (ServiceKind, error) {
	kind, ok := ParseServiceKind(d.Type)
	if !ok || !kind.Registrable() {
		return 0, fmt.Errorf("unknown service type %q", d.Type)
	}
	return kind, nil
}

// Native reports whether the service lives in a shared library.
func (d *Descriptor) Native() bool { return d.Library != "" }

// Source returns the file the descriptor was read from.
func (d *Descriptor) Source() string { return d.source }

// Parameter returns the parameter called name.
func (d *Descriptor) Parameter(name string) (Parameter, bool) {
	for _, p := range d.Parameters {
		if p.Identifier == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// Validate checks the descriptor and returns every problem found.
func (d *Descriptor) Validate() error {
	var errs []error

	if _, err := d.Kind(); err != nil {
		errs = append(errs, err)
	}
	if d.Identifier == "" {
		errs = append(errs, errors.New("identifier is required"))
	} else if strings.ContainsAny(d.Identifier, ": \t") {
		errs = append(errs, fmt.Errorf("identifier %q must not contain ':' or spaces", d.Identifier))
	}
	if d.Native() && d.Symbol == "" {
		errs = append(errs, errors.New("symbol is required with library"))
	}

	seen := make(map[string]bool)
	for i, p := range d.Parameters {
		if p.Identifier == "" {
			errs = append(errs, fmt.Errorf("parameters[%d]: identifier is required", i))
			continue
		}
		if seen[p.Identifier] {
			errs = append(errs, fmt.Errorf("parameters[%d]: duplicate identifier %q", i, p.Identifier))
		}
		seen[p.Identifier] = true
		switch p.Type {
		case ParamString, ParamInteger, ParamFloat, ParamBoolean, "":
		default:
			errs = append(errs, fmt.Errorf("parameter %q: unknown type %q", p.Identifier, p.Type))
		}
		if p.Minimum != nil && p.Maximum != nil && *p.Minimum > *p.Maximum {
			errs = append(errs, fmt.Errorf("parameter %q: minimum exceeds maximum", p.Identifier))
		}
	}

	return errors.Join(errs...)
}

// applyDefaults sets every parameter default that props lacks.
func (d *Descriptor) applyDefaults(props *Properties) {
	for _, p := range d.Parameters {
		if p.Default == "" || props.Has(p.Identifier) {
			continue
		}
		switch p.Type {
		case ParamInteger:
			props.SetInt(p.Identifier, parseInt(p.Default))
		case ParamFloat:
			props.SetDouble(p.Identifier, parseDouble(p.Default))
		default:
			props.Set(p.Identifier, p.Default)
		}
	}
}

// ParseDescriptors decodes every YAML document in r.
func ParseDescriptors(r io.Reader) ([]Descriptor, error) {
	dec := yaml.NewDecoder(r)
	var out []Descriptor
	for {
		var d Descriptor
		err := dec.Decode(&d)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("decode descriptor: %w", err)
		}
		if d.Type == "" && d.Identifier == "" {
			continue // Empty document
		}
		out = append(out, d)
	}
}

// DescriptorProblem records a service file that could not be used.
type DescriptorProblem struct {
	File string
	Err  error
}

func (p DescriptorProblem) Error() string { return p.File + ": " + p.Err.Error() }

// LoadDescriptors reads every *.yml and *.yaml file at the top of fsys. Valid
// descriptors are returned in file order; invalid ones are reported as
// problems.
func LoadDescriptors(fsys fs.FS) ([]Descriptor, []DescriptorProblem, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch path.Ext(e.Name()) {
		case ".yml", ".yaml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var (
		descs    []Descriptor
		problems []DescriptorProblem
	)
	for _, name := range names {
		f, err := fsys.Open(name)
		if err != nil {
			problems = append(problems, DescriptorProblem{name, err})
			continue
		}
		parsed, err := ParseDescriptors(f)
		f.Close()
		if err != nil {
			problems = append(problems, DescriptorProblem{name, err})
		}
		for _, d := range parsed {
			if verr := d.Validate(); verr != nil {
				problems = append(problems, DescriptorProblem{name, fmt.Errorf("%s: %w", d.Identifier, verr)})
				continue
			}
			d.source = name
			descs = append(descs, d)
		}
	}
	return descs, problems, nil
}
