package mediagraph

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestParseDescriptors(t *testing.T) {
	src := `
type: filter
identifier: brightness
tags: [video, colour]
parameters:
  - identifier: level
    type: float
    default: "1.5"
    minimum: 0
    maximum: 4
  - identifier: mode
    values: [fast, slow]
---
---
type: consumer
identifier: "null"
`
	descs, err := ParseDescriptors(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if len(descs) != 2 {
		t.Fatalf("got %d descriptors, want 2", len(descs))
	}
	d := descs[0]
	if kind, err := d.Kind(); err != nil || kind != KindFilter {
		t.Errorf("Kind() = %v, %v", kind, err)
	}
	p, ok := d.Parameter("level")
	if !ok || p.Default != "1.5" || p.Minimum == nil || *p.Maximum != 4 {
		t.Errorf("Parameter(level) = %+v, %v", p, ok)
	}
	if _, ok := d.Parameter("nope"); ok {
		t.Error("Parameter(nope) should not exist")
	}
	if len(d.Tags) != 2 {
		t.Errorf("Tags = %v", d.Tags)
	}

	props := NewProperties()
	props.Set("mode", "slow")
	d.applyDefaults(props)
	if props.GetDouble("level") != 1.5 || props.GetString("mode", "") != "slow" {
		t.Errorf("applyDefaults: level=%v mode=%q", props.GetDouble("level"), props.GetString("mode", ""))
	}
	if _, err := ParseDescriptors(strings.NewReader("type: [")); err == nil {
		t.Error("malformed YAML should fail")
	}
}

func TestDescriptor_Validate(t *testing.T) {
	lo, hi := 5.0, 1.0
	tests := []struct {
		name    string
		desc    Descriptor
		wantErr string
	}{
		{"valid", Descriptor{Type: "producer", Identifier: "color"}, ""},
		{"unknown type", Descriptor{Type: "playlist", Identifier: "x"}, "unknown service type"},
		{"missing id", Descriptor{Type: "filter"}, "identifier is required"},
		{"colon in id", Descriptor{Type: "filter", Identifier: "a:b"}, "must not contain"},
		{"library without symbol", Descriptor{Type: "filter", Identifier: "n", Library: "libn.so"}, "symbol is required"},
		{"duplicate parameter", Descriptor{Type: "filter", Identifier: "d", Parameters: []Parameter{
			{Identifier: "x"}, {Identifier: "x"},
		}}, "duplicate identifier"},
		{"bad parameter type", Descriptor{Type: "filter", Identifier: "d", Parameters: []Parameter{
			{Identifier: "x", Type: "colour"},
		}}, "unknown type"},
		{"inverted range", Descriptor{Type: "filter", Identifier: "d", Parameters: []Parameter{
			{Identifier: "x", Minimum: &lo, Maximum: &hi},
		}}, "minimum exceeds maximum"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.desc.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDescriptors(t *testing.T) {
	fsys := fstest.MapFS{
		"b.yaml":     {Data: []byte("type: transition\nidentifier: mix\n")},
		"a.yml":      {Data: []byte("type: producer\nidentifier: color\n---\ntype: producer\n")},
		"readme.md":  {Data: []byte("# services")},
		"sub/c.yml":  {Data: []byte("type: filter\nidentifier: hidden\n")},
		"broken.yml": {Data: []byte("identifier: [")},
	}
	descs, problems, err := LoadDescriptors(fsys)
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, d := range descs {
		ids = append(ids, d.Source()+":"+d.Identifier)
	}
	if strings.Join(ids, ",") != "a.yml:color,b.yaml:mix" {
		t.Errorf("descriptors = %v", ids)
	}
	if len(problems) != 2 {
		t.Fatalf("problems = %v, want 2", problems)
	}
	if problems[0].File != "a.yml" || problems[1].File != "broken.yml" {
		t.Errorf("problem files = %s, %s", problems[0].File, problems[1].File)
	}
}
