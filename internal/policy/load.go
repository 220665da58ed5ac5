package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// File is the on-disk shape of a policy, shared by the YAML and CUE forms.
type File struct {
	Required  []string `yaml:"required"`
	Forbidden []string `yaml:"forbidden"`
}

// Policy validates the file contents and builds an immutable Policy.
func (f File) Policy() (*Policy, error) {
	return New(f.Required, f.Forbidden)
}

// Load reads a policy file, choosing the decoder by extension
// (.yaml/.yml or .cue).
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Message: fmt.Sprintf("failed to read policy file %s", path), Err: err}
	}

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".cue":
		return ParseCUE(path, data)
	default:
		return nil, &ConfigError{Message: fmt.Sprintf("unsupported policy file extension %q (want .yaml, .yml or .cue)", filepath.Ext(path))}
	}
}

// ParseYAML decodes a YAML policy document. Unknown fields are rejected so
// a typo such as "forbiden:" cannot silently disable a set.
func ParseYAML(data []byte) (*Policy, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ConfigError{Message: "policy document is empty"}
		}
		return nil, &ConfigError{Message: "failed to parse YAML", Err: err}
	}
	return f.Policy()
}

// ParseCUE compiles a CUE policy document with top-level required and
// forbidden string lists.
func ParseCUE(filename string, data []byte) (*Policy, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, &ConfigError{Message: "failed to compile CUE", Err: err}
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, &ConfigError{Message: "policy must be a CUE struct", Pos: v.Pos(), Err: err}
	}
	for iter.Next() {
		switch label := iter.Label(); label {
		case "required", "forbidden":
		default:
			return nil, &ConfigError{Field: label, Message: "unknown field", Pos: iter.Value().Pos()}
		}
	}

	var f File
	if f.Required, err = cueStrings(v, "required"); err != nil {
		return nil, err
	}
	if f.Forbidden, err = cueStrings(v, "forbidden"); err != nil {
		return nil, err
	}
	return f.Policy()
}

func cueStrings(v cue.Value, field string) ([]string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, &ConfigError{Field: field, Message: "field is missing", Pos: v.Pos()}
	}

	var out []string
	if err := fv.Decode(&out); err != nil {
		return nil, &ConfigError{Field: field, Message: "must be a list of strings", Pos: fv.Pos(), Err: err}
	}
	return out, nil
}
