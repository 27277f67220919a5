package task

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/goccy/go-yaml"
)

// Table is one loaded set of definitions in declaration order
type Table struct {
	Definitions []Definition
	Categories  []string
	Skipped     []*EntryError
}

// EntryError describes a definition that was skipped while loading
type EntryError struct {
	Index int
	ID    string
	Err   error
}

func (e *EntryError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("task entry %d: %v", e.Index, e.Err)
	}

	return fmt.Sprintf("task entry %d (%s): %v", e.Index, e.ID, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

// ErrDuplicateID is reported for a definition whose id was already loaded
var ErrDuplicateID = errors.New("duplicate task id")

// Source produces a Table
type Source interface {
	Load() (*Table, error)
}

// FileSource reads a YAML or JSON definition file
type FileSource struct {
	Path string
}

func (s FileSource) Load() (*Table, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read task definitions: %w", err)
	}

	table, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}

	return table, nil
}

// StaticSource serves fixed definitions
type StaticSource struct {
	Definitions []Definition
	Categories  []string
}

func (s StaticSource) Load() (*Table, error) {
	return &Table{
		Definitions: append([]Definition(nil), s.Definitions...),
		Categories:  append([]string(nil), s.Categories...),
	}, nil
}

// entry is a definition as written. Enabled is a pointer so a missing
// value can default to true. script_file is accepted as an older name for
// script_reference.
type entry struct {
	ID              string `mapstructure:"id"`
	Name            string `mapstructure:"name"`
	Description     string `mapstructure:"description"`
	Icon            string `mapstructure:"icon"`
	ScriptReference string `mapstructure:"script_reference"`
	ScriptFile      string `mapstructure:"script_file"`
	Category        string `mapstructure:"category"`
	Enabled         *bool  `mapstructure:"enabled"`
}

type rawEntry struct {
	fields map[string]any
	key    string
}

// entries accepts either a list of definitions or a mapping keyed by id
type entries []rawEntry

func (es *entries) UnmarshalYAML(unmarshal func(any) error) error {
	var list []map[string]any
	if err := unmarshal(&list); err == nil {
		out := make(entries, 0, len(list))
		for _, m := range list {
			out = append(out, rawEntry{fields: m})
		}
		*es = out
		return nil
	}

	var keyed yaml.MapSlice
	if err := unmarshal(&keyed); err != nil {
		return fmt.Errorf("tasks must be a list or a mapping keyed by id: %w", err)
	}

	out := make(entries, 0, len(keyed))
	for _, item := range keyed {
		fields, _ := item.Value.(map[string]any)
		if fields == nil {
			fields = map[string]any{}
		}
		out = append(out, rawEntry{fields: fields, key: fmt.Sprint(item.Key)})
	}
	*es = out

	return nil
}

type document struct {
	Categories []string `yaml:"categories"`
	Tasks      entries  `yaml:"tasks"`
}

var taskIDPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("taskid", func(fl validator.FieldLevel) bool {
		return taskIDPattern.MatchString(fl.Field().String())
	})

	return v
}

// Parse decodes a definition document. JSON is accepted as a YAML subset.
// Entries that fail to decode or validate are skipped and reported in
// Table.Skipped rather than failing the whole document.
func Parse(data []byte) (*Table, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse task definitions: %w", err)
	}

	validate := newValidator()
	table := &Table{Categories: doc.Categories}
	seen := make(map[string]bool, len(doc.Tasks))

	for i, raw := range doc.Tasks {
		def, err := decodeEntry(raw)
		if err == nil {
			err = validate.Struct(def)
		}
		if err == nil && seen[def.ID] {
			err = ErrDuplicateID
		}

		if err != nil {
			table.Skipped = append(table.Skipped, &EntryError{Index: i, ID: def.ID, Err: err})
			continue
		}

		seen[def.ID] = true
		table.Definitions = append(table.Definitions, def)
	}

	return table, nil
}

func decodeEntry(raw rawEntry) (Definition, error) {
	var e entry

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &e,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Definition{}, err
	}

	if err := decoder.Decode(raw.fields); err != nil {
		return Definition{ID: raw.key}, err
	}

	if e.ID == "" {
		e.ID = raw.key
	}

	def := Definition{
		ID:              e.ID,
		Name:            e.Name,
		Description:     e.Description,
		Icon:            e.Icon,
		ScriptReference: e.ScriptReference,
		Category:        e.Category,
		Enabled:         true,
	}

	if def.ScriptReference == "" {
		def.ScriptReference = e.ScriptFile
	}
	if def.Name == "" {
		def.Name = def.ID
	}
	if def.Icon == "" {
		def.Icon = DefaultIcon
	}
	if def.Category == "" {
		def.Category = DefaultCategory
	}
	if e.Enabled != nil {
		def.Enabled = *e.Enabled
	}

	return def, nil
}
