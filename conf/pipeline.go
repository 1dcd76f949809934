package conf

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dosco/mongopipe/core"
	"github.com/go-playground/validator/v10"
	"github.com/gosimple/slug"
	"github.com/invopop/jsonschema"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// ErrBadDefinition is returned for pipeline files that cannot be compiled.
var ErrBadDefinition = errors.New("conf: bad pipeline definition")

// Definition is a pipeline definition file.
//
//	name: item_totals
//	source: sales
//	out: item_totals
//	stages:
//	  - match: { price: { $gte: 10 } }
//	  - group:
//	      _id: $item
//	      total: { $sum: { $multiply: [$price, $quantity] } }
//	  - sort: { total: -1 }
type Definition struct {
	// Name defaults to the slug of the file name
	Name string `yaml:"name" json:"name,omitempty" jsonschema:"title=Name"`

	// Source collection the pipeline reads
	Source string `yaml:"source" json:"source" jsonschema:"title=Source Collection" validate:"required"`

	// Out writes the results to this collection with a final $out stage
	Out string `yaml:"out" json:"out,omitempty" jsonschema:"title=Out Collection"`

	Options Options `yaml:"options" json:"options,omitempty" jsonschema:"title=Execution Options"`

	Stages []Stage `yaml:"stages" json:"stages" jsonschema:"title=Stages,minItems=1" validate:"required,min=1,dive"`
}

// Options are the execution options of a pipeline definition.
type Options struct {
	AllowDiskUse             *bool         `yaml:"allow_disk_use" json:"allow_disk_use,omitempty"`
	BatchSize                int32         `yaml:"batch_size" json:"batch_size,omitempty" validate:"gte=0"`
	MaxAwaitTime             time.Duration `yaml:"max_await_time" json:"max_await_time,omitempty" jsonschema:"type=string,example=5s"`
	Comment                  string        `yaml:"comment" json:"comment,omitempty"`
	BypassDocumentValidation bool          `yaml:"bypass_document_validation" json:"bypass_document_validation,omitempty"`
	ReadPreference           string        `yaml:"read_preference" json:"read_preference,omitempty" jsonschema:"enum=primary,enum=primaryPreferred,enum=secondary,enum=secondaryPreferred,enum=nearest" validate:"omitempty,oneof=primary primaryPreferred secondary secondaryPreferred nearest"`
}

// Stage is one entry of the stages list. Exactly one field must be set.
type Stage struct {
	Match   *Doc     `yaml:"match" json:"match,omitempty"`
	Group   *Doc     `yaml:"group" json:"group,omitempty"`
	Project *Doc     `yaml:"project" json:"project,omitempty"`
	Sort    *Doc     `yaml:"sort" json:"sort,omitempty"`
	Skip    *int64   `yaml:"skip" json:"skip,omitempty" validate:"omitempty,gte=0"`
	Limit   *int64   `yaml:"limit" json:"limit,omitempty" validate:"omitempty,gte=0"`
	Unwind  string   `yaml:"unwind" json:"unwind,omitempty"`
	Lookup  *Lookup  `yaml:"lookup" json:"lookup,omitempty"`
	GeoNear *GeoNear `yaml:"geo_near" json:"geo_near,omitempty"`
}

type Lookup struct {
	From         string `yaml:"from" json:"from" validate:"required"`
	LocalField   string `yaml:"local_field" json:"local_field" validate:"required"`
	ForeignField string `yaml:"foreign_field" json:"foreign_field" validate:"required"`
	As           string `yaml:"as" json:"as" validate:"required"`
}

type GeoNear struct {
	// Near is a [longitude, latitude] pair
	Near               []float64 `yaml:"near" json:"near" jsonschema:"minItems=2,maxItems=2" validate:"len=2"`
	DistanceField      string    `yaml:"distance_field" json:"distance_field,omitempty"`
	Limit              *int64    `yaml:"limit" json:"limit,omitempty"`
	Num                *int64    `yaml:"num" json:"num,omitempty"`
	MaxDistance        *float64  `yaml:"max_distance" json:"max_distance,omitempty"`
	Query              *Doc      `yaml:"query" json:"query,omitempty"`
	Spherical          *bool     `yaml:"spherical" json:"spherical,omitempty"`
	DistanceMultiplier *float64  `yaml:"distance_multiplier" json:"distance_multiplier,omitempty"`
	IncludeLocs        string    `yaml:"include_locs" json:"include_locs,omitempty"`
	UniqueDocs         *bool     `yaml:"unique_docs" json:"unique_docs,omitempty"`
}

// Doc holds a YAML mapping with its key order intact.
type Doc struct {
	node *yaml.Node
}

func (d *Doc) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", n.Line)
	}
	d.node = n
	return nil
}

func (Doc) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object"}
}

var validate = validator.New()

// ParsePipeline decodes and validates a definition. name is used when the
// file does not set one.
func ParsePipeline(data []byte, name string) (*Definition, error) {
	var d Definition
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBadDefinition, name, err)
	}
	if d.Name == "" {
		d.Name = slug.Make(name)
	}
	if err := validate.Struct(&d); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBadDefinition, d.Name, err)
	}
	for i, s := range d.Stages {
		if n := s.count(); n != 1 {
			return nil, fmt.Errorf("%w: %s: stage %d sets %d operators, want 1", ErrBadDefinition, d.Name, i, n)
		}
	}
	return &d, nil
}

// LoadPipeline reads a definition file.
func LoadPipeline(fs afero.Fs, path string) (*Definition, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("conf: %w", err)
	}
	base := filepath.Base(path)
	return ParsePipeline(data, strings.TrimSuffix(base, filepath.Ext(base)))
}

// LoadPipelines reads the definition files concurrently. The definitions
// are returned in the order of the paths; the first failure is returned.
func LoadPipelines(ctx context.Context, fs afero.Fs, paths ...string) ([]*Definition, error) {
	defs := make([]*Definition, len(paths))
	g, ctx := errgroup.WithContext(ctx)

	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			d, err := LoadPipeline(fs, path)
			if err != nil {
				return err
			}
			defs[i] = d
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return defs, nil
}

// ExecOptions converts the options into per call execution options.
func (d *Definition) ExecOptions() []core.ExecOption {
	o := d.Options
	var opts []core.ExecOption
	if o.AllowDiskUse != nil {
		opts = append(opts, core.WithAllowDiskUse(*o.AllowDiskUse))
	}
	if o.BatchSize != 0 {
		opts = append(opts, core.WithBatchSize(o.BatchSize))
	}
	if o.MaxAwaitTime != 0 {
		opts = append(opts, core.WithMaxAwaitTime(o.MaxAwaitTime))
	}
	if o.Comment != "" {
		opts = append(opts, core.WithComment(o.Comment))
	}
	if o.BypassDocumentValidation {
		opts = append(opts, core.WithBypassDocumentValidation(true))
	}
	if o.ReadPreference != "" {
		opts = append(opts, core.WithReadPreference(o.ReadPreference))
	}
	return opts
}

func (s Stage) count() int {
	n := 0
	for _, set := range []bool{
		s.Match != nil, s.Group != nil, s.Project != nil, s.Sort != nil,
		s.Skip != nil, s.Limit != nil, s.Unwind != "", s.Lookup != nil, s.GeoNear != nil,
	} {
		if set {
			n++
		}
	}
	return n
}
