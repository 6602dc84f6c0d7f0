// Package catalog defines the datasets the back office can browse and
// export. The catalog is declarative YAML, embedded by default and
// overridable with an external file, so operators can tune filters and
// columns without a rebuild.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"
	"gopkg.in/yaml.v3"

	"github.com/meridianbank/opsdesk/internal/domain/auth"
	"github.com/meridianbank/opsdesk/internal/resultset"
)

//go:embed datasets.yaml
var embeddedCatalog []byte

// Source identifies where a dataset's records come from.
type Source string

const (
	// SourceLedger datasets are fetched from the ledger API.
	SourceLedger Source = "ledger"
	// SourceExports datasets are read from the local export audit trail.
	SourceExports Source = "exports"
)

// Valid reports whether the source is one of the defined constants.
func (s Source) Valid() bool {
	return s == SourceLedger || s == SourceExports
}

// Dataset describes one browsable collection: where its records come
// from, how they are shaped, and which filters, sorts and columns the
// API exposes for it. Fields are normalized at load time and must be
// treated as read-only afterwards.
type Dataset struct {
	Key     string
	Title   string
	Source  Source
	Path    string
	MinRole auth.Role

	// Projection is an optional JMESPath expression applied to each
	// upstream record. It is compiled during catalog load.
	Projection string

	DefaultSort resultset.SortState
	Sortable    []string

	Filters       []resultset.FilterDef
	Columns       []resultset.Column
	ExportColumns []resultset.Column
}

// VisibleTo reports whether a session with the given role may read the
// dataset.
func (d *Dataset) VisibleTo(role auth.Role) bool {
	return role.AtLeast(d.MinRole)
}

// SortAllowed reports whether the field may be used as a sort key. The
// empty field (no sort) is always allowed, and an empty whitelist
// permits any field.
func (d *Dataset) SortAllowed(field string) bool {
	if field == "" || len(d.Sortable) == 0 {
		return true
	}
	for _, f := range d.Sortable {
		if f == field {
			return true
		}
	}
	return false
}

// Project applies the dataset projection to every record. Records for
// which the expression does not yield an object become empty records so
// positions are preserved. Without a projection the input is returned
// unchanged.
func (d *Dataset) Project(records []resultset.Record) ([]resultset.Record, error) {
	if strings.TrimSpace(d.Projection) == "" {
		return records, nil
	}
	expr, err := jmespath.Compile(d.Projection)
	if err != nil {
		return nil, fmt.Errorf("project dataset %s: %w", d.Key, err)
	}
	out := make([]resultset.Record, len(records))
	for i, rec := range records {
		v, err := expr.Search(map[string]any(rec))
		if err != nil {
			return nil, fmt.Errorf("project dataset %s record %d: %w", d.Key, i, err)
		}
		if m, ok := v.(map[string]any); ok {
			out[i] = resultset.Record(m)
		} else {
			out[i] = resultset.Record{}
		}
	}
	return out, nil
}

// Processor returns a filter processor configured with the dataset's
// filter definitions.
func (d *Dataset) Processor() resultset.Processor {
	return resultset.Processor{Defs: d.Filters}
}

// Catalog is an immutable set of datasets in declaration order.
type Catalog struct {
	datasets []*Dataset
	byKey    map[string]*Dataset
}

// Dataset returns the dataset with the given key.
func (c *Catalog) Dataset(key string) (*Dataset, bool) {
	d, ok := c.byKey[key]
	return d, ok
}

// Datasets returns all datasets in declaration order.
func (c *Catalog) Datasets() []*Dataset {
	out := make([]*Dataset, len(c.datasets))
	copy(out, c.datasets)
	return out
}

// VisibleDatasets returns the datasets readable by the given role, in
// declaration order.
func (c *Catalog) VisibleDatasets(role auth.Role) []*Dataset {
	var out []*Dataset
	for _, d := range c.datasets {
		if d.VisibleTo(role) {
			out = append(out, d)
		}
	}
	return out
}

// Len returns the number of datasets.
func (c *Catalog) Len() int { return len(c.datasets) }

// Embedded parses the catalog compiled into the binary.
func Embedded() (*Catalog, error) {
	return Parse(embeddedCatalog)
}

// Load reads a catalog from the given YAML file. An empty path falls
// back to the embedded catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Embedded()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

type catalogFile struct {
	Datasets []datasetSpec `yaml:"datasets"`
}

type datasetSpec struct {
	Key           string       `yaml:"key"`
	Title         string       `yaml:"title"`
	Source        string       `yaml:"source"`
	Path          string       `yaml:"path"`
	Role          string       `yaml:"role"`
	Projection    string       `yaml:"projection"`
	DefaultSort   sortSpec     `yaml:"default_sort"`
	Sortable      []string     `yaml:"sortable"`
	Filters       []filterSpec `yaml:"filters"`
	Columns       []columnSpec `yaml:"columns"`
	ExportColumns []columnSpec `yaml:"export_columns"`
}

type sortSpec struct {
	Field      string `yaml:"field"`
	Descending bool   `yaml:"descending"`
}

type filterSpec struct {
	Name    string                `yaml:"name"`
	Kind    string                `yaml:"kind"`
	Field   string                `yaml:"field"`
	Fields  []string              `yaml:"fields"`
	Buckets map[string]bucketSpec `yaml:"buckets"`
}

type bucketSpec struct {
	Window string   `yaml:"window"`
	Min    *float64 `yaml:"min"`
	Max    *float64 `yaml:"max"`
}

type columnSpec struct {
	Header string `yaml:"header"`
	Field  string `yaml:"field"`
}

var reDatasetKey = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// Parse decodes and validates a YAML catalog. Every projection is
// compiled here so a bad expression fails at startup instead of on the
// first request.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(file.Datasets) == 0 {
		return nil, fmt.Errorf("catalog defines no datasets")
	}

	c := &Catalog{byKey: make(map[string]*Dataset, len(file.Datasets))}
	for _, spec := range file.Datasets {
		d, err := buildDataset(spec)
		if err != nil {
			return nil, err
		}
		if _, exists := c.byKey[d.Key]; exists {
			return nil, fmt.Errorf("dataset %q: duplicate key", d.Key)
		}
		c.datasets = append(c.datasets, d)
		c.byKey[d.Key] = d
	}
	return c, nil
}

func buildDataset(spec datasetSpec) (*Dataset, error) {
	if spec.Key == "" {
		return nil, fmt.Errorf("dataset with empty key")
	}
	if !reDatasetKey.MatchString(spec.Key) {
		return nil, fmt.Errorf("dataset %q: key must match %s", spec.Key, reDatasetKey)
	}
	if spec.Title == "" {
		return nil, fmt.Errorf("dataset %q: title is required", spec.Key)
	}

	source := Source(spec.Source)
	if spec.Source == "" {
		source = SourceLedger
	}
	if !source.Valid() {
		return nil, fmt.Errorf("dataset %q: unknown source %q", spec.Key, spec.Source)
	}
	if source == SourceLedger && spec.Path == "" {
		return nil, fmt.Errorf("dataset %q: ledger datasets require a path", spec.Key)
	}

	role := auth.Role(spec.Role)
	if spec.Role == "" {
		role = auth.RoleClerk
	}
	if !role.Valid() {
		return nil, fmt.Errorf("dataset %q: unknown role %q", spec.Key, spec.Role)
	}

	if spec.Projection != "" {
		if _, err := jmespath.Compile(spec.Projection); err != nil {
			return nil, fmt.Errorf("dataset %q: invalid projection: %w", spec.Key, err)
		}
	}

	d := &Dataset{
		Key:        spec.Key,
		Title:      spec.Title,
		Source:     source,
		Path:       spec.Path,
		MinRole:    role,
		Projection: spec.Projection,
		DefaultSort: resultset.SortState{
			Field:      spec.DefaultSort.Field,
			Descending: spec.DefaultSort.Descending,
		},
		Sortable: spec.Sortable,
	}

	for _, f := range spec.Sortable {
		if f == "" {
			return nil, fmt.Errorf("dataset %q: empty sortable field", spec.Key)
		}
	}
	if !d.SortAllowed(d.DefaultSort.Field) {
		return nil, fmt.Errorf("dataset %q: default sort field %q is not sortable", spec.Key, d.DefaultSort.Field)
	}

	defs, err := buildFilters(spec)
	if err != nil {
		return nil, err
	}
	d.Filters = defs

	if len(spec.Columns) == 0 {
		return nil, fmt.Errorf("dataset %q: at least one column is required", spec.Key)
	}
	d.Columns, err = buildColumns(spec.Key, spec.Columns)
	if err != nil {
		return nil, err
	}
	d.ExportColumns, err = buildColumns(spec.Key, spec.ExportColumns)
	if err != nil {
		return nil, err
	}
	if len(d.ExportColumns) == 0 {
		d.ExportColumns = d.Columns
	}
	return d, nil
}

func buildFilters(spec datasetSpec) ([]resultset.FilterDef, error) {
	defs := make([]resultset.FilterDef, 0, len(spec.Filters))
	seen := make(map[string]struct{}, len(spec.Filters))
	for _, f := range spec.Filters {
		if f.Name == "" {
			return nil, fmt.Errorf("dataset %q: filter with empty name", spec.Key)
		}
		if _, dup := seen[f.Name]; dup {
			return nil, fmt.Errorf("dataset %q: duplicate filter %q", spec.Key, f.Name)
		}
		seen[f.Name] = struct{}{}

		def, err := buildFilter(spec.Key, f)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func buildFilter(dataset string, f filterSpec) (resultset.FilterDef, error) {
	switch resultset.FilterKind(f.Kind) {
	case resultset.FilterExact:
		if f.Field == "" {
			return resultset.FilterDef{}, fmt.Errorf("dataset %q: filter %q: exact filters require a field", dataset, f.Name)
		}
		return resultset.Exact(f.Name, f.Field), nil

	case resultset.FilterSearch:
		if len(f.Fields) == 0 {
			return resultset.FilterDef{}, fmt.Errorf("dataset %q: filter %q: search filters require fields", dataset, f.Name)
		}
		return resultset.Search(f.Name, f.Fields...), nil

	case resultset.FilterBucket:
		if f.Field == "" {
			return resultset.FilterDef{}, fmt.Errorf("dataset %q: filter %q: bucket filters require a field", dataset, f.Name)
		}
		if len(f.Buckets) == 0 {
			return resultset.FilterDef{}, fmt.Errorf("dataset %q: filter %q: bucket filters require buckets", dataset, f.Name)
		}
		buckets := make(map[string]resultset.Bucket, len(f.Buckets))
		for name, b := range f.Buckets {
			bucket, err := buildBucket(b)
			if err != nil {
				return resultset.FilterDef{}, fmt.Errorf("dataset %q: filter %q: bucket %q: %w", dataset, f.Name, name, err)
			}
			buckets[name] = bucket
		}
		return resultset.Buckets(f.Name, f.Field, buckets), nil

	default:
		return resultset.FilterDef{}, fmt.Errorf("dataset %q: filter %q: unknown kind %q", dataset, f.Name, f.Kind)
	}
}

func buildBucket(b bucketSpec) (resultset.Bucket, error) {
	if b.Window != "" {
		if b.Min != nil || b.Max != nil {
			return resultset.Bucket{}, fmt.Errorf("window and min/max are mutually exclusive")
		}
		w, err := time.ParseDuration(b.Window)
		if err != nil {
			return resultset.Bucket{}, fmt.Errorf("invalid window %q: %w", b.Window, err)
		}
		if w <= 0 {
			return resultset.Bucket{}, fmt.Errorf("window %q must be positive", b.Window)
		}
		return resultset.Bucket{Window: w}, nil
	}
	if b.Min == nil && b.Max == nil {
		return resultset.Bucket{}, fmt.Errorf("either window or min/max is required")
	}
	return resultset.Bucket{Min: b.Min, Max: b.Max}, nil
}

func buildColumns(dataset string, specs []columnSpec) ([]resultset.Column, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	cols := make([]resultset.Column, 0, len(specs))
	for _, c := range specs {
		if c.Header == "" || c.Field == "" {
			return nil, fmt.Errorf("dataset %q: columns require header and field", dataset)
		}
		cols = append(cols, resultset.Column{Header: c.Header, Field: c.Field})
	}
	return cols, nil
}
