// Package persist dumps named attributes of a Go value to an HDF5 file and
// restores them.
//
// Each attribute becomes one dataset at the file root, shaped like the value
// it holds. A load derives the kind (array, vector, float, int or string)
// from the dataset's datatype and dimensions, so arrays come back with their
// shape and one-element datasets come back as scalars. Files written by
// other tools load the same way.
package persist

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/muograph/muograph/internal/fsutil"
	"github.com/muograph/muograph/internal/monitoring"
	"github.com/muograph/muograph/internal/ndarray"
	"github.com/muograph/muograph/internal/security"
	"github.com/scigolib/hdf5"
)

var (
	// ErrAttrNotFound is returned when an attribute is missing from a file
	// or has no matching field on the target value.
	ErrAttrNotFound = errors.New("attribute not found")
	// ErrUnsupportedKind is returned when a stored attribute cannot be
	// assigned to its target field.
	ErrUnsupportedKind = errors.New("unsupported attribute kind")
)

// Extension is appended to every saved file name.
const Extension = ".hdf5"

// energyAttr is shared between tagged track sets and never suffixed.
const energyAttr = "E"

// Dataset kinds written in the "kind" attribute.
const (
	KindArray  = "array"
	KindVector = "vector"
	KindFloat  = "float"
	KindInt    = "int"
	KindString = "string"
)

// Store saves and loads attributes under an output directory.
type Store struct {
	OutputDir string
	fs        fsutil.FileSystem
}

// NewStore returns a Store writing under outputDir, creating it when set.
// A nil fs uses the OS filesystem.
func NewStore(outputDir string, fs fsutil.FileSystem) (*Store, error) {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	s := &Store{OutputDir: outputDir, fs: fs}
	if outputDir != "" {
		if err := s.CreateDirectory(outputDir); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// CreateDirectory creates dir and any missing parents.
func (s *Store) CreateDirectory(dir string) error {
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		monitoring.Logf("persist: cannot create %s: %v", dir, err)
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	monitoring.Logf("%s directory created", dir)
	return nil
}

// FilesInDir reports whether every name in files is a regular file in dir.
func (s *Store) FilesInDir(dir string, files []string) bool {
	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		return false
	}
	present := make(map[string]bool, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			present[e.Name()] = true
		}
	}
	for _, f := range files {
		if !present[f] {
			return false
		}
	}
	return true
}

// Path returns the file SaveAttrs writes for filename in dir. An empty dir
// falls back to the store's output directory.
func (s *Store) Path(dir, filename string) string {
	if dir == "" {
		dir = s.OutputDir
	}
	return filepath.Join(dir, filename+Extension)
}

// SaveAttrs writes the named attributes of v to <dir>/<filename>.hdf5 and
// returns the file path. v must be a struct or a pointer to one. Attributes
// of unsupported kinds are skipped. filename may not climb out of dir.
func (s *Store) SaveAttrs(v any, attrs []string, dir, filename string) (string, error) {
	rv, err := structValue(v)
	if err != nil {
		return "", err
	}
	path := s.Path(dir, filename)
	base := cmp.Or(dir, s.OutputDir, ".")
	if err := security.WithinDir(path, base); err != nil {
		return "", err
	}

	fw, err := hdf5.CreateForWrite(path, hdf5.CreateTruncate)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	for _, attr := range attrs {
		field, ok := lookupField(rv, attr)
		if !ok {
			fw.Close()
			return "", fmt.Errorf("%w: %q has no field on %s", ErrAttrNotFound, attr, rv.Type())
		}
		if err := writeField(fw, attr, field); err != nil {
			if errors.Is(err, ErrUnsupportedKind) {
				monitoring.Logf("persist: skipping %s: %v", attr, err)
				continue
			}
			fw.Close()
			return "", fmt.Errorf("save %s: %w", attr, err)
		}
	}
	if err := fw.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	monitoring.Logf("Attributes saved at %s", path)
	return path, nil
}

// LoadAttrs reads the named attributes from filename into v, which must be
// a pointer to a struct. With a non-empty tag each attribute lands in the
// field named attr+tag, except E.
func (s *Store) LoadAttrs(v any, attrs []string, filename, tag string) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("load target must be a non-nil struct pointer, got %T", v)
	}
	rv = rv.Elem()

	f, err := hdf5.Open(filename)
	if err != nil {
		return fmt.Errorf("open %s: %w", filename, err)
	}
	defer f.Close()
	datasets := datasetsByName(f)

	for _, attr := range attrs {
		ds, ok := datasets[attr]
		if !ok {
			return fmt.Errorf("%w: %q in %s", ErrAttrNotFound, attr, filename)
		}
		name := attr
		if tag != "" && attr != energyAttr {
			name += tag
		}
		field, ok := lookupField(rv, name)
		if !ok || !field.CanSet() {
			return fmt.Errorf("%w: %q has no settable field on %s", ErrAttrNotFound, name, rv.Type())
		}
		st, err := readStored(ds)
		if err != nil {
			return fmt.Errorf("load %s: %w", attr, err)
		}
		if err := st.assign(field); err != nil {
			return fmt.Errorf("load %s into %s: %w", attr, name, err)
		}
	}
	monitoring.Logf("Attributes loaded from %s", filename)
	return nil
}

// AttrInfo describes one dataset of a saved file.
type AttrInfo struct {
	Name  string
	Kind  string
	Shape []int
	Info  string
}

// ListAttrs describes every dataset in filename, sorted by name.
func (s *Store) ListAttrs(filename string) ([]AttrInfo, error) {
	f, err := hdf5.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filename, err)
	}
	defer f.Close()

	datasets := datasetsByName(f)
	names := make([]string, 0, len(datasets))
	for n := range datasets {
		names = append(names, n)
	}
	sort.Strings(names)

	out := make([]AttrInfo, 0, len(names))
	for _, n := range names {
		ds := datasets[n]
		kind, shape, info, err := describe(ds)
		if err != nil && info == "" {
			return nil, fmt.Errorf("describe %s: %w", n, err)
		}
		out = append(out, AttrInfo{Name: n, Kind: kind, Shape: shape, Info: info})
	}
	return out, nil
}

func datasetsByName(f *hdf5.File) map[string]*hdf5.Dataset {
	out := make(map[string]*hdf5.Dataset)
	f.Walk(func(path string, obj hdf5.Object) {
		if ds, ok := obj.(*hdf5.Dataset); ok {
			out[strings.TrimLeft(path, "/")] = ds
		}
	})
	return out
}

func structValue(v any) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}, fmt.Errorf("nil %T", v)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("attributes need a struct, got %T", v)
	}
	return rv, nil
}

// lookupField finds the exported field tagged attr:"name", falling back to
// the field called name.
func lookupField(rv reflect.Value, name string) (reflect.Value, bool) {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.IsExported() && sf.Tag.Get("attr") == name {
			return rv.Field(i), true
		}
	}
	sf, ok := t.FieldByName(name)
	if !ok || !sf.IsExported() || len(sf.Index) != 1 {
		return reflect.Value{}, false
	}
	return rv.Field(sf.Index[0]), true
}

var (
	denseType  = reflect.TypeOf(ndarray.Dense{})
	floatsType = reflect.TypeOf([]float64(nil))
)

func writeField(fw *hdf5.FileWriter, name string, field reflect.Value) error {
	if field.Kind() == reflect.Pointer {
		if field.IsNil() {
			return fmt.Errorf("%w: nil %s", ErrUnsupportedKind, field.Type())
		}
		field = field.Elem()
	}
	switch {
	case field.Type() == denseType:
		a := field.Interface().(ndarray.Dense)
		return writeFloats(fw, name, a.Data(), a.Shape())
	case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.Float64:
		data := field.Convert(floatsType).Interface().([]float64)
		if len(data) == 0 {
			return fmt.Errorf("%w: empty slice", ErrUnsupportedKind)
		}
		return writeFloats(fw, name, data, []int{len(data)})
	case field.CanFloat():
		return writeFloats(fw, name, []float64{field.Float()}, []int{1})
	case field.CanInt():
		return writeInt(fw, name, field.Int())
	case field.Kind() == reflect.String:
		return writeString(fw, name, field.String())
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedKind, field.Type())
}

func dims(shape []int) []uint64 {
	out := make([]uint64, len(shape))
	for i, n := range shape {
		out[i] = uint64(n)
	}
	return out
}

func writeFloats(fw *hdf5.FileWriter, name string, data []float64, shape []int) error {
	dw, err := fw.CreateDataset("/"+name, hdf5.Float64, dims(shape))
	if err != nil {
		return err
	}
	return finish(dw, data)
}

func writeInt(fw *hdf5.FileWriter, name string, v int64) error {
	dw, err := fw.CreateDataset("/"+name, hdf5.Int64, []uint64{1})
	if err != nil {
		return err
	}
	return finish(dw, []int64{v})
}

func writeString(fw *hdf5.FileWriter, name, v string) error {
	dw, err := fw.CreateDataset("/"+name, hdf5.String, []uint64{1}, hdf5.WithStringSize(uint32(len(v)+1)))
	if err != nil {
		return err
	}
	return finish(dw, []string{v})
}

func finish(dw *hdf5.DatasetWriter, data any) error {
	if err := dw.Write(data); err != nil {
		dw.Close()
		return err
	}
	return dw.Close()
}

// stored is a dataset read back into memory.
type stored struct {
	kind   string
	shape  []int
	values []float64
	text   string
}

// infoPattern matches the datatype class and dataspace of a dataset
// description such as "Dataset: float (size=8 bytes), 2D array [2 x 3], ...".
var infoPattern = regexp.MustCompile(`^Dataset: (\w+) \(size=\d+ bytes\), (scalar|null|\d+D array \[([0-9x ]*)\])`)

// describe returns the kind and shape of ds along with its raw description.
// Scalars have a nil shape.
func describe(ds *hdf5.Dataset) (kind string, shape []int, info string, err error) {
	info, err = ds.Info()
	if err != nil {
		return "", nil, "", err
	}
	m := infoPattern.FindStringSubmatch(info)
	if m == nil {
		return "", nil, info, fmt.Errorf("%w: unrecognised dataset %q", ErrUnsupportedKind, info)
	}
	for _, f := range strings.Fields(strings.ReplaceAll(m[3], "x", " ")) {
		n, err := strconv.Atoi(f)
		if err != nil {
			return "", nil, info, fmt.Errorf("dataset dimension %q: %w", f, err)
		}
		shape = append(shape, n)
	}
	return kindOf(m[1], shape), shape, info, nil
}

// kindOf maps a datatype class and shape to the Go kind a load restores.
func kindOf(class string, shape []int) string {
	switch class {
	case "string":
		return KindString
	case "integer", "float":
		switch {
		case product(shape) == 1 && class == "integer":
			return KindInt
		case product(shape) == 1:
			return KindFloat
		case len(shape) == 1:
			return KindVector
		}
		return KindArray
	}
	return class
}

func readStored(ds *hdf5.Dataset) (*stored, error) {
	kind, shape, _, err := describe(ds)
	if err != nil {
		return nil, err
	}
	st := &stored{kind: kind, shape: shape}
	switch kind {
	case KindString:
		s, err := ds.ReadStrings()
		if err != nil {
			return nil, err
		}
		if len(s) == 0 {
			return nil, fmt.Errorf("empty string dataset")
		}
		st.text = strings.TrimRight(s[0], "\x00")
		return st, nil
	case KindInt, KindFloat, KindVector, KindArray:
	default:
		return nil, fmt.Errorf("%w: %s dataset", ErrUnsupportedKind, kind)
	}

	values, err := ds.Read()
	if err != nil {
		return nil, err
	}
	st.values = values
	if len(st.shape) == 0 || product(st.shape) != len(values) {
		st.shape = []int{len(values)}
	}
	return st, nil
}

func product(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func (st *stored) assign(field reflect.Value) error {
	t := field.Type()
	switch st.kind {
	case KindString:
		if t.Kind() != reflect.String {
			return fmt.Errorf("%w: string into %s", ErrUnsupportedKind, t)
		}
		field.SetString(st.text)
		return nil
	case KindFloat, KindInt:
		if len(st.values) != 1 {
			return fmt.Errorf("%w: %d values for a scalar", ErrUnsupportedKind, len(st.values))
		}
		v := st.values[0]
		switch {
		case field.CanFloat():
			field.SetFloat(v)
			return nil
		case field.CanInt():
			field.SetInt(int64(math.Round(v)))
			return nil
		}
		return st.assignArray(field)
	case KindArray, KindVector:
		return st.assignArray(field)
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedKind, st.kind)
}

func (st *stored) assignArray(field reflect.Value) error {
	t := field.Type()
	data := append([]float64(nil), st.values...)
	switch {
	case t == reflect.TypeOf(&ndarray.Dense{}):
		a, err := ndarray.FromSlice(data, st.shape...)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(a))
		return nil
	case t == denseType:
		a, err := ndarray.FromSlice(data, st.shape...)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(a).Elem())
		return nil
	case t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Float64:
		field.Set(reflect.ValueOf(data).Convert(t))
		return nil
	case field.CanFloat() && len(data) == 1:
		field.SetFloat(data[0])
		return nil
	}
	return fmt.Errorf("%w: %s into %s", ErrUnsupportedKind, st.kind, t)
}
