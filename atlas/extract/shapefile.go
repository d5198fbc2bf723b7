package extract

import (
	"archive/zip"
	"bytes"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"github.com/shadowatlas/shadow-atlas/atlas/resilience"
)

// shapefileIter streams features out of an unpacked shapefile bundle. The
// artifact is fully buffered before any feature is emitted (the zip must be
// complete to open at all), but rows are decoded lazily to bound memory.
type shapefileIter struct {
	reader  *shp.Reader
	fields  []shp.Field
	stub    *ProvenanceStub
	tempDir string
	row     int
	closed  bool
}

// openShapefileZip unpacks a DBF+SHP+SHX bundle from the artifact and opens a
// streaming reader over it. The unpacked directory lives until Close.
func openShapefileZip(a *Artifact, stub *ProvenanceStub, tempDir string) (*shapefileIter, error) {
	data, err := a.Bytes()
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, resilience.WithKind(resilience.KindPermanent,
			errors.Wrap(err, "artifact is not a valid zip bundle"))
	}

	dir, err := ioutil.TempDir(tempDir, "atlas-shp-*")
	if err != nil {
		return nil, errors.Wrap(err, "could not create shapefile scratch dir")
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	shpPath := ""
	for _, f := range zr.File {
		name := filepath.Base(f.Name)
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".shp" && ext != ".shx" && ext != ".dbf" && ext != ".prj" {
			continue
		}
		if err := extractZipFile(f, filepath.Join(dir, name)); err != nil {
			cleanup()
			return nil, err
		}
		if ext == ".shp" {
			shpPath = filepath.Join(dir, name)
		}
	}
	if shpPath == "" {
		cleanup()
		return nil, resilience.WithKind(resilience.KindPermanent,
			errors.New("zip bundle contains no .shp member"))
	}

	reader, err := shp.Open(shpPath)
	if err != nil {
		cleanup()
		return nil, resilience.WithKind(resilience.KindPermanent,
			errors.Wrap(err, "could not open shapefile"))
	}
	return &shapefileIter{
		reader:  reader,
		fields:  reader.Fields(),
		stub:    stub,
		tempDir: dir,
	}, nil
}

func extractZipFile(f *zip.File, dst string) error {
	rc, err := f.Open()
	if err != nil {
		return errors.Wrapf(err, "could not open zip member %s", f.Name)
	}
	defer func() { _ = rc.Close() }()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// Next decodes the next polygonal row.
func (it *shapefileIter) Next() (*RawFeature, error) {
	for it.reader.Next() {
		row, shape := it.reader.Shape()
		it.row = row
		geom := shapeToGeometry(shape)
		if geom == nil {
			continue
		}
		props := make(map[string]interface{}, len(it.fields))
		for i, f := range it.fields {
			props[strings.TrimRight(f.String(), "\x00")] = it.reader.ReadAttribute(row, i)
		}
		return &RawFeature{Geometry: geom, Props: props, Prov: it.stub}, nil
	}
	if err := it.reader.Err(); err != nil && err != io.EOF {
		return nil, resilience.WithKind(resilience.KindPermanent,
			errors.Wrap(err, "shapefile read failed"))
	}
	return nil, io.EOF
}

// Close releases the reader and the unpacked scratch directory.
func (it *shapefileIter) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	err := it.reader.Close()
	if rerr := os.RemoveAll(it.tempDir); rerr != nil && err == nil {
		err = rerr
	}
	return err
}

// shapeToGeometry converts a shapefile polygon record into an orb geometry.
// Parts become rings; the first ring is the outer boundary.
func shapeToGeometry(shape shp.Shape) orb.Geometry {
	poly, ok := shape.(*shp.Polygon)
	if !ok {
		return nil
	}
	numParts := len(poly.Parts)
	if numParts == 0 || len(poly.Points) == 0 {
		return nil
	}
	rings := make([]orb.Ring, 0, numParts)
	for p := 0; p < numParts; p++ {
		start := int(poly.Parts[p])
		end := len(poly.Points)
		if p+1 < numParts {
			end = int(poly.Parts[p+1])
		}
		if end <= start {
			continue
		}
		ring := make(orb.Ring, 0, end-start)
		for _, pt := range poly.Points[start:end] {
			ring = append(ring, orb.Point{pt.X, pt.Y})
		}
		rings = append(rings, ring)
	}
	if len(rings) == 0 {
		return nil
	}
	return orb.Polygon(rings)
}
