package record

import (
	"fmt"
	"reflect"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// GeometryExtensionName is the Arrow extension name of WKB geometry columns.
// Compatible with GeoArrow and the DuckDB spatial extension.
const GeometryExtensionName = "geoarrow.wkb"

// GeometryExtensionType is the Arrow extension type for WKB geometries
// stored in Binary or LargeBinary columns.
type GeometryExtensionType struct {
	arrow.ExtensionBase
}

// NewGeometryExtensionType creates a geometry extension type over Binary storage.
func NewGeometryExtensionType() *GeometryExtensionType {
	return &GeometryExtensionType{
		ExtensionBase: arrow.ExtensionBase{Storage: arrow.BinaryTypes.Binary},
	}
}

// GeometryArray is the array type of geometry columns.
type GeometryArray struct {
	array.ExtensionArrayBase
}

// ArrayType returns the Go type for geometry arrays.
func (g *GeometryExtensionType) ArrayType() reflect.Type {
	return reflect.TypeOf(GeometryArray{})
}

// ExtensionName returns the extension type identifier.
func (g *GeometryExtensionType) ExtensionName() string {
	return GeometryExtensionName
}

func (g *GeometryExtensionType) String() string {
	return "extension<" + GeometryExtensionName + ">"
}

// Serialize returns the extension metadata (empty for plain WKB).
func (g *GeometryExtensionType) Serialize() string {
	return ""
}

// Deserialize creates a geometry extension type from metadata.
func (g *GeometryExtensionType) Deserialize(storageType arrow.DataType, data string) (arrow.ExtensionType, error) {
	if !arrow.TypeEqual(storageType, arrow.BinaryTypes.Binary) &&
		!arrow.TypeEqual(storageType, arrow.BinaryTypes.LargeBinary) {
		return nil, fmt.Errorf("invalid storage type for geometry: %s (expected Binary or LargeBinary)", storageType)
	}
	return &GeometryExtensionType{
		ExtensionBase: arrow.ExtensionBase{Storage: storageType},
	}, nil
}

// ExtensionEquals checks equality with another extension type.
func (g *GeometryExtensionType) ExtensionEquals(other arrow.ExtensionType) bool {
	o, ok := other.(*GeometryExtensionType)
	if !ok {
		return false
	}
	return arrow.TypeEqual(g.StorageType(), o.StorageType())
}

// isGeometryField reports whether a field holds WKB geometries, either via
// the extension type or via extension metadata left on a plain binary field.
func isGeometryField(f arrow.Field) bool {
	if ext, ok := f.Type.(arrow.ExtensionType); ok {
		return ext.ExtensionName() == GeometryExtensionName
	}
	if name, ok := f.Metadata.GetValue("ARROW:extension:name"); ok {
		return name == GeometryExtensionName
	}
	return false
}

func init() {
	_ = arrow.RegisterExtensionType(NewGeometryExtensionType())
}
