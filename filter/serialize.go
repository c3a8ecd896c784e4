package filter

import (
	"fmt"
	"strconv"

	"github.com/beevik/etree"

	"github.com/hugr-lab/ogc-filter/geometry"
)

// NamespaceOGC is the namespace of filter elements.
const NamespaceOGC = "http://www.opengis.net/ogc"

// Version names a filter document dialect.
type Version string

const (
	Version100 Version = "1.0.0"
	Version110 Version = "1.1.0"
)

// ParseVersion validates a version string. The empty string selects 1.1.0.
func ParseVersion(s string) (Version, error) {
	d, err := DialectFor(Version(s))
	if err != nil {
		return "", err
	}
	return d.Version, nil
}

// Dialect carries the names that differ between document versions. The
// operand structure and operator names are shared.
type Dialect struct {
	Version Version

	// EscapeAttr is the Like attribute naming the escape character.
	EscapeAttr string

	// IDElement and IDAttr name the identifier element and its attribute.
	IDElement string
	IDAttr    string

	// GML selects the geometry encoding of spatial operands.
	GML geometry.GMLVersion

	// GMLOnRoot declares the gml namespace on the Filter element instead of
	// on each geometry operand.
	GMLOnRoot bool
}

var (
	Dialect100 = Dialect{
		Version:    Version100,
		EscapeAttr: "escape",
		IDElement:  "FeatureId",
		IDAttr:     "fid",
		GML:        geometry.GML2,
		GMLOnRoot:  true,
	}
	Dialect110 = Dialect{
		Version:    Version110,
		EscapeAttr: "escapeChar",
		IDElement:  "GmlObjectId",
		IDAttr:     "gml:id",
		GML:        geometry.GML3,
	}
)

// DialectFor returns the dialect of v. The empty version selects 1.1.0.
func DialectFor(v Version) (Dialect, error) {
	switch v {
	case Version110, "":
		return Dialect110, nil
	case Version100:
		return Dialect100, nil
	default:
		return Dialect{}, constructionErr("", "unsupported version %q", string(v))
	}
}

// ToText serializes f as a document of version v.
func ToText(f Filter, v Version) (string, error) {
	d, err := DialectFor(v)
	if err != nil {
		return "", err
	}
	return d.ToText(f)
}

// ToText serializes f in this dialect.
func (d Dialect) ToText(f Filter) (string, error) {
	doc, err := d.Document(f)
	if err != nil {
		return "", err
	}
	doc.Indent(2)
	return doc.WriteToString()
}

// Document serializes f into a new document.
func (d Dialect) Document(f Filter) (*etree.Document, error) {
	doc := etree.NewDocument()
	root := doc.CreateElement("ogc:Filter")
	root.CreateAttr("xmlns:ogc", NamespaceOGC)
	if d.GMLOnRoot {
		root.CreateAttr("xmlns:gml", geometry.NamespaceGML)
	}

	switch f := f.(type) {
	case *IDFilter:
		if !d.GMLOnRoot && len(f.IDs) > 0 {
			root.CreateAttr("xmlns:gml", geometry.NamespaceGML)
		}
		for _, id := range f.IDs {
			root.CreateElement("ogc:"+d.IDElement).CreateAttr(d.IDAttr, id)
		}
	case *OperationFilter:
		if err := d.writeOperation(root, f.Root); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("filter: cannot serialize filter %T", f)
	}
	return doc, nil
}

func (d Dialect) writeOperation(parent *etree.Element, op Operation) error {
	switch o := op.(type) {
	case *LogicalOperation:
		el := parent.CreateElement("ogc:" + string(o.Op))
		for _, c := range o.Children {
			if err := d.writeOperation(el, c); err != nil {
				return err
			}
		}

	case *BinaryComparison:
		el := parent.CreateElement("ogc:" + string(o.Op))
		if !o.MatchCase {
			el.CreateAttr("matchCase", "false")
		}
		if err := d.writeExpression(el, o.Left); err != nil {
			return err
		}
		return d.writeExpression(el, o.Right)

	case *LikeOperation:
		el := parent.CreateElement("ogc:" + string(OpLike))
		el.CreateAttr("wildCard", string(o.WildCard))
		el.CreateAttr("singleChar", string(o.SingleChar))
		el.CreateAttr(d.EscapeAttr, string(o.Escape))
		if !o.MatchCase {
			el.CreateAttr("matchCase", "false")
		}
		d.writePropertyName(el, o.Property)
		el.CreateElement("ogc:Literal").SetText(o.Pattern.Text)

	case *BetweenOperation:
		el := parent.CreateElement("ogc:" + string(OpBetween))
		d.writePropertyName(el, o.Property)
		if err := d.writeExpression(el.CreateElement("ogc:LowerBoundary"), o.Lower); err != nil {
			return err
		}
		return d.writeExpression(el.CreateElement("ogc:UpperBoundary"), o.Upper)

	case *NullOperation:
		el := parent.CreateElement("ogc:" + string(OpIsNull))
		d.writePropertyName(el, o.Property)

	case *InstanceOfOperation:
		el := parent.CreateElement("ogc:" + string(OpIsInstanceOf))
		d.writePropertyName(el, o.Property)
		el.CreateElement("ogc:Literal").SetText(o.TypeName)

	case *SpatialOperation:
		el := parent.CreateElement("ogc:" + string(o.Op))
		if o.Property != nil {
			d.writePropertyName(el, o.Property)
		}
		geometry.WriteGML(el, o.Geometry, d.GML, !d.GMLOnRoot)
		if o.Distance != nil {
			de := el.CreateElement("ogc:Distance")
			if o.Distance.Units != "" {
				de.CreateAttr("units", o.Distance.Units)
			}
			de.SetText(strconv.FormatFloat(o.Distance.Value, 'g', -1, 64))
		}

	default:
		return fmt.Errorf("filter: cannot serialize operation %T", op)
	}
	return nil
}

func (d Dialect) writePropertyName(parent *etree.Element, p *PropertyName) {
	parent.CreateElement("ogc:PropertyName").SetText(p.Path.String())
}

func (d Dialect) writeExpression(parent *etree.Element, e Expression) error {
	switch x := e.(type) {
	case *Literal:
		parent.CreateElement("ogc:Literal").SetText(x.Text)
	case *PropertyName:
		d.writePropertyName(parent, x)
	case *ArithmeticExpression:
		el := parent.CreateElement("ogc:" + string(x.Op))
		if err := d.writeExpression(el, x.Left); err != nil {
			return err
		}
		return d.writeExpression(el, x.Right)
	case *FunctionExpression:
		el := parent.CreateElement("ogc:Function")
		el.CreateAttr("name", x.Name)
		for _, a := range x.Args {
			if err := d.writeExpression(el, a); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("filter: cannot serialize expression %T", e)
	}
	return nil
}
