// Package schemaemit re-serializes a schema.Registry back to EDXML
// definitions, and to XSD/RelaxNG schema documents describing the same
// entities.
//
// Emitting definitions walks the registry's maps and writes through a
// generic xml.Encoder, which handles indentation rather than building
// it up with ad-hoc string concatenation.
package schemaemit

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"strings"

	"github.com/dtakken/edxml-sdk/schema"
)

// appendGrammarAttrs appends attributes from values in g's declared
// order, skipping optional attributes that still hold their documented
// default. Mandatory attributes are always appended. This keeps
// re-serialization in sync with schema/grammar.go: every attribute the
// grammar defines for an entity kind is a candidate for emission.
func appendGrammarAttrs(attr []xml.Attr, g *schema.EntityGrammar, values map[string]string) []xml.Attr {
	for _, spec := range g.Attrs {
		val, ok := values[spec.Name]
		if !ok {
			continue
		}
		if !spec.Mandatory && val == spec.Default {
			continue
		}
		attr = append(attr, xml.Attr{Name: xml.Name{Local: spec.Name}, Value: val})
	}
	return attr
}

// EmitDefinitions re-serializes reg's event types, object types and
// sources into an EDXML <definitions> element, byte-identical in
// content to the schema section the registry was built from.
func EmitDefinitions(reg *schema.Registry) ([]byte, error) {
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	defs := xml.StartElement{Name: xml.Name{Local: "definitions"}}
	if err := enc.EncodeToken(defs); err != nil {
		return nil, err
	}

	if err := emitObjectTypes(enc, reg); err != nil {
		return nil, err
	}
	if err := emitEventTypes(enc, reg); err != nil {
		return nil, err
	}
	if err := emitSources(enc, reg); err != nil {
		return nil, err
	}

	if err := enc.EncodeToken(xml.EndElement{Name: defs.Name}); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func emitObjectTypes(enc *xml.Encoder, reg *schema.Registry) error {
	start := xml.StartElement{Name: xml.Name{Local: "objecttypes"}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, name := range reg.ObjectTypeNames() {
		ot, ok := reg.ObjectType(name)
		if !ok {
			continue
		}
		attr := []xml.Attr{{Name: xml.Name{Local: "name"}, Value: ot.Name}}
		attr = appendGrammarAttrs(attr, schema.ObjectTypeGrammar, ot.Attrs())
		el := xml.StartElement{Name: xml.Name{Local: "objecttype"}, Attr: attr}
		if err := enc.EncodeToken(el); err != nil {
			return err
		}
		if err := enc.EncodeToken(xml.EndElement{Name: el.Name}); err != nil {
			return err
		}
	}
	return enc.EncodeToken(xml.EndElement{Name: start.Name})
}

func emitEventTypes(enc *xml.Encoder, reg *schema.Registry) error {
	start := xml.StartElement{Name: xml.Name{Local: "eventtypes"}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, name := range reg.EventTypeNames() {
		et, ok := reg.EventType(name)
		if !ok {
			continue
		}
		attr := []xml.Attr{{Name: xml.Name{Local: "name"}, Value: et.Name}}
		attr = appendGrammarAttrs(attr, schema.EventTypeGrammar, et.Attrs())
		el := xml.StartElement{Name: xml.Name{Local: "eventtype"}, Attr: attr}
		if err := enc.EncodeToken(el); err != nil {
			return err
		}

		propsStart := xml.StartElement{Name: xml.Name{Local: "properties"}}
		if err := enc.EncodeToken(propsStart); err != nil {
			return err
		}
		for _, p := range et.Properties {
			pattr := []xml.Attr{{Name: xml.Name{Local: "name"}, Value: p.Name}}
			pattr = appendGrammarAttrs(pattr, schema.PropertyGrammar, p.Attrs())
			pel := xml.StartElement{Name: xml.Name{Local: "property"}, Attr: pattr}
			if err := enc.EncodeToken(pel); err != nil {
				return err
			}
			if err := enc.EncodeToken(xml.EndElement{Name: pel.Name}); err != nil {
				return err
			}
		}
		if err := enc.EncodeToken(xml.EndElement{Name: propsStart.Name}); err != nil {
			return err
		}

		if len(et.Relations) > 0 {
			relsStart := xml.StartElement{Name: xml.Name{Local: "relations"}}
			if err := enc.EncodeToken(relsStart); err != nil {
				return err
			}
			for _, rel := range et.Relations {
				rattr := []xml.Attr{
					{Name: xml.Name{Local: "property1"}, Value: rel.Property1},
					{Name: xml.Name{Local: "property2"}, Value: rel.Property2},
				}
				rattr = appendGrammarAttrs(rattr, schema.RelationGrammar, rel.Attrs())
				rel2 := xml.StartElement{Name: xml.Name{Local: "relation"}, Attr: rattr}
				if err := enc.EncodeToken(rel2); err != nil {
					return err
				}
				if err := enc.EncodeToken(xml.EndElement{Name: rel2.Name}); err != nil {
					return err
				}
			}
			if err := enc.EncodeToken(xml.EndElement{Name: relsStart.Name}); err != nil {
				return err
			}
		}

		if et.Parent != nil {
			children := make([]string, 0, len(et.Parent.PropertyMap))
			for child := range et.Parent.PropertyMap {
				children = append(children, child)
			}
			sort.Strings(children)
			parts := make([]string, 0, len(children))
			for _, child := range children {
				parts = append(parts, fmt.Sprintf("%s:%s", child, et.Parent.PropertyMap[child]))
			}
			pel := xml.StartElement{
				Name: xml.Name{Local: "parent"},
				Attr: []xml.Attr{
					{Name: xml.Name{Local: "eventtype"}, Value: et.Parent.EventTypeName},
					{Name: xml.Name{Local: "propertymap"}, Value: strings.Join(parts, ",")},
				},
			}
			if err := enc.EncodeToken(pel); err != nil {
				return err
			}
			if err := enc.EncodeToken(xml.EndElement{Name: pel.Name}); err != nil {
				return err
			}
		}

		if err := enc.EncodeToken(xml.EndElement{Name: el.Name}); err != nil {
			return err
		}
	}
	return enc.EncodeToken(xml.EndElement{Name: start.Name})
}

func emitSources(enc *xml.Encoder, reg *schema.Registry) error {
	start := xml.StartElement{Name: xml.Name{Local: "sources"}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, src := range reg.Sources() {
		el := xml.StartElement{
			Name: xml.Name{Local: "source"},
			Attr: []xml.Attr{
				{Name: xml.Name{Local: "url"}, Value: src.URL},
				{Name: xml.Name{Local: "source-id"}, Value: fmt.Sprintf("%d", src.SourceID)},
				{Name: xml.Name{Local: "date-acquired"}, Value: src.DateAcquired},
				{Name: xml.Name{Local: "description"}, Value: src.Description},
			},
		}
		if err := enc.EncodeToken(el); err != nil {
			return err
		}
		if err := enc.EncodeToken(xml.EndElement{Name: el.Name}); err != nil {
			return err
		}
	}
	return enc.EncodeToken(xml.EndElement{Name: start.Name})
}
