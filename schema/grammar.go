package schema

import (
	"fmt"
	"regexp"

	"github.com/dtakken/edxml-sdk"
)

// AttrSpec describes one attribute of an entity kind: whether it must be
// present, its maximum length, the regular expression it must match, and
// its documented default (used when the attribute is optional and
// absent, and when comparing re-registrations).
//
// This is the data-driven attribute-grammar table: entities are stored
// as tagged Go structs (not string-keyed maps), but every attribute
// write is validated against, and every re-registration compared via,
// this same table.
type AttrSpec struct {
	Name      string
	Mandatory bool
	MaxLen    int // 0 = unbounded
	Pattern   *regexp.Regexp
	Default   string
}

// EntityGrammar is the ordered attribute table for one entity kind.
type EntityGrammar struct {
	Kind  string
	Attrs []AttrSpec
}

func (g *EntityGrammar) spec(name string) (AttrSpec, bool) {
	for _, a := range g.Attrs {
		if a.Name == name {
			return a, true
		}
	}
	return AttrSpec{}, false
}

// Validate checks attrs against the grammar: unknown attribute names are
// rejected, mandatory attributes must be present, and every present value
// must respect MaxLen/Pattern. Absent optional attributes are filled in
// with their documented default. path identifies the entity for error
// messages (e.g. "eventtype/e").
func (g *EntityGrammar) Validate(path string, attrs map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(g.Attrs))
	for name, value := range attrs {
		spec, ok := g.spec(name)
		if !ok {
			return nil, edxml.NewError(edxml.KindUnknownAttribute, path+"/"+name, nil)
		}
		if spec.MaxLen > 0 && len(value) > spec.MaxLen {
			return nil, edxml.NewError(edxml.KindAttributeViolation, path+"/"+name,
				fmt.Errorf("exceeds maximum length %d", spec.MaxLen))
		}
		if spec.Pattern != nil && !spec.Pattern.MatchString(value) {
			return nil, edxml.NewError(edxml.KindAttributeViolation, path+"/"+name,
				fmt.Errorf("does not match %s", spec.Pattern.String()))
		}
		out[name] = value
	}
	for _, spec := range g.Attrs {
		if _, present := out[spec.Name]; present {
			continue
		}
		if spec.Mandatory {
			return nil, edxml.NewError(edxml.KindMissingMandatoryAttr, path+"/"+spec.Name, nil)
		}
		out[spec.Name] = spec.Default
	}
	return out, nil
}

// CheckReRegistration verifies that retained attributes
// must compare equal; new attributes are allowed only if optional and
// equal to the documented default; removed attributes are allowed only if
// optional and their previous value equaled the default.
func (g *EntityGrammar) CheckReRegistration(path string, previous, next map[string]string) error {
	for _, spec := range g.Attrs {
		prev, hadPrev := previous[spec.Name]
		cur, hasCur := next[spec.Name]
		switch {
		case hadPrev && hasCur:
			if prev != cur {
				return edxml.NewError(edxml.KindSchemaInconsistency, path+"/"+spec.Name,
					fmt.Errorf("re-registration changes value from %q to %q", prev, cur))
			}
		case !hadPrev && hasCur:
			if spec.Mandatory {
				return edxml.NewError(edxml.KindSchemaInconsistency, path+"/"+spec.Name,
					fmt.Errorf("mandatory attribute missing from prior registration"))
			}
			if cur != spec.Default {
				return edxml.NewError(edxml.KindSchemaInconsistency, path+"/"+spec.Name,
					fmt.Errorf("new optional attribute must equal default %q", spec.Default))
			}
		case hadPrev && !hasCur:
			if spec.Mandatory {
				return edxml.NewError(edxml.KindSchemaInconsistency, path+"/"+spec.Name,
					fmt.Errorf("mandatory attribute missing from new registration"))
			}
			if prev != spec.Default {
				return edxml.NewError(edxml.KindSchemaInconsistency, path+"/"+spec.Name,
					fmt.Errorf("removed attribute's previous value %q was not the default", prev))
			}
		}
	}
	return nil
}

var nameRE = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_.-]{0,63}$`)
var dateRE = regexp.MustCompile(`^[0-9]{8}$`)
var mergeRE = regexp.MustCompile(`^(drop|add|replace|min|max|match)$`)
var relationTypeRE = regexp.MustCompile(`^(intra|inter|parent|child|other):[a-zA-Z0-9_-]+$`)

// Grammars, one per entity kind.
var (
	ObjectTypeGrammar = &EntityGrammar{
		Kind: "objecttype",
		Attrs: []AttrSpec{
			{Name: "datatype", Mandatory: true, MaxLen: 255},
			{Name: "display-name", Mandatory: true, MaxLen: 64},
			{Name: "description", Mandatory: true, MaxLen: 128},
			{Name: "fuzzy-matching", Mandatory: false, MaxLen: 64, Default: ""},
			{Name: "compress", Mandatory: false, MaxLen: 5, Pattern: regexp.MustCompile(`^(true|false)$`), Default: "false"},
			{Name: "enp", Mandatory: false, MaxLen: 4, Pattern: regexp.MustCompile(`^[0-9]+$`), Default: "0"},
			{Name: "regexp", Mandatory: false, MaxLen: 1024, Default: `[\s\S]*`},
		},
	}

	PropertyGrammar = &EntityGrammar{
		Kind: "property",
		Attrs: []AttrSpec{
			{Name: "description", Mandatory: true, MaxLen: 128},
			{Name: "similar", Mandatory: false, MaxLen: 128, Default: ""},
			{Name: "object-type", Mandatory: true, MaxLen: 255, Pattern: nameRE},
			{Name: "unique", Mandatory: false, MaxLen: 5, Pattern: regexp.MustCompile(`^(true|false)$`), Default: "false"},
			{Name: "merge", Mandatory: false, MaxLen: 16, Pattern: mergeRE, Default: "drop"},
			{Name: "defines-entity", Mandatory: false, MaxLen: 5, Pattern: regexp.MustCompile(`^(true|false)$`), Default: "false"},
			{Name: "entity-confidence", Mandatory: false, MaxLen: 8, Pattern: regexp.MustCompile(`^(0(\.[0-9]+)?|1(\.0+)?)$`), Default: "0"},
		},
	}

	EventTypeGrammar = &EntityGrammar{
		Kind: "eventtype",
		Attrs: []AttrSpec{
			{Name: "display-name", Mandatory: true, MaxLen: 64},
			{Name: "description", Mandatory: true, MaxLen: 128},
			{Name: "classlist", Mandatory: false, MaxLen: 128, Default: ""},
			{Name: "reporter-short", Mandatory: false, MaxLen: 128, Default: ""},
			{Name: "reporter-long", Mandatory: false, MaxLen: 4096, Default: ""},
		},
	}

	RelationGrammar = &EntityGrammar{
		Kind: "relation",
		Attrs: []AttrSpec{
			// property1/property2 are carried as dedicated AddRelation
			// parameters, not as free-form attrs, since the registry already
			// needs them resolved to validate placement on the event type.
			{Name: "directed", Mandatory: false, MaxLen: 5, Pattern: regexp.MustCompile(`^(true|false)$`), Default: "false"},
			{Name: "description", Mandatory: true, MaxLen: 128},
			{Name: "type", Mandatory: true, MaxLen: 64, Pattern: relationTypeRE},
			{Name: "confidence", Mandatory: false, MaxLen: 8, Pattern: regexp.MustCompile(`^(0(\.[0-9]+)?|1(\.0+)?)$`), Default: "0"},
		},
	}

	SourceGrammar = &EntityGrammar{
		Kind: "source",
		Attrs: []AttrSpec{
			{Name: "source-id", Mandatory: true, MaxLen: 16, Pattern: regexp.MustCompile(`^[0-9]+$`)},
			{Name: "date-acquired", Mandatory: true, MaxLen: 8, Pattern: dateRE},
			{Name: "description", Mandatory: true, MaxLen: 128},
		},
	}

	ParentGrammar = &EntityGrammar{
		Kind: "parent",
		Attrs: []AttrSpec{
			{Name: "eventtype", Mandatory: true, MaxLen: 255, Pattern: nameRE},
			{Name: "propertymap", Mandatory: true, MaxLen: 4096},
		},
	}
)
