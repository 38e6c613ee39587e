// Package reporter validates EDXML reporter strings against an event
// type's property set and the formatter mini-language.
//
// Reporter strings are a tiny template language: [[property]] references
// a property by name, and [[FORMATTER:args[:opts…]]] applies one of a
// fixed set of type-checked formatters. This package only validates —
// it does not render reporter strings to human text.
//
// The formatter table is a small map from a code/name to the shape of
// arguments it expects, walked against a split input string.
package reporter

import (
	"fmt"
	"strings"

	"github.com/dtakken/edxml-sdk"
	"github.com/dtakken/edxml-sdk/schema"
	"github.com/dtakken/edxml-sdk/typesystem"
)

// PropertyKind constrains which properties a formatter accepts.
type PropertyKind int

const (
	KindAny PropertyKind = iota
	KindTimestamp
	KindBoolean
)

// FormatterSpec describes one recognized formatter.
type FormatterSpec struct {
	Name          string
	PropertyCount int // number of property arguments
	PropertyKind  PropertyKind
	LiteralCount  int // number of trailing literal (non-property) options
}

// Formatters is the table of recognized reporter-string formatters.
var Formatters = map[string]FormatterSpec{
	"TIMESPAN":              {Name: "TIMESPAN", PropertyCount: 2, PropertyKind: KindTimestamp},
	"DURATION":              {Name: "DURATION", PropertyCount: 2, PropertyKind: KindTimestamp},
	"DATE":                  {Name: "DATE", PropertyCount: 1, PropertyKind: KindTimestamp},
	"DATETIME":              {Name: "DATETIME", PropertyCount: 1, PropertyKind: KindTimestamp},
	"FULLDATETIME":          {Name: "FULLDATETIME", PropertyCount: 1, PropertyKind: KindTimestamp},
	"WEEK":                  {Name: "WEEK", PropertyCount: 1, PropertyKind: KindTimestamp},
	"MONTH":                 {Name: "MONTH", PropertyCount: 1, PropertyKind: KindTimestamp},
	"YEAR":                  {Name: "YEAR", PropertyCount: 1, PropertyKind: KindTimestamp},
	"LATITUDE":              {Name: "LATITUDE", PropertyCount: 1, PropertyKind: KindAny},
	"LONGITUDE":             {Name: "LONGITUDE", PropertyCount: 1, PropertyKind: KindAny},
	"BYTECOUNT":             {Name: "BYTECOUNT", PropertyCount: 1, PropertyKind: KindAny},
	"COUNTRYCODE":           {Name: "COUNTRYCODE", PropertyCount: 1, PropertyKind: KindAny},
	"FILESERVER":            {Name: "FILESERVER", PropertyCount: 1, PropertyKind: KindAny},
	"BOOLEAN_ON_OFF":        {Name: "BOOLEAN_ON_OFF", PropertyCount: 1, PropertyKind: KindBoolean},
	"BOOLEAN_IS_ISNOT":      {Name: "BOOLEAN_IS_ISNOT", PropertyCount: 1, PropertyKind: KindBoolean},
	"BOOLEAN_STRINGCHOICE":  {Name: "BOOLEAN_STRINGCHOICE", PropertyCount: 1, PropertyKind: KindBoolean, LiteralCount: 2},
	"CURRENCY":              {Name: "CURRENCY", PropertyCount: 1, PropertyKind: KindAny, LiteralCount: 1},
	"EMPTY":                 {Name: "EMPTY", PropertyCount: 1, PropertyKind: KindAny, LiteralCount: 1},
}

// Validate checks reporterString against et's properties and the
// formatter grammar. When checkCompleteness is
// true, a warning is emitted through sink for every property of et that
// the string never references.
func Validate(reg *schema.Registry, et *schema.EventType, reporterString string, checkCompleteness bool, sink edxml.WarningSink) error {
	if err := checkBracketBalance(reporterString); err != nil {
		return err
	}

	placeholders, err := extractPlaceholders(reporterString)
	if err != nil {
		return err
	}

	referenced := make(map[string]bool)
	for _, ph := range placeholders {
		name, err := validatePlaceholder(reg, et, ph)
		if err != nil {
			return err
		}
		if name != "" {
			referenced[name] = true
		}
	}

	if checkCompleteness && sink != nil {
		for _, p := range et.Properties {
			if !referenced[p.Name] {
				sink.Warn(edxml.Warning{
					Path:    "eventtype/" + et.Name + "/property/" + p.Name,
					Message: "property is not referenced by the reporter string",
				})
			}
		}
	}
	return nil
}

// checkBracketBalance checks that reporter strings
// must have balanced double-square-bracket placeholders, with depth
// never going negative and ending at zero.
func checkBracketBalance(s string) error {
	depth := 0
	for i := 0; i < len(s); i++ {
		if i+1 < len(s) && s[i] == '[' && s[i+1] == '[' {
			depth++
			i++
			continue
		}
		if i+1 < len(s) && s[i] == ']' && s[i+1] == ']' {
			depth--
			if depth < 0 {
				return reporterErr("", "unbalanced closing bracket")
			}
			i++
			continue
		}
	}
	if depth != 0 {
		return reporterErr("", "unbalanced opening bracket")
	}
	return nil
}

// extractPlaceholders returns the raw contents of every [[...]] placeholder.
func extractPlaceholders(s string) ([]string, error) {
	var out []string
	for {
		start := strings.Index(s, "[[")
		if start == -1 {
			break
		}
		end := strings.Index(s[start:], "]]")
		if end == -1 {
			return nil, reporterErr("", "unterminated placeholder")
		}
		out = append(out, s[start+2:start+end])
		s = s[start+end+2:]
	}
	return out, nil
}

// validatePlaceholder validates one placeholder's contents and returns
// the property name it references directly (for plain [[name]]
// placeholders; formatter placeholders return "").
func validatePlaceholder(reg *schema.Registry, et *schema.EventType, content string) (string, error) {
	parts := strings.Split(content, ":")
	first := parts[0]

	spec, isFormatter := Formatters[first]
	if !isFormatter {
		if len(parts) != 1 {
			return "", reporterErr(content, "unknown formatter "+first)
		}
		if _, ok := et.Property(first); !ok {
			return "", reporterErr(content, "unknown property "+first)
		}
		return first, nil
	}

	rest := parts[1:]
	if len(rest) == 0 {
		return "", reporterErr(content, "formatter "+first+" requires arguments")
	}

	var props []string
	if spec.PropertyCount > 0 {
		if len(rest) < 1 {
			return "", reporterErr(content, "missing property arguments")
		}
		props = strings.Split(rest[0], ",")
		if len(props) != spec.PropertyCount {
			return "", reporterErr(content, fmt.Sprintf("formatter %s requires %d properties", first, spec.PropertyCount))
		}
		rest = rest[1:]
	}
	if len(rest) != spec.LiteralCount {
		return "", reporterErr(content, fmt.Sprintf("formatter %s requires %d literal option(s)", first, spec.LiteralCount))
	}

	for _, p := range props {
		prop, ok := et.Property(p)
		if !ok {
			return "", reporterErr(content, "unknown property "+p)
		}
		if spec.PropertyKind == KindAny {
			continue
		}
		ot, ok := reg.ObjectType(prop.ObjectTypeName)
		if !ok {
			return "", reporterErr(content, "property "+p+" references unknown object type")
		}
		switch spec.PropertyKind {
		case KindTimestamp:
			if ot.DataType.Family != typesystem.FamilyTimestamp {
				return "", reporterErr(content, "formatter "+first+" requires a timestamp property, got "+p)
			}
		case KindBoolean:
			if ot.DataType.Family != typesystem.FamilyBoolean {
				return "", reporterErr(content, "formatter "+first+" requires a boolean property, got "+p)
			}
		}
	}
	return "", nil
}

func reporterErr(path, reason string) error {
	return edxml.NewError(edxml.KindReporterError, path, fmt.Errorf("%s", reason))
}
