// Package typesystem parses EDXML data-type descriptors and validates and
// normalizes object values against them.
//
// A descriptor is a colon-separated token such as "number:decimal:10:4" or
// "string:255:ci:u". Parsing is total and cheap; normalization is total
// for every value that validates, and is the canonical form the hash
// engine (edxml/hashengine) relies on for bit-stable hashing.
package typesystem

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/dtakken/edxml-sdk"
)

// Family identifies the top-level shape of a descriptor.
type Family string

const (
	FamilyBoolean   Family = "boolean"
	FamilyTimestamp Family = "timestamp"
	FamilyIP        Family = "ip"
	FamilyHashlink  Family = "hashlink"
	FamilyGeoPoint  Family = "geo:point"
	FamilyEnum      Family = "enum"
	FamilyNumber    Family = "number"
	FamilyString    Family = "string"
	FamilyBinstring Family = "binstring"
)

// NumberKind distinguishes the number sub-forms.
type NumberKind string

const (
	NumberTinyInt  NumberKind = "tinyint"
	NumberSmallInt NumberKind = "smallint"
	NumberMediumInt NumberKind = "mediumint"
	NumberInt      NumberKind = "int"
	NumberBigInt   NumberKind = "bigint"
	NumberFloat    NumberKind = "float"
	NumberDouble   NumberKind = "double"
	NumberDecimal  NumberKind = "decimal"
	NumberHex      NumberKind = "hex"
)

var integerBitWidth = map[NumberKind]int{
	NumberTinyInt:   8,
	NumberSmallInt:  16,
	NumberMediumInt: 24,
	NumberInt:       32,
	NumberBigInt:    64,
}

// Descriptor is a parsed data-type descriptor.
type Descriptor struct {
	Family Family

	// number:*
	NumberKind NumberKind
	Signed     bool
	Total      int // number:decimal TOTAL
	Fraction   int // number:decimal FRACTION
	HexLen     int
	HexGroup   int
	HexSep     byte
	HasHexSep  bool

	// string / binstring
	MaxLen       int // 0 = unbounded
	CaseSensitive bool
	AllowUnicode  bool // "u" flag
	Raw           bool // binstring "r" flag

	// enum
	EnumValues []string

	raw string // original descriptor text, for error messages
}

// String returns the descriptor's original text.
func (d *Descriptor) String() string { return d.raw }

// ExcludedFromHashing reports whether values of this type are skipped by
// the hash engine: number:float and number:double.
func (d *Descriptor) ExcludedFromHashing() bool {
	return d.Family == FamilyNumber && (d.NumberKind == NumberFloat || d.NumberKind == NumberDouble)
}

// Parse parses a colon-separated data-type descriptor. It returns
// *edxml.Error with Kind edxml.KindInvalidDataType on malformed input.
func Parse(s string) (*Descriptor, error) {
	if s == "" {
		return nil, edxml.NewError(edxml.KindInvalidDataType, "datatype", fmt.Errorf("empty descriptor"))
	}
	parts := strings.Split(s, ":")
	d := &Descriptor{raw: s}

	switch parts[0] {
	case "boolean":
		if len(parts) != 1 {
			return nil, invalidDataType(s, "boolean takes no arguments")
		}
		d.Family = FamilyBoolean
	case "timestamp":
		if len(parts) != 1 {
			return nil, invalidDataType(s, "timestamp takes no arguments")
		}
		d.Family = FamilyTimestamp
	case "ip":
		if len(parts) != 1 {
			return nil, invalidDataType(s, "ip takes no arguments")
		}
		d.Family = FamilyIP
	case "hashlink":
		if len(parts) != 1 {
			return nil, invalidDataType(s, "hashlink takes no arguments")
		}
		d.Family = FamilyHashlink
	case "geo":
		if len(parts) != 2 || parts[1] != "point" {
			return nil, invalidDataType(s, "expected geo:point")
		}
		d.Family = FamilyGeoPoint
	case "enum":
		if len(parts) < 2 {
			return nil, invalidDataType(s, "enum requires at least one value")
		}
		d.Family = FamilyEnum
		d.EnumValues = parts[1:]
	case "number":
		if err := parseNumber(d, parts, s); err != nil {
			return nil, err
		}
	case "string":
		if err := parseString(d, parts, s); err != nil {
			return nil, err
		}
	case "binstring":
		if err := parseBinstring(d, parts, s); err != nil {
			return nil, err
		}
	default:
		return nil, invalidDataType(s, "unrecognized family "+parts[0])
	}
	return d, nil
}

func parseNumber(d *Descriptor, parts []string, s string) error {
	if len(parts) < 2 {
		return invalidDataType(s, "number requires a kind")
	}
	d.Family = FamilyNumber
	kind := NumberKind(parts[1])
	switch kind {
	case NumberTinyInt, NumberSmallInt, NumberMediumInt, NumberInt, NumberBigInt:
		d.NumberKind = kind
		rest := parts[2:]
		if len(rest) > 1 {
			return invalidDataType(s, "too many arguments")
		}
		if len(rest) == 1 {
			if rest[0] != "signed" {
				return invalidDataType(s, "expected 'signed'")
			}
			d.Signed = true
		}
	case NumberFloat, NumberDouble:
		d.NumberKind = kind
		rest := parts[2:]
		if len(rest) > 1 {
			return invalidDataType(s, "too many arguments")
		}
		if len(rest) == 1 {
			if rest[0] != "signed" {
				return invalidDataType(s, "expected 'signed'")
			}
			d.Signed = true
		}
	case NumberDecimal:
		d.NumberKind = kind
		rest := parts[2:]
		if len(rest) < 2 {
			return invalidDataType(s, "decimal requires TOTAL:FRACTION")
		}
		total, err := strconv.Atoi(rest[0])
		if err != nil || total <= 0 {
			return invalidDataType(s, "invalid TOTAL")
		}
		frac, err := strconv.Atoi(rest[1])
		if err != nil || frac < 0 {
			return invalidDataType(s, "invalid FRACTION")
		}
		if frac >= total {
			return invalidDataType(s, "FRACTION must be less than TOTAL")
		}
		d.Total, d.Fraction = total, frac
		if len(rest) == 3 {
			if rest[2] != "signed" {
				return invalidDataType(s, "expected 'signed'")
			}
			d.Signed = true
		} else if len(rest) > 3 {
			return invalidDataType(s, "too many arguments")
		}
	case NumberHex:
		d.NumberKind = kind
		rest := parts[2:]
		if len(rest) < 1 {
			return invalidDataType(s, "hex requires LEN")
		}
		length, err := strconv.Atoi(rest[0])
		if err != nil || length <= 0 {
			return invalidDataType(s, "invalid LEN")
		}
		d.HexLen = length
		group := 1
		if len(rest) >= 2 {
			g, err := strconv.Atoi(rest[1])
			if err != nil || g <= 0 {
				return invalidDataType(s, "invalid GROUP")
			}
			group = g
		}
		if length%group != 0 {
			return invalidDataType(s, "LEN must be divisible by GROUP")
		}
		d.HexGroup = group
		if len(rest) >= 3 {
			if len(rest[2]) != 1 {
				return invalidDataType(s, "SEP must be a single character")
			}
			d.HexSep = rest[2][0]
			d.HasHexSep = true
		}
		if len(rest) > 3 {
			return invalidDataType(s, "too many arguments")
		}
	default:
		return invalidDataType(s, "unrecognized number kind "+parts[1])
	}
	return nil
}

func parseString(d *Descriptor, parts []string, s string) error {
	if len(parts) < 3 {
		return invalidDataType(s, "string requires LEN and cs|ci")
	}
	d.Family = FamilyString
	length, err := strconv.Atoi(parts[1])
	if err != nil || length < 0 {
		return invalidDataType(s, "invalid LEN")
	}
	d.MaxLen = length
	switch parts[2] {
	case "cs":
		d.CaseSensitive = true
	case "ci":
		d.CaseSensitive = false
	default:
		return invalidDataType(s, "expected cs or ci")
	}
	if len(parts) == 4 {
		if parts[3] != "u" {
			return invalidDataType(s, "expected 'u'")
		}
		d.AllowUnicode = true
	} else if len(parts) > 4 {
		return invalidDataType(s, "too many arguments")
	}
	return nil
}

func parseBinstring(d *Descriptor, parts []string, s string) error {
	if len(parts) < 2 {
		return invalidDataType(s, "binstring requires LEN")
	}
	d.Family = FamilyBinstring
	length, err := strconv.Atoi(parts[1])
	if err != nil || length < 0 {
		return invalidDataType(s, "invalid LEN")
	}
	d.MaxLen = length
	if len(parts) == 3 {
		if parts[2] != "r" {
			return invalidDataType(s, "expected 'r'")
		}
		d.Raw = true
	} else if len(parts) > 3 {
		return invalidDataType(s, "too many arguments")
	}
	return nil
}

// Compare orders two already-normalized values of this descriptor, for
// the min/max merge strategy. Timestamps and decimal/hex
// numbers compare by exact arbitrary-precision value; integers and
// floats compare numerically; every other family falls back to a plain
// string comparison, which is stable but only meaningful for min/max
// merges declared on an orderable type.
func (d *Descriptor) Compare(a, b string) int {
	switch d.Family {
	case FamilyTimestamp:
		return compareDecimal(a, b)
	case FamilyNumber:
		switch d.NumberKind {
		case NumberDecimal:
			return compareDecimal(a, b)
		case NumberFloat, NumberDouble:
			fa, _ := strconv.ParseFloat(a, 64)
			fb, _ := strconv.ParseFloat(b, 64)
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		default:
			na, _ := new(big.Int).SetString(a, 10)
			nb, _ := new(big.Int).SetString(b, 10)
			if na == nil || nb == nil {
				return strings.Compare(a, b)
			}
			return na.Cmp(nb)
		}
	default:
		return strings.Compare(a, b)
	}
}

func compareDecimal(a, b string) int {
	ra, okA := new(big.Rat).SetString(a)
	rb, okB := new(big.Rat).SetString(b)
	if !okA || !okB {
		return strings.Compare(a, b)
	}
	return ra.Cmp(rb)
}

func invalidDataType(descriptor, reason string) error {
	return edxml.NewError(edxml.KindInvalidDataType, descriptor, fmt.Errorf("%s", reason))
}
