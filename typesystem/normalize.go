package typesystem

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/width"

	"github.com/dtakken/edxml-sdk"
)

// ciCaser lowercases values the way the string:LEN:ci descriptor
// requires: Unicode-aware, not a byte-wise ASCII fold, so that callers
// using the "u" flag (non-Latin-1 code points) still normalize correctly.
var ciCaser = cases.Lower(language.Und)

// Normalize validates value against d and returns its canonical form.
// Normalization is total for every value that validates:
// normalize(normalize(v)) == normalize(v).
func (d *Descriptor) Normalize(value string) (string, error) {
	switch d.Family {
	case FamilyBoolean:
		return normalizeBoolean(d, value)
	case FamilyTimestamp:
		return normalizeTimestamp(d, value)
	case FamilyIP:
		return normalizeIP(d, value)
	case FamilyHashlink:
		return normalizeHashlink(d, value)
	case FamilyGeoPoint:
		return value, nil
	case FamilyEnum:
		return normalizeEnum(d, value)
	case FamilyNumber:
		return normalizeNumber(d, value)
	case FamilyString:
		return normalizeString(d, value)
	case FamilyBinstring:
		return normalizeBinstring(d, value)
	default:
		return "", invalidObjectValue(d, value, "unknown family")
	}
}

// Validate is Normalize without the result, for callers that only need a
// yes/no answer.
func (d *Descriptor) Validate(value string) error {
	_, err := d.Normalize(value)
	return err
}

func invalidObjectValue(d *Descriptor, value, reason string) error {
	return edxml.NewError(edxml.KindInvalidObjectValue, fmt.Sprintf("%s=%q", d.raw, value), fmt.Errorf("%s", reason))
}

func normalizeBoolean(d *Descriptor, value string) (string, error) {
	switch strings.ToLower(value) {
	case "true":
		return "true", nil
	case "false":
		return "false", nil
	default:
		return "", invalidObjectValue(d, value, "expected true or false")
	}
}

func normalizeTimestamp(d *Descriptor, value string) (string, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return "", invalidObjectValue(d, value, "not a decimal number")
	}
	return fmt.Sprintf("%.6f", f), nil
}

func normalizeIP(d *Descriptor, value string) (string, error) {
	octets := strings.Split(strings.TrimSpace(value), ".")
	if len(octets) != 4 {
		return "", invalidObjectValue(d, value, "expected four dotted octets")
	}
	var v4 [4]int
	for i, o := range octets {
		if o == "" || strings.Trim(o, "0123456789") != "" {
			return "", invalidObjectValue(d, value, "not an IPv4 address")
		}
		n, err := strconv.Atoi(o)
		if err != nil || n > 255 {
			return "", invalidObjectValue(d, value, "octet out of range")
		}
		v4[i] = n
	}
	return fmt.Sprintf("%d.%d.%d.%d", v4[0], v4[1], v4[2], v4[3]), nil
}

func normalizeHashlink(d *Descriptor, value string) (string, error) {
	if len(value) != 40 {
		return "", invalidObjectValue(d, value, "expected 40 hex characters")
	}
	for _, r := range value {
		if !isHexDigit(r) {
			return "", invalidObjectValue(d, value, "not a hex character")
		}
	}
	return strings.ToLower(value), nil
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func normalizeEnum(d *Descriptor, value string) (string, error) {
	for _, v := range d.EnumValues {
		if v == value {
			return value, nil
		}
	}
	return "", invalidObjectValue(d, value, "not a recognized enum value")
}

func normalizeNumber(d *Descriptor, value string) (string, error) {
	switch d.NumberKind {
	case NumberTinyInt, NumberSmallInt, NumberMediumInt, NumberInt, NumberBigInt:
		return normalizeInteger(d, value)
	case NumberFloat, NumberDouble:
		return normalizeFloat(d, value)
	case NumberDecimal:
		return normalizeDecimal(d, value)
	case NumberHex:
		return normalizeHex(d, value)
	default:
		return "", invalidObjectValue(d, value, "unknown number kind")
	}
}

func normalizeInteger(d *Descriptor, value string) (string, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return "", invalidObjectValue(d, value, "not an integer")
	}
	if !d.Signed && n.Sign() < 0 {
		return "", invalidObjectValue(d, value, "unsigned type rejects negative values")
	}
	bits := integerBitWidth[d.NumberKind]
	if bits > 0 {
		var lo, hi big.Int
		if d.Signed {
			hi.Lsh(big.NewInt(1), uint(bits-1))
			lo.Neg(&hi)
			hi.Sub(&hi, big.NewInt(1))
		} else {
			hi.Lsh(big.NewInt(1), uint(bits))
			hi.Sub(&hi, big.NewInt(1))
		}
		if n.Cmp(&lo) < 0 || n.Cmp(&hi) > 0 {
			return "", invalidObjectValue(d, value, "out of range for "+string(d.NumberKind))
		}
	}
	return n.String(), nil
}

func normalizeFloat(d *Descriptor, value string) (string, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return "", invalidObjectValue(d, value, "not a floating point number")
	}
	if !d.Signed && f < 0 {
		return "", invalidObjectValue(d, value, "unsigned type rejects negative values")
	}
	return fmt.Sprintf("%f", f), nil
}

// normalizeDecimal implements number:decimal:TOTAL:FRACTION[:signed]
// using math/big so that normalization is exact: no IEEE-754 rounding
// can make two textually-different-but-equal decimals hash differently.
func normalizeDecimal(d *Descriptor, value string) (string, error) {
	s := strings.TrimSpace(value)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	if neg && !d.Signed {
		return "", invalidObjectValue(d, value, "unsigned type rejects negative values")
	}
	intPart, fracPart, hasDot := strings.Cut(s, ".")
	if strings.Contains(fracPart, ".") {
		return "", invalidObjectValue(d, value, "malformed decimal")
	}
	if intPart == "" && fracPart == "" {
		return "", invalidObjectValue(d, value, "empty decimal")
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if r < '0' || r > '9' {
			return "", invalidObjectValue(d, value, "non-digit in decimal")
		}
	}
	_ = hasDot
	if len(fracPart) > d.Fraction {
		// Round to Fraction digits using big.Rat for exactness.
		rat, ok := new(big.Rat).SetString(intPart + "." + fracPart)
		if !ok {
			return "", invalidObjectValue(d, value, "malformed decimal")
		}
		scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(d.Fraction)), nil)
		scaled := new(big.Rat).Mul(rat, new(big.Rat).SetInt(scale))
		rounded := new(big.Int)
		num := scaled.Num()
		den := scaled.Denom()
		q, r := new(big.Int).QuoRem(num, den, new(big.Int))
		twiceR := new(big.Int).Mul(r, big.NewInt(2))
		if twiceR.CmpAbs(den) >= 0 {
			q.Add(q, big.NewInt(1))
		}
		rounded = q
		intPart, fracPart = splitScaled(rounded, d.Fraction)
	} else {
		fracPart = fracPart + strings.Repeat("0", d.Fraction-len(fracPart))
	}
	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		intPart = "0"
	}
	totalDigits := len(intPart) + len(fracPart)
	if intPart == "0" {
		totalDigits = len(fracPart)
		if totalDigits < 1 {
			totalDigits = 1
		}
	}
	if totalDigits > d.Total {
		return "", invalidObjectValue(d, value, "exceeds TOTAL digits")
	}
	out := intPart
	if d.Fraction > 0 {
		out = out + "." + fracPart
	}
	if neg && out != "0" && !allZero(out) {
		out = "-" + out
	}
	return out, nil
}

func allZero(s string) bool {
	for _, r := range s {
		if r != '0' && r != '.' {
			return false
		}
	}
	return true
}

func splitScaled(n *big.Int, fraction int) (string, string) {
	s := n.String()
	if len(s) <= fraction {
		s = strings.Repeat("0", fraction-len(s)+1) + s
	}
	cut := len(s) - fraction
	return s[:cut], s[cut:]
}

// normalizeHex implements number:hex:LEN[:GROUP:SEP].
func normalizeHex(d *Descriptor, value string) (string, error) {
	s := value
	if d.HasHexSep {
		s = strings.ReplaceAll(s, string(d.HexSep), "")
	}
	if len(s) != d.HexLen {
		return "", invalidObjectValue(d, value, "wrong hex length")
	}
	for _, r := range s {
		if !isHexDigit(r) {
			return "", invalidObjectValue(d, value, "not a hex character")
		}
	}
	return strings.ToLower(s), nil
}

// normalizeString implements string:LEN:{cs|ci}[:u].
func normalizeString(d *Descriptor, value string) (string, error) {
	folded := width.Fold.String(value)
	runes := []rune(folded)
	if !d.AllowUnicode {
		for _, r := range runes {
			if r > 0xFF {
				return "", invalidObjectValue(d, value, "code point outside Latin-1 without 'u' flag")
			}
		}
	}
	if d.MaxLen > 0 && len(runes) > d.MaxLen {
		return "", invalidObjectValue(d, value, "exceeds maximum length")
	}
	if !d.CaseSensitive {
		folded = ciCaser.String(folded)
	}
	return folded, nil
}

// normalizeBinstring implements binstring:LEN[:r].
func normalizeBinstring(d *Descriptor, value string) (string, error) {
	if d.MaxLen > 0 && len(value) > d.MaxLen {
		return "", invalidObjectValue(d, value, "exceeds maximum length")
	}
	return value, nil
}
