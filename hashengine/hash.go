// Package hashengine computes EDXML sticky hashes: deterministic SHA-1
// fingerprints of an event used as a deduplication and merge key.
//
// Two variants are supported: v2 (legacy) and v3 (URL-salted). Pooled
// scratch slices and a pooled bytes.Buffer avoid reallocating per event
// in a hot streaming path.
package hashengine

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	"github.com/dtakken/edxml-sdk/schema"
	"github.com/dtakken/edxml-sdk/typesystem"
)

// Variant selects the hash preimage construction.
type Variant int

const (
	V2 Variant = iota
	V3
)

var stringSlicePool = sync.Pool{
	New: func() any { s := make([]string, 0, 16); return &s },
}

func getStringSlice() *[]string {
	s := stringSlicePool.Get().(*[]string)
	*s = (*s)[:0]
	return s
}

func putStringSlice(s *[]string) {
	*s = (*s)[:0]
	stringSlicePool.Put(s)
}

var bufPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

func getBuffer() *bytes.Buffer {
	b := bufPool.Get().(*bytes.Buffer)
	b.Reset()
	return b
}

func putBuffer(b *bytes.Buffer) {
	b.Reset()
	bufPool.Put(b)
}

// Objects is the normalized (property -> set of values) representation
// the hash engine consumes; it is the same shape edxml/merge operates on.
type Objects map[string]map[string]struct{}

// Compute returns the sticky hash of an event.
//
//   - eventType:  the event's event type, used to decide uniqueness and
//     which properties to skip.
//   - sourceURL:  required for v3, ignored for v2.
//   - objects:    normalized property -> value-set map.
//   - content:    the event's opaque content (ignored when unique).
func Compute(variant Variant, et *schema.EventType, reg *schema.Registry, sourceURL string, objects Objects, content string) (string, error) {
	set := getStringSlice()
	defer putStringSlice(set)

	for property, values := range objects {
		if et.Unique && !et.UniqueProperties[property] {
			// The skip-non-unique-property rule applies only when the
			// event type itself is unique.
			continue
		}
		prop, ok := et.Property(property)
		if !ok {
			continue
		}
		ot, ok := reg.ObjectType(prop.ObjectTypeName)
		if !ok {
			continue
		}
		if ot.DataType.Family == typesystem.FamilyNumber && ot.DataType.ExcludedFromHashing() {
			continue
		}
		for value := range values {
			*set = append(*set, property+":"+value)
		}
	}
	sort.Strings(*set)

	buf := getBuffer()
	defer putBuffer(buf)

	switch variant {
	case V2:
		buf.WriteString(et.Name)
		buf.WriteByte('\n')
		writeJoined(buf, *set)
		if !et.Unique {
			buf.WriteByte('\n')
			buf.WriteString(content)
		}
	case V3:
		buf.WriteString(sourceURL)
		buf.WriteByte('\n')
		buf.WriteString(et.Name)
		buf.WriteByte('\n')
		writeJoined(buf, *set)
		if !et.Unique {
			buf.WriteByte('\n')
			buf.WriteString(content)
		}
	default:
		return "", fmt.Errorf("unknown hash variant %d", variant)
	}

	sum := sha1.Sum(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}

func writeJoined(buf *bytes.Buffer, parts []string) {
	for i, p := range parts {
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(p)
	}
}
