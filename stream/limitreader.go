package stream

import (
	"encoding/xml"
	"fmt"
	"sync/atomic"
)

// Limits bounds the XML token stream the processor will accept. All
// fields are guarded by atomics so a running processor's limits can be
// tightened from another goroutine (e.g. an admin endpoint).
type Limits struct {
	maxElementDepth atomic.Int64
	maxElementCount atomic.Int64
	maxTokenLen     atomic.Int64
	maxValueLen     atomic.Int64
}

// DefaultLimits returns conservative limits suitable for untrusted input.
func DefaultLimits() *Limits {
	l := &Limits{}
	l.maxElementDepth.Store(64)
	l.maxElementCount.Store(1_000_000)
	l.maxTokenLen.Store(4096)
	l.maxValueLen.Store(1 << 20)
	return l
}

func (l *Limits) SetMaxElementDepth(n int64) { l.maxElementDepth.Store(n) }
func (l *Limits) SetMaxElementCount(n int64) { l.maxElementCount.Store(n) }
func (l *Limits) SetMaxTokenLen(n int64)     { l.maxTokenLen.Store(n) }
func (l *Limits) SetMaxValueLen(n int64)     { l.maxValueLen.Store(n) }

// limitTokenReader wraps an xml.Decoder and enforces the configured
// limits while streaming tokens, rejecting documents designed to
// exhaust memory via deep nesting, element-count floods, or oversized
// attribute/character data.
type limitTokenReader struct {
	dec    *xml.Decoder
	limits *Limits
	depth  int
	count  int
}

func (l *limitTokenReader) Token() (xml.Token, error) {
	off := l.dec.InputOffset()
	tok, err := l.dec.RawToken()
	if err != nil {
		return tok, err
	}
	if l.dec.InputOffset()-off > l.limits.maxTokenLen.Load() {
		return nil, fmt.Errorf("stream: token exceeds maximum length")
	}
	switch t := tok.(type) {
	case xml.StartElement:
		l.depth++
		l.count++
		if int64(l.depth) > l.limits.maxElementDepth.Load() {
			return nil, fmt.Errorf("stream: element depth exceeds limit")
		}
		if int64(l.count) > l.limits.maxElementCount.Load() {
			return nil, fmt.Errorf("stream: element count exceeds limit")
		}
		for _, a := range t.Attr {
			if int64(len(a.Value)) > l.limits.maxValueLen.Load() {
				return nil, fmt.Errorf("stream: attribute value exceeds maximum length")
			}
		}
	case xml.EndElement:
		if l.depth > 0 {
			l.depth--
		}
	case xml.CharData:
		if int64(len(t)) > l.limits.maxValueLen.Load() {
			return nil, fmt.Errorf("stream: character data exceeds maximum length")
		}
	}
	return tok, nil
}

// newLimitedDecoder wraps dec so that Token() enforces limits.
func newLimitedDecoder(dec *xml.Decoder, limits *Limits) *xml.Decoder {
	if limits == nil {
		limits = DefaultLimits()
	}
	return xml.NewTokenDecoder(&limitTokenReader{dec: dec, limits: limits})
}
