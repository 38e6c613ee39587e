package stream

import (
	"encoding/xml"
	"io"
	"sort"

	"github.com/dtakken/edxml-sdk/merge"
)

// XMLWriter is the default Writer: it emits a
// root <events> element containing the pre-rendered definitions
// section followed by <eventgroups>, writing through a streaming
// xml.Encoder so memory stays proportional to one open group.
type XMLWriter struct {
	out          io.Writer
	enc          *xml.Encoder
	rootOpen     bool
	groupsOpen   bool
	currentGroup bool
	closed       bool
}

// NewXMLWriter creates a Writer over w.
func NewXMLWriter(w io.Writer) *XMLWriter {
	return &XMLWriter{out: w, enc: xml.NewEncoder(w)}
}

func (w *XMLWriter) openRoot() error {
	if w.rootOpen {
		return nil
	}
	if err := w.enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "events"}}); err != nil {
		return err
	}
	w.rootOpen = true
	return nil
}

// AddXMLDefinitions writes the pre-rendered <definitions> section
// verbatim (it is produced by edxml/schemaemit, not re-escaped here).
func (w *XMLWriter) AddXMLDefinitions(data []byte) error {
	if err := w.openRoot(); err != nil {
		return err
	}
	if err := w.enc.Flush(); err != nil {
		return err
	}
	_, err := w.out.Write(data)
	return err
}

func (w *XMLWriter) OpenEventGroups() error {
	if err := w.openRoot(); err != nil {
		return err
	}
	if w.groupsOpen {
		return nil
	}
	if err := w.enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "eventgroups"}}); err != nil {
		return err
	}
	w.groupsOpen = true
	return nil
}

func (w *XMLWriter) OpenEventGroup(eventType, sourceID string) error {
	start := xml.StartElement{
		Name: xml.Name{Local: "eventgroup"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "event-type"}, Value: eventType},
			{Name: xml.Name{Local: "source-id"}, Value: sourceID},
		},
	}
	if err := w.enc.EncodeToken(start); err != nil {
		return err
	}
	w.currentGroup = true
	return nil
}

// AddEvent writes one <event> element: one <object> per (property,
// value) pair in deterministic property-then-value order, an optional
// <content>, and an optional <parents> listing hashlinks.
func (w *XMLWriter) AddEvent(objects merge.Objects, content string, parents []string) error {
	if err := w.enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "event"}}); err != nil {
		return err
	}

	properties := make([]string, 0, len(objects))
	for p := range objects {
		properties = append(properties, p)
	}
	sort.Strings(properties)
	for _, p := range properties {
		values := make([]string, 0, len(objects[p]))
		for v := range objects[p] {
			values = append(values, v)
		}
		sort.Strings(values)
		for _, v := range values {
			obj := xml.StartElement{
				Name: xml.Name{Local: "object"},
				Attr: []xml.Attr{
					{Name: xml.Name{Local: "property"}, Value: p},
					{Name: xml.Name{Local: "value"}, Value: v},
				},
			}
			if err := w.enc.EncodeToken(obj); err != nil {
				return err
			}
			if err := w.enc.EncodeToken(xml.EndElement{Name: obj.Name}); err != nil {
				return err
			}
		}
	}

	if content != "" {
		start := xml.StartElement{Name: xml.Name{Local: "content"}}
		if err := w.enc.EncodeToken(start); err != nil {
			return err
		}
		if err := w.enc.EncodeToken(xml.CharData(content)); err != nil {
			return err
		}
		if err := w.enc.EncodeToken(xml.EndElement{Name: start.Name}); err != nil {
			return err
		}
	}

	if len(parents) > 0 {
		start := xml.StartElement{Name: xml.Name{Local: "parents"}}
		if err := w.enc.EncodeToken(start); err != nil {
			return err
		}
		for _, hash := range parents {
			pstart := xml.StartElement{
				Name: xml.Name{Local: "parent"},
				Attr: []xml.Attr{{Name: xml.Name{Local: "hash"}, Value: hash}},
			}
			if err := w.enc.EncodeToken(pstart); err != nil {
				return err
			}
			if err := w.enc.EncodeToken(xml.EndElement{Name: pstart.Name}); err != nil {
				return err
			}
		}
		if err := w.enc.EncodeToken(xml.EndElement{Name: start.Name}); err != nil {
			return err
		}
	}

	return w.enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "event"}})
}

func (w *XMLWriter) CloseEventGroup() error {
	w.currentGroup = false
	return w.enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "eventgroup"}})
}

func (w *XMLWriter) CloseEventGroups() error {
	if w.closed {
		return nil
	}
	if err := w.OpenEventGroups(); err != nil {
		return err
	}
	if err := w.enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "eventgroups"}}); err != nil {
		return err
	}
	w.groupsOpen = false
	if err := w.enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "events"}}); err != nil {
		return err
	}
	w.closed = true
	return w.enc.Flush()
}
