package stream

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dtakken/edxml-sdk"
	"github.com/dtakken/edxml-sdk/hashengine"
	"github.com/dtakken/edxml-sdk/schema"
)

// Processor drives the XML decoding loop: it parses the
// <definitions> section into a schema.Registry, hands the finished
// registry and re-serialized schema bytes to the writer and handler,
// then parses <eventgroups> and dispatches one ProcessEvent call per
// <event>, finally calling EndOfStream.
//
// The emitDefinitions function, supplied by the caller, re-serializes the registry
// once finalized (edxml/schemaemit); Processor does not
// import schemaemit directly to avoid a dependency cycle with cmd/
// wiring choices, so callers pass the emit function in.
type Processor struct {
	reg             *schema.Registry
	writer          Writer
	handler         Handler
	variant         hashengine.Variant
	limits          *Limits
	definitionsFunc func(*schema.Registry) ([]byte, error)
}

// NewProcessor creates a Processor. emitDefinitions renders the
// finalized registry back to EDXML definitions bytes.
func NewProcessor(reg *schema.Registry, writer Writer, handler Handler, variant hashengine.Variant, limits *Limits, emitDefinitions func(*schema.Registry) ([]byte, error)) *Processor {
	return &Processor{
		reg:             reg,
		writer:          writer,
		handler:         handler,
		variant:         variant,
		limits:          limits,
		definitionsFunc: emitDefinitions,
	}
}

// Run parses r to completion, driving the registry and handler. It
// honors ctx cancellation at each event boundary.
func (p *Processor) Run(ctx context.Context, r io.Reader) error {
	dec := newLimitedDecoder(xml.NewDecoder(r), p.limits)

	var (
		inDefinitions   bool
		currentEventTyp string
		groupEventType  string
		groupSourceURL  string
		event           Event
		charBuf         strings.Builder
		inContent       bool
	)

	for {
		if err := ctx.Err(); err != nil {
			// Flush and close before reporting the interruption, same as
			// a clean end of stream.
			_ = p.handler.EndOfStream(ctx)
			return edxml.NewError(edxml.KindProcessingInterrupted, "stream", err)
		}
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "definitions":
				inDefinitions = true
			case "objecttype":
				name, attrs := splitAttrs(t.Attr, "name")
				if err := p.reg.AddObjectType(ctx, name, attrs); err != nil {
					return err
				}
			case "source":
				url, attrs := splitAttrs(t.Attr, "url")
				if err := p.reg.AddSource(ctx, url, attrs); err != nil {
					return err
				}
			case "eventtype":
				name, attrs := splitAttrs(t.Attr, "name")
				if err := p.reg.AddEventType(ctx, name, attrs); err != nil {
					return err
				}
				currentEventTyp = name
			case "property":
				name, attrs := splitAttrs(t.Attr, "name")
				if err := p.reg.AddProperty(ctx, currentEventTyp, name, attrs); err != nil {
					return err
				}
			case "relation":
				attrs := attrMap(t.Attr)
				p1 := attrs["property1"]
				p2 := attrs["property2"]
				delete(attrs, "property1")
				delete(attrs, "property2")
				if err := p.reg.AddRelation(ctx, currentEventTyp, p1, p2, attrs); err != nil {
					return err
				}
			case "parent":
				if inDefinitions {
					attrs := attrMap(t.Attr)
					parentType := attrs["eventtype"]
					description := attrs["description"]
					propertyMap := parsePropertyMap(attrs["propertymap"])
					if err := p.reg.SetEventTypeParent(ctx, currentEventTyp, parentType, propertyMap, description); err != nil {
						return err
					}
				} else {
					attrs := attrMap(t.Attr)
					event.Parents = append(event.Parents, attrs["hash"])
				}
			case "eventgroup":
				attrs := attrMap(t.Attr)
				groupEventType = attrs["event-type"]
				id, err := strconv.Atoi(attrs["source-id"])
				if err != nil {
					return fmt.Errorf("stream: invalid source-id %q", attrs["source-id"])
				}
				url, err := p.reg.SourceURLForID(id)
				if err != nil {
					return err
				}
				groupSourceURL = url
			case "event":
				event = Event{EventType: groupEventType, SourceURL: groupSourceURL, Objects: make(map[string]map[string]struct{})}
			case "object":
				attrs := attrMap(t.Attr)
				property := attrs["property"]
				value := attrs["value"]
				normalized, err := p.normalizeObjectValue(groupEventType, property, value)
				if err != nil {
					return err
				}
				if event.Objects[property] == nil {
					event.Objects[property] = make(map[string]struct{})
				}
				event.Objects[property][normalized] = struct{}{}
			case "content":
				inContent = true
				charBuf.Reset()
			}
		case xml.CharData:
			if inContent {
				charBuf.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "definitions":
				inDefinitions = false
				if err := p.reg.Finalize(); err != nil {
					return err
				}
				data, err := p.definitionsFunc(p.reg)
				if err != nil {
					return err
				}
				if err := p.writer.AddXMLDefinitions(data); err != nil {
					return err
				}
				if err := p.handler.DefinitionsLoaded(ctx, p.reg); err != nil {
					return err
				}
			case "content":
				inContent = false
				event.Content = charBuf.String()
			case "event":
				if err := p.handler.ProcessEvent(ctx, event); err != nil {
					return err
				}
			}
		}
	}
	return p.handler.EndOfStream(ctx)
}

func (p *Processor) normalizeObjectValue(eventType, property, value string) (string, error) {
	objectTypeName, err := p.reg.PropertyObjectType(eventType, property)
	if err != nil {
		return "", err
	}
	ot, ok := p.reg.ObjectType(objectTypeName)
	if !ok {
		return "", fmt.Errorf("stream: unknown object type %s", objectTypeName)
	}
	return ot.DataType.Normalize(value)
}

func attrMap(attrs []xml.Attr) map[string]string {
	out := make(map[string]string, len(attrs))
	for _, a := range attrs {
		out[a.Name.Local] = a.Value
	}
	return out
}

// splitAttrs extracts key from attrs and returns its value alongside a
// map of every other attribute.
func splitAttrs(attrs []xml.Attr, key string) (string, map[string]string) {
	out := make(map[string]string, len(attrs))
	var value string
	for _, a := range attrs {
		if a.Name.Local == key {
			value = a.Value
			continue
		}
		out[a.Name.Local] = a.Value
	}
	return value, out
}

func parsePropertyMap(s string) map[string]string {
	out := make(map[string]string)
	if s == "" {
		return out
	}
	for _, pair := range strings.Split(s, ",") {
		child, parent, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		out[child] = parent
	}
	return out
}
