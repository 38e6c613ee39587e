package schemaemit

import (
	"bytes"
	"embed"
	"fmt"
	"sync"
	"text/template"

	"github.com/dtakken/edxml-sdk/schema"
)

// templatesFS holds the XSD/RelaxNG skeletons describing the fixed
// parts of an EDXML document (the <events>/<definitions>/<eventgroups>
// envelope); the per-registry enumerations are filled in at emit time.
// Templates are walked in the opposite direction from a validator:
// template in, document out.
//
//go:embed templates/*.tmpl
var templatesFS embed.FS

var (
	templatesOnce sync.Once
	templates     *template.Template
	templatesErr  error
)

func loadTemplates() (*template.Template, error) {
	templatesOnce.Do(func() {
		templates, templatesErr = template.ParseFS(templatesFS, "templates/*.tmpl")
	})
	return templates, templatesErr
}

type xsdData struct {
	ObjectTypeNames []string
	EventTypeNames  []string
}

// EmitXSD renders an XSD document enumerating reg's object and event
// type names as the permitted values of their respective name
// attributes, so that XML tooling can validate unknown-type references
// even though the full attribute grammar is EDXML's concern, not XSD's.
func EmitXSD(reg *schema.Registry) ([]byte, error) {
	tmpl, err := loadTemplates()
	if err != nil {
		return nil, fmt.Errorf("schemaemit: load templates: %w", err)
	}
	var buf bytes.Buffer
	data := xsdData{ObjectTypeNames: reg.ObjectTypeNames(), EventTypeNames: reg.EventTypeNames()}
	if err := tmpl.ExecuteTemplate(&buf, "edxml.xsd.tmpl", data); err != nil {
		return nil, fmt.Errorf("schemaemit: render xsd: %w", err)
	}
	return buf.Bytes(), nil
}

// EmitRelaxNG renders the same enumeration as a RelaxNG compact-syntax
// document, for toolchains that prefer it over XSD.
func EmitRelaxNG(reg *schema.Registry) ([]byte, error) {
	tmpl, err := loadTemplates()
	if err != nil {
		return nil, fmt.Errorf("schemaemit: load templates: %w", err)
	}
	var buf bytes.Buffer
	data := xsdData{ObjectTypeNames: reg.ObjectTypeNames(), EventTypeNames: reg.EventTypeNames()}
	if err := tmpl.ExecuteTemplate(&buf, "edxml.rnc.tmpl", data); err != nil {
		return nil, fmt.Errorf("schemaemit: render relaxng: %w", err)
	}
	return buf.Bytes(), nil
}
