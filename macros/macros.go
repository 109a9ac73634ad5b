package macros

import (
	"bytes"
	"text/template"
)

// EndpointTemplateParams specifies the macros available to bidder endpoint templates.
type EndpointTemplateParams struct {
	Host        string
	PublisherID string
	AccountID   string
	ZoneID      string
	PlacementID string
}

// ResolveMacros resolves macros in the given template with the provided params.
func ResolveMacros(aTemplate *template.Template, params interface{}) (string, error) {
	strBuilder := bytes.Buffer{}
	err := aTemplate.Execute(&strBuilder, params)
	if err != nil {
		return "", err
	}
	return strBuilder.String(), nil
}
