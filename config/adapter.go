package config

import (
	"fmt"
	"net/url"
	"text/template"

	"github.com/hbkit/hbkit/macros"
)

// Adapter overrides the static bidder info for a single bidder.
type Adapter struct {
	Disabled         bool   `mapstructure:"disabled"`
	Endpoint         string `mapstructure:"endpoint"`
	ExtraAdapterInfo string `mapstructure:"extra_info"`
}

// Server holds the identity of this host, handed to bidder builders.
type Server struct {
	ExternalUrl string
	GvlID       int
	DataCenter  string
}

// validateAdapterEndpoint makes sure that an adapter has a valid endpoint associated with it.
func validateAdapterEndpoint(endpoint string, adapterName string, errs []error) []error {
	if endpoint == "" {
		return append(errs, fmt.Errorf("There's no default endpoint available for %s. Calls to this bidder/exchange will fail. Please set adapters.%s.endpoint in your app config", adapterName, adapterName))
	}

	endpointTemplate, err := template.New("endpointTemplate").Parse(endpoint)
	if err != nil {
		return append(errs, fmt.Errorf("Invalid endpoint template: %s for adapter: %s. %v", endpoint, adapterName, err))
	}

	resolvedEndpoint, err := macros.ResolveMacros(endpointTemplate, macros.EndpointTemplateParams{
		Host:        "anyHost",
		PublisherID: "anyPublisher",
		AccountID:   "anyAccount",
		ZoneID:      "anyZone",
		PlacementID: "anyPlacement",
	})
	if err != nil {
		return append(errs, fmt.Errorf("Unable to resolve endpoint: %s for adapter: %s. %v", endpoint, adapterName, err))
	}

	if _, err := url.Parse(resolvedEndpoint); err != nil {
		return append(errs, fmt.Errorf("The endpoint: %s for %s is not a valid URL", resolvedEndpoint, adapterName))
	}

	return errs
}
