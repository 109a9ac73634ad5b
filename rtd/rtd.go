// Package rtd defines the host contract for real time data providers,
// modules which enrich auctions and ad server targeting with signals
// gathered while the auction runs.
package rtd

import (
	"encoding/json"

	"github.com/hbkit/hbkit/gdpr"
)

// UserConsent carries the privacy state of the incoming request. It is
// handed to every provider call so providers can honor it in their own
// outbound requests.
type UserConsent struct {
	GDPR    gdpr.Signal
	Consent string
}

// DataProvider is implemented by real time data modules. The host builds
// one instance per configured provider and calls it from the auction path.
type DataProvider interface {
	// Name returns the name the provider was registered under.
	Name() string

	// Init prepares the provider from its host config. Returning false
	// drops the provider for the lifetime of the host.
	Init(config json.RawMessage) bool

	// GetBidRequestData gives the provider a chance to enrich the auction
	// for the listed ad units. The provider must call done exactly once,
	// whether or not it had anything to contribute.
	GetBidRequestData(adUnitCodes []string, done func(), consent UserConsent)

	// GetTargetingData returns ad server targeting, keyed by ad unit code
	// and then by targeting key.
	GetTargetingData(adUnitCodes []string, consent UserConsent) map[string]map[string]string
}

// VendorIDer is implemented by providers registered with the IAB global
// vendor list. The host checks the request consent string against the
// returned vendor id before calling the provider.
type VendorIDer interface {
	GVLID() uint16
}
