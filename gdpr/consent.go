package gdpr

import (
	"github.com/prebid/go-gdpr/vendorconsent"
)

// VendorAllowed decides whether a vendor may receive personal data under the
// request's consent info.
//
// With SignalNo the regulation does not apply and everything is allowed. With
// SignalYes the TCF consent string decides. Callers should normalize ambiguous
// signals with SignalNormalize first. A vendor id of 0 marks a vendor without
// an IAB registration, which leaves nothing to check the consent string against.
func VendorAllowed(vendorID uint16, signal Signal, consent string) bool {
	if signal != SignalYes {
		return true
	}

	if vendorID == 0 {
		return true
	}

	if consent == "" {
		return false
	}

	parsedConsent, err := vendorconsent.ParseString(consent)
	if err != nil {
		return false
	}

	return parsedConsent.VendorConsent(vendorID)
}
