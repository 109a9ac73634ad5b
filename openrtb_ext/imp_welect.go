package openrtb_ext

// ExtImpWelect defines the contract for bidrequest.imp[i].ext.prebid.bidder.welect
type ExtImpWelect struct {
	PlacementID string `json:"placementId"`
	Domain      string `json:"domain,omitempty"`
}
