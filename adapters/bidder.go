package adapters

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/hbkit/hbkit/config"
	"github.com/hbkit/hbkit/errortypes"
	"github.com/hbkit/hbkit/openrtb_ext"
)

// Bidder describes how to connect to an external demand server.
type Bidder interface {
	// MakeRequests makes the HTTP requests which should be made to fetch bids.
	//
	// Bidder implementations can assume that the incoming BidRequest has passed validation.
	// There is no guarantee that any custom params exist or are well formed though, so
	// implementations must check those themselves.
	//
	// nil return values are acceptable, but nil elements *inside* those slices are not.
	//
	// The errors should contain a list of errors which explain why this bidder's bids will be
	// "subpar" in some way. For example: the request contained ad types which this bidder doesn't support.
	MakeRequests(request *openrtb2.BidRequest, reqInfo *ExtraRequestInfo) ([]*RequestData, []error)

	// MakeBids unpacks the server's response into Bids.
	//
	// The bids can be nil (for no bids), but should not contain nil elements.
	//
	// The errors should contain a list of errors which explain why this bidder's bids will be
	// "subpar" in some way. For example: the server response didn't have the expected format.
	MakeBids(internalRequest *openrtb2.BidRequest, externalRequest *RequestData, response *ResponseData) (*BidderResponse, []error)
}

// Builder builds a new instance of a Bidder.
// The builder is called once for each bidder and aliases when the host initializes.
type Builder func(bidderName openrtb_ext.BidderName, config config.Adapter, server config.Server) (Bidder, error)

// ExtraRequestInfo carries request agnostic information the host wants bidders to know.
type ExtraRequestInfo struct {
	GlobalPrivacyControlHeader string
}

// TypedBid packs the openrtb bid with any bidder specific information the host may need.
//
// TypedBid.Bid.Ext will become "response.seatbid[i].bid.ext.bidder" in the final response.
// TypedBid.BidMeta will become "response.seatbid[i].bid.ext.prebid.meta".
type TypedBid struct {
	Bid     *openrtb2.Bid
	BidMeta *openrtb_ext.ExtBidPrebidMeta
	BidType openrtb_ext.BidType
	Seat    openrtb_ext.BidderName
}

// BidderResponse carries all bids and the currency they are expressed in.
type BidderResponse struct {
	Currency string
	Bids     []*TypedBid
}

// NewBidderResponseWithBidsCapacity create a new BidderResponse initialising the bids array capacity
// and the default currency.
func NewBidderResponseWithBidsCapacity(bidsCapacity int) *BidderResponse {
	return &BidderResponse{
		Currency: "USD",
		Bids:     make([]*TypedBid, 0, bidsCapacity),
	}
}

// NewBidderResponse create a new BidderResponse with an empty bids array and the default currency.
func NewBidderResponse() *BidderResponse {
	return NewBidderResponseWithBidsCapacity(0)
}

// RequestData packages together the fields needed to make an http.Request.
type RequestData struct {
	Method  string
	Uri     string
	Body    []byte
	Headers http.Header
	ImpIDs  []string
}

// ResponseData packages together information from the server's http.Response.
type ResponseData struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// ExtImpBidder can be used by bidders to unmarshal any request.imp[i].ext.
type ExtImpBidder struct {
	// Bidder contains the bidder-specific extension. Each bidder should unmarshal this
	// using their own ExtImp* type.
	//
	// For example, the welect bidder should unmarshal this with an openrtb_ext.ExtImpWelect struct.
	Bidder json.RawMessage `json:"bidder"`
}

// IsResponseStatusCodeNoContent returns true if the response has the http 204 status code.
func IsResponseStatusCodeNoContent(response *ResponseData) bool {
	return response.StatusCode == http.StatusNoContent
}

// CheckResponseStatusCodeForErrors returns an error for any response status code other than 200.
func CheckResponseStatusCodeForErrors(response *ResponseData) error {
	if response.StatusCode == http.StatusBadRequest {
		return &errortypes.BadInput{
			Message: fmt.Sprintf("Unexpected status code: %d. Run with request.debug = 1 for more info", response.StatusCode),
		}
	}

	if response.StatusCode != http.StatusOK {
		return &errortypes.BadServerResponse{
			Message: fmt.Sprintf("Unexpected status code: %d. Run with request.debug = 1 for more info", response.StatusCode),
		}
	}

	return nil
}
