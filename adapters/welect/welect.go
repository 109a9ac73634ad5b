package welect

import (
	"fmt"
	"net/http"
	"text/template"

	"github.com/prebid/openrtb/v20/adcom1"
	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/hbkit/hbkit/adapters"
	"github.com/hbkit/hbkit/config"
	"github.com/hbkit/hbkit/errortypes"
	"github.com/hbkit/hbkit/macros"
	"github.com/hbkit/hbkit/openrtb_ext"
	"github.com/hbkit/hbkit/util/jsonutil"
	"github.com/hbkit/hbkit/util/ptrutil"
)

// defaultDomain serves preflight requests when the publisher does not override it.
const defaultDomain = "www.welect.de"

type adapter struct {
	endpointTemplate *template.Template
}

// preflightRequest is the body sent to the welect preflight endpoint, one per imp.
type preflightRequest struct {
	Width       int64          `json:"width"`
	Height      int64          `json:"height"`
	BidID       string         `json:"bid_id"`
	GDPRConsent *preflightGDPR `json:"gdpr_consent,omitempty"`
}

type preflightGDPR struct {
	GDPRApplies bool   `json:"gdpr_applies"`
	Consent     string `json:"gdpr_consent,omitempty"`
}

// preflightResponse is the answer of the welect preflight endpoint. Bids are only
// present when available is true.
type preflightResponse struct {
	Available   bool       `json:"available"`
	BidResponse *welectBid `json:"bidResponse"`
}

type welectBid struct {
	RequestID  string     `json:"requestId"`
	CPM        float64    `json:"cpm"`
	Width      int64      `json:"width"`
	Height     int64      `json:"height"`
	CreativeID string     `json:"creativeId"`
	Currency   string     `json:"currency"`
	NetRevenue bool       `json:"netRevenue"`
	TTL        int64      `json:"ttl"`
	Ad         string     `json:"ad"`
	VastURL    string     `json:"vastUrl"`
	Meta       welectMeta `json:"meta"`
}

type welectMeta struct {
	AdvertiserDomains []string `json:"advertiserDomains"`
}

// Builder builds a new instance of the Welect adapter for the given bidder with the given config.
func Builder(bidderName openrtb_ext.BidderName, config config.Adapter, server config.Server) (adapters.Bidder, error) {
	endpointTemplate, err := template.New("endpointTemplate").Parse(config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("unable to parse endpoint url template: %v", err)
	}

	return &adapter{
		endpointTemplate: endpointTemplate,
	}, nil
}

func (a *adapter) MakeRequests(request *openrtb2.BidRequest, reqInfo *adapters.ExtraRequestInfo) ([]*adapters.RequestData, []error) {
	var requests []*adapters.RequestData
	var errs []error

	gdpr := getGDPR(request)

	for i := range request.Imp {
		imp := &request.Imp[i]

		requestData, err := a.makeRequest(imp, gdpr)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		requests = append(requests, requestData)
	}

	return requests, errs
}

func (a *adapter) makeRequest(imp *openrtb2.Imp, gdpr *preflightGDPR) (*adapters.RequestData, error) {
	if !isInstreamVideo(imp) {
		return nil, &errortypes.BadInput{
			Message: fmt.Sprintf("imp %s: welect only bids on instream video", imp.ID),
		}
	}

	welectExt, err := parseImpExt(imp)
	if err != nil {
		return nil, err
	}

	width, height, err := playerSize(imp.Video)
	if err != nil {
		return nil, &errortypes.BadInput{
			Message: fmt.Sprintf("imp %s: %s", imp.ID, err),
		}
	}

	uri, err := a.buildEndpointURL(welectExt)
	if err != nil {
		return nil, err
	}

	body, err := jsonutil.Marshal(preflightRequest{
		Width:       width,
		Height:      height,
		BidID:       imp.ID,
		GDPRConsent: gdpr,
	})
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Add("Content-Type", "application/json;charset=utf-8")
	headers.Add("Accept", "application/json")

	return &adapters.RequestData{
		Method:  http.MethodPost,
		Uri:     uri,
		Body:    body,
		Headers: headers,
		ImpIDs:  []string{imp.ID},
	}, nil
}

// isInstreamVideo checks imp.video.plcmt for the instream placement, falling back
// to the deprecated imp.video.placement signal when plcmt is unset.
func isInstreamVideo(imp *openrtb2.Imp) bool {
	if imp.Video == nil {
		return false
	}
	if imp.Video.Plcmt != 0 {
		return imp.Video.Plcmt == adcom1.VideoPlcmtInstream
	}
	return imp.Video.Placement == 1
}

func parseImpExt(imp *openrtb2.Imp) (*openrtb_ext.ExtImpWelect, error) {
	var bidderExt adapters.ExtImpBidder
	if err := jsonutil.Unmarshal(imp.Ext, &bidderExt); err != nil {
		return nil, &errortypes.BadInput{
			Message: fmt.Sprintf("imp %s: unable to parse bidder ext: %s", imp.ID, err),
		}
	}

	var welectExt openrtb_ext.ExtImpWelect
	if err := jsonutil.Unmarshal(bidderExt.Bidder, &welectExt); err != nil {
		return nil, &errortypes.BadInput{
			Message: fmt.Sprintf("imp %s: unable to parse welect params: %s", imp.ID, err),
		}
	}

	if welectExt.PlacementID == "" {
		return nil, &errortypes.BadInput{
			Message: fmt.Sprintf("imp %s: missing param placementId", imp.ID),
		}
	}

	return &welectExt, nil
}

func playerSize(video *openrtb2.Video) (int64, int64, error) {
	width := ptrutil.ValueOrDefault(video.W)
	height := ptrutil.ValueOrDefault(video.H)
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("video player size is required")
	}
	return width, height, nil
}

func (a *adapter) buildEndpointURL(params *openrtb_ext.ExtImpWelect) (string, error) {
	domain := params.Domain
	if domain == "" {
		domain = defaultDomain
	}

	endpointParams := macros.EndpointTemplateParams{
		Host:        domain,
		PlacementID: params.PlacementID,
	}
	return macros.ResolveMacros(a.endpointTemplate, endpointParams)
}

// getGDPR collects the consent info of the request. Returns nil when the request
// carries neither a gdpr signal nor a consent string.
func getGDPR(request *openrtb2.BidRequest) *preflightGDPR {
	var consent string
	if request.User != nil {
		consent = request.User.Consent
	}

	var gdprSignal *int8
	if request.Regs != nil {
		gdprSignal = request.Regs.GDPR
	}

	if consent == "" && gdprSignal == nil {
		return nil
	}

	return &preflightGDPR{
		GDPRApplies: gdprSignal != nil && *gdprSignal == 1,
		Consent:     consent,
	}
}

func (a *adapter) MakeBids(internalRequest *openrtb2.BidRequest, externalRequest *adapters.RequestData, response *adapters.ResponseData) (*adapters.BidderResponse, []error) {
	if adapters.IsResponseStatusCodeNoContent(response) {
		return nil, nil
	}
	if err := adapters.CheckResponseStatusCodeForErrors(response); err != nil {
		return nil, []error{err}
	}

	var preflight preflightResponse
	if err := jsonutil.Unmarshal(response.Body, &preflight); err != nil {
		return nil, []error{&errortypes.BadServerResponse{
			Message: fmt.Sprintf("unable to parse server response: %s", err),
		}}
	}

	if !preflight.Available || preflight.BidResponse == nil {
		return nil, nil
	}

	welectBid := preflight.BidResponse
	if welectBid.RequestID == "" {
		return nil, []error{&errortypes.BadServerResponse{
			Message: "server response is missing bidResponse.requestId",
		}}
	}

	bidderResponse := adapters.NewBidderResponseWithBidsCapacity(1)
	if welectBid.Currency != "" {
		bidderResponse.Currency = welectBid.Currency
	}

	bidderResponse.Bids = append(bidderResponse.Bids, &adapters.TypedBid{
		Bid: &openrtb2.Bid{
			ID:      welectBid.RequestID,
			ImpID:   welectBid.RequestID,
			Price:   welectBid.CPM,
			AdM:     welectBid.Ad,
			NURL:    welectBid.VastURL,
			W:       welectBid.Width,
			H:       welectBid.Height,
			CrID:    welectBid.CreativeID,
			Exp:     welectBid.TTL,
			ADomain: welectBid.Meta.AdvertiserDomains,
			MType:   openrtb2.MarkupVideo,
		},
		BidType: openrtb_ext.BidTypeVideo,
		BidMeta: &openrtb_ext.ExtBidPrebidMeta{
			AdvertiserDomains: welectBid.Meta.AdvertiserDomains,
			MediaType:         string(openrtb_ext.BidTypeVideo),
		},
	})

	return bidderResponse, nil
}
