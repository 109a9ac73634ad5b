// Package info serves the static bidder metadata endpoints.
package info

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"

	"github.com/hbkit/hbkit/config"
)

// NewBiddersEndpoint implements /info/bidders. It lists the enabled bidder
// names, aliases included, in alphabetical order.
func NewBiddersEndpoint(bidderInfos config.BidderInfos) httprouter.Handle {
	bidderNames := make([]string, 0, len(bidderInfos))
	for name, info := range bidderInfos {
		if info.IsEnabled() {
			bidderNames = append(bidderNames, name)
		}
	}
	sort.Strings(bidderNames)

	biddersJson, err := json.Marshal(bidderNames)
	if err != nil {
		glog.Fatalf("error creating /info/bidders endpoint response: %v", err)
	}

	return httprouter.Handle(func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(biddersJson); err != nil {
			glog.Errorf("error writing response to /info/bidders: %v", err)
		}
	})
}

// NewBidderDetailsEndpoint implements /info/bidders/:bidderName.
func NewBidderDetailsEndpoint(bidderInfos config.BidderInfos) httprouter.Handle {
	// Build all the responses up front, since there are a finite number and it won't use much memory.
	responses := make(map[string]json.RawMessage, len(bidderInfos))
	for name, info := range bidderInfos {
		jsonBytes, err := json.Marshal(mapDetail(info))
		if err != nil {
			glog.Fatalf("error building /info/bidders/%s endpoint response: %v", name, err)
		}
		responses[strings.ToLower(name)] = json.RawMessage(jsonBytes)
	}

	return httprouter.Handle(func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		forBidder := strings.ToLower(ps.ByName("bidderName"))
		if response, ok := responses[forBidder]; ok {
			w.Header().Set("Content-Type", "application/json")
			if _, err := w.Write(response); err != nil {
				glog.Errorf("error writing response to /info/bidders/%s: %v", forBidder, err)
			}
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
}

type bidderDetail struct {
	Status       string            `json:"status"`
	AliasOf      string            `json:"aliasOf,omitempty"`
	GVLVendorID  uint16            `json:"gvlVendorID,omitempty"`
	Maintainer   *maintainerInfo   `json:"maintainer,omitempty"`
	Capabilities *capabilitiesInfo `json:"capabilities,omitempty"`
}

type maintainerInfo struct {
	Email string `json:"email"`
}

type capabilitiesInfo struct {
	App  *platformInfo `json:"app,omitempty"`
	Site *platformInfo `json:"site,omitempty"`
}

type platformInfo struct {
	MediaTypes []string `json:"mediaTypes"`
}

func mapDetail(info config.BidderInfo) bidderDetail {
	detail := bidderDetail{
		Status:      "ACTIVE",
		AliasOf:     info.AliasOf,
		GVLVendorID: info.GVLVendorID,
	}
	if !info.IsEnabled() {
		detail.Status = "DISABLED"
	}

	if info.Maintainer != nil {
		detail.Maintainer = &maintainerInfo{Email: info.Maintainer.Email}
	}

	if info.Capabilities != nil {
		detail.Capabilities = &capabilitiesInfo{
			App:  mapPlatform(info.Capabilities.App),
			Site: mapPlatform(info.Capabilities.Site),
		}
	}

	return detail
}

func mapPlatform(platform *config.PlatformInfo) *platformInfo {
	if platform == nil {
		return nil
	}

	mediaTypes := make([]string, len(platform.MediaTypes))
	for i, mediaType := range platform.MediaTypes {
		mediaTypes[i] = string(mediaType)
	}

	return &platformInfo{MediaTypes: mediaTypes}
}
