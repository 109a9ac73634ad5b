// Package exchange assembles the configured bidder adapters into callable
// form. The auction pipeline itself lives with the host embedding this
// module; this package owns adapter construction only.
package exchange

import (
	"fmt"
	"net/http"

	"github.com/hbkit/hbkit/adapters"
	"github.com/hbkit/hbkit/config"
	"github.com/hbkit/hbkit/openrtb_ext"
)

// BuildAdapters builds an instance of every enabled bidder from its static
// info and the host config. The returned map contains only bidders which
// built cleanly; any failures come back as errors.
func BuildAdapters(client *http.Client, cfg *config.Configuration, infos config.BidderInfos) (map[openrtb_ext.BidderName]adapters.Bidder, []error) {
	server := config.Server{ExternalUrl: cfg.ExternalURL, GvlID: cfg.GDPR.HostVendorID, DataCenter: cfg.DataCenter}
	bidders, errs := buildBidders(infos, newAdapterBuilders(), server)

	if len(errs) > 0 {
		return nil, errs
	}

	return bidders, nil
}

func buildBidders(infos config.BidderInfos, builders map[openrtb_ext.BidderName]adapters.Builder, server config.Server) (map[openrtb_ext.BidderName]adapters.Bidder, []error) {
	bidders := make(map[openrtb_ext.BidderName]adapters.Bidder)
	var errs []error

	for bidder, info := range infos {
		bidderName, bidderNameFound := openrtb_ext.NormalizeBidderName(bidder)
		if !bidderNameFound {
			errs = append(errs, fmt.Errorf("%v: unknown bidder", bidder))
			continue
		}

		if len(info.AliasOf) > 0 {
			if err := setAliasBuilder(info, builders, bidderName); err != nil {
				errs = append(errs, fmt.Errorf("%v: failed to set alias builder: %v", bidder, err))
				continue
			}
		}

		builder, builderFound := builders[bidderName]
		if !builderFound {
			errs = append(errs, fmt.Errorf("%v: builder not registered", bidder))
			continue
		}

		if info.IsEnabled() {
			adapterInfo := buildAdapterInfo(info)
			bidderInstance, builderErr := builder(bidderName, adapterInfo, server)

			if builderErr != nil {
				errs = append(errs, fmt.Errorf("%v: %v", bidder, builderErr))
				continue
			}
			bidders[bidderName] = bidderInstance
		}
	}
	return bidders, errs
}

func setAliasBuilder(info config.BidderInfo, builders map[openrtb_ext.BidderName]adapters.Builder, bidderName openrtb_ext.BidderName) error {
	parentBidderName, parentBidderFound := openrtb_ext.NormalizeBidderName(info.AliasOf)
	if !parentBidderFound {
		return fmt.Errorf("unknown parent bidder: %v for alias: %v", info.AliasOf, bidderName)
	}

	builder, builderFound := builders[parentBidderName]
	if !builderFound {
		return fmt.Errorf("%v: parent builder not registered", parentBidderName)
	}
	builders[bidderName] = builder
	return nil
}

func buildAdapterInfo(bidderInfo config.BidderInfo) config.Adapter {
	adapter := config.Adapter{}
	adapter.Endpoint = bidderInfo.Endpoint
	adapter.ExtraAdapterInfo = bidderInfo.ExtraAdapterInfo
	return adapter
}

// GetActiveBidders returns a map of all enabled bidder names.
func GetActiveBidders(infos config.BidderInfos) map[string]openrtb_ext.BidderName {
	activeBidders := make(map[string]openrtb_ext.BidderName)

	for name, info := range infos {
		if info.IsEnabled() {
			activeBidders[name] = openrtb_ext.BidderName(name)
		}
	}

	return activeBidders
}
