package exchange

import (
	"github.com/hbkit/hbkit/adapters"
	"github.com/hbkit/hbkit/adapters/welect"
	"github.com/hbkit/hbkit/openrtb_ext"
)

// newAdapterBuilders returns the mapping of core bidder names to their
// builders. Aliases resolve to their parent's builder at build time.
func newAdapterBuilders() map[openrtb_ext.BidderName]adapters.Builder {
	return map[openrtb_ext.BidderName]adapters.Builder{
		openrtb_ext.BidderWelect: welect.Builder,
	}
}
