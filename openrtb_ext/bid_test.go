package openrtb_ext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBidParsing(t *testing.T) {
	for _, bidType := range BidTypes() {
		parsed, err := ParseBidType(string(bidType))
		assert.NoError(t, err, "parsing %s", bidType)
		assert.Equal(t, bidType, parsed)
	}

	parsed, err := ParseBidType("unknown")
	assert.Error(t, err)
	assert.Empty(t, parsed, "ParseBidType should return an empty string on error")
}
