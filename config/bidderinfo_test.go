package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hbkit/hbkit/openrtb_ext"
)

const testInfoDirectory = "../static/bidder-info"

func TestLoadBidderInfosFromDisk(t *testing.T) {
	infos, err := LoadBidderInfosFromDisk(testInfoDirectory)
	require.NoError(t, err)

	welect, ok := infos["welect"]
	require.True(t, ok, "expected a bidder info file for welect")
	assert.Equal(t, uint16(282), welect.GVLVendorID)
	assert.NotEmpty(t, welect.Endpoint)
	assert.Empty(t, welect.AliasOf)
	require.NotNil(t, welect.Capabilities)
	require.NotNil(t, welect.Capabilities.Site)
	assert.Equal(t, []openrtb_ext.BidType{openrtb_ext.BidTypeVideo}, welect.Capabilities.Site.MediaTypes)
	assert.Nil(t, welect.Capabilities.App)

	wlt, ok := infos["wlt"]
	require.True(t, ok, "expected a bidder info file for wlt")
	assert.Equal(t, "welect", wlt.AliasOf)
}

func TestBidderInfoFilesAreValid(t *testing.T) {
	infos, err := LoadBidderInfosFromDisk(testInfoDirectory)
	require.NoError(t, err)

	assert.Empty(t, infos.Validate())
}

func validInfo() BidderInfo {
	return BidderInfo{
		Endpoint:   "https://{{.Host}}/api/v2/preflight/{{.PlacementID}}",
		Maintainer: &MaintainerInfo{Email: "anyEmail"},
		Capabilities: &CapabilitiesInfo{
			Site: &PlatformInfo{MediaTypes: []openrtb_ext.BidType{openrtb_ext.BidTypeVideo}},
		},
	}
}

func TestValidateErrors(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(info *BidderInfo)
	}{
		{
			name:   "missing-maintainer",
			mutate: func(info *BidderInfo) { info.Maintainer = nil },
		},
		{
			name:   "missing-endpoint",
			mutate: func(info *BidderInfo) { info.Endpoint = "" },
		},
		{
			name:   "missing-capabilities",
			mutate: func(info *BidderInfo) { info.Capabilities = nil },
		},
		{
			name:   "empty-media-types",
			mutate: func(info *BidderInfo) { info.Capabilities.Site.MediaTypes = nil },
		},
		{
			name:   "bad-media-type",
			mutate: func(info *BidderInfo) { info.Capabilities.Site.MediaTypes = []openrtb_ext.BidType{"outstream"} },
		},
		{
			name:   "alias-of-unknown",
			mutate: func(info *BidderInfo) { info.AliasOf = "nosuchbidder" },
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			info := validInfo()
			test.mutate(&info)

			infos := BidderInfos{"welect": info, "wlt": validAlias()}
			assert.NotEmpty(t, infos.Validate())
		})
	}
}

func validAlias() BidderInfo {
	alias := validInfo()
	alias.AliasOf = "welect"
	return alias
}

func TestValidateUnknownBidderFile(t *testing.T) {
	infos := BidderInfos{"nosuchbidder": validInfo(), "welect": validInfo(), "wlt": validAlias()}

	errs := infos.Validate()

	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Error(), "nosuchbidder")
}

func TestApplyBidderInfoConfigOverrides(t *testing.T) {
	infos := BidderInfos{"welect": validInfo(), "wlt": validAlias()}

	overridden, err := ApplyBidderInfoConfigOverrides(infos, map[string]Adapter{
		"welect": {Endpoint: "https://staging.welect.example/{{.PlacementID}}", Disabled: true},
	})

	require.NoError(t, err)
	assert.Equal(t, "https://staging.welect.example/{{.PlacementID}}", overridden["welect"].Endpoint)
	assert.True(t, overridden["welect"].Disabled)
	assert.False(t, overridden["wlt"].Disabled)
}

func TestApplyBidderInfoConfigOverridesUnknownBidder(t *testing.T) {
	infos := BidderInfos{"welect": validInfo()}

	_, err := ApplyBidderInfoConfigOverrides(infos, map[string]Adapter{
		"nosuchbidder": {Disabled: true},
	})

	assert.Error(t, err)
}
