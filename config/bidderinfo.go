package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/hbkit/hbkit/openrtb_ext"
)

// BidderInfos contains a mapping of bidder name to bidder info.
type BidderInfos map[string]BidderInfo

// BidderInfo specifies the static properties of a bidder as read from
// static/bidder-info/{bidder}.yaml.
type BidderInfo struct {
	// AliasOf names the parent bidder this entry is an alias of. Empty for core bidders.
	AliasOf string `yaml:"aliasOf" mapstructure:"aliasOf"`

	Disabled bool `yaml:"disabled" mapstructure:"disabled"`

	// Endpoint is the url the adapter sends requests to. May contain macros,
	// see macros.EndpointTemplateParams.
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`

	ExtraAdapterInfo string `yaml:"extra_info" mapstructure:"extra_info"`

	Maintainer   *MaintainerInfo   `yaml:"maintainer" mapstructure:"maintainer"`
	Capabilities *CapabilitiesInfo `yaml:"capabilities" mapstructure:"capabilities"`

	// GVLVendorID is the bidder's IAB Global Vendor List id, used for GDPR consent checks.
	// 0 means the bidder is not registered with the IAB.
	GVLVendorID uint16 `yaml:"gvlVendorID" mapstructure:"gvlVendorID"`
}

// MaintainerInfo specifies the support email address for a bidder.
type MaintainerInfo struct {
	Email string `yaml:"email" mapstructure:"email"`
}

// CapabilitiesInfo specifies the supported platforms for a bidder.
type CapabilitiesInfo struct {
	App  *PlatformInfo `yaml:"app" mapstructure:"app"`
	Site *PlatformInfo `yaml:"site" mapstructure:"site"`
}

// PlatformInfo specifies the supported media types for a bidder platform.
type PlatformInfo struct {
	MediaTypes []openrtb_ext.BidType `yaml:"mediaTypes" mapstructure:"mediaTypes"`
}

// IsEnabled reports whether the bidder should be built and, for enabled bidders,
// listed by the info endpoints.
func (info BidderInfo) IsEnabled() bool {
	return !info.Disabled
}

// LoadBidderInfosFromDisk parses all static/bidder-info/{bidder}.yaml files.
func LoadBidderInfosFromDisk(path string) (BidderInfos, error) {
	fileInfos, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("error reading bidder info from %s: %v", path, err)
	}

	infos := BidderInfos{}
	for _, fileInfo := range fileInfos {
		fileName := fileInfo.Name()
		if !strings.HasSuffix(fileName, ".yaml") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(path, fileName))
		if err != nil {
			return nil, fmt.Errorf("error reading bidder info file %s: %v", fileName, err)
		}

		var info BidderInfo
		if err := yaml.Unmarshal(data, &info); err != nil {
			return nil, fmt.Errorf("error parsing bidder info file %s: %v", fileName, err)
		}

		bidderName := strings.TrimSuffix(fileName, ".yaml")
		infos[bidderName] = info
	}

	return infos, nil
}

// Validate checks that the bidder infos are complete and consistent with the known bidders.
func (infos BidderInfos) Validate() []error {
	var errs []error

	for bidderName, info := range infos {
		if _, known := openrtb_ext.NormalizeBidderName(bidderName); !known {
			errs = append(errs, fmt.Errorf("bidder info file for %s does not match a known bidder", bidderName))
			continue
		}
		errs = validateBidderInfo(info, bidderName, infos, errs)
	}

	for _, coreBidder := range openrtb_ext.CoreBidderNames() {
		if _, ok := infos[string(coreBidder)]; !ok {
			errs = append(errs, fmt.Errorf("no bidder info file for bidder %s", coreBidder))
		}
	}

	return errs
}

func validateBidderInfo(info BidderInfo, bidderName string, infos BidderInfos, errs []error) []error {
	if info.AliasOf != "" {
		parent, ok := infos[info.AliasOf]
		if !ok {
			return append(errs, fmt.Errorf("bidder %s is an alias of unknown bidder %s", bidderName, info.AliasOf))
		}
		if parent.AliasOf != "" {
			return append(errs, fmt.Errorf("bidder %s is an alias of %s which is itself an alias", bidderName, info.AliasOf))
		}
	}

	if info.Maintainer == nil || info.Maintainer.Email == "" {
		errs = append(errs, fmt.Errorf("missing required field: maintainer.email for bidder %s", bidderName))
	}

	errs = validateAdapterEndpoint(info.Endpoint, bidderName, errs)

	if info.Capabilities == nil {
		return append(errs, fmt.Errorf("missing required field: capabilities for bidder %s", bidderName))
	}
	if info.Capabilities.App == nil && info.Capabilities.Site == nil {
		errs = append(errs, fmt.Errorf("at least one of capabilities.app or capabilities.site must be specified for bidder %s", bidderName))
	}
	if info.Capabilities.App != nil {
		errs = validatePlatformInfo(info.Capabilities.App, "app", bidderName, errs)
	}
	if info.Capabilities.Site != nil {
		errs = validatePlatformInfo(info.Capabilities.Site, "site", bidderName, errs)
	}

	return errs
}

func validatePlatformInfo(platform *PlatformInfo, platformName string, bidderName string, errs []error) []error {
	if len(platform.MediaTypes) == 0 {
		return append(errs, fmt.Errorf("at least one media type needs to be specified for capabilities.%s of bidder %s", platformName, bidderName))
	}

	for _, mediaType := range platform.MediaTypes {
		if _, err := openrtb_ext.ParseBidType(string(mediaType)); err != nil {
			errs = append(errs, fmt.Errorf("capabilities.%s of bidder %s: %v", platformName, bidderName, err))
		}
	}

	return errs
}

// ApplyBidderInfoConfigOverrides lays the adapters section of the app config over
// the static bidder infos.
func ApplyBidderInfoConfigOverrides(infos BidderInfos, adaptersCfg map[string]Adapter) (BidderInfos, error) {
	for cfgName, adapterCfg := range adaptersCfg {
		normalizedName, known := openrtb_ext.NormalizeBidderName(cfgName)
		if !known {
			return nil, fmt.Errorf("adapters.%s was set in config, but %s is not a known bidder", cfgName, cfgName)
		}

		info, ok := infos[string(normalizedName)]
		if !ok {
			return nil, fmt.Errorf("adapters.%s was set in config, but %s has no bidder info file", cfgName, cfgName)
		}

		if adapterCfg.Endpoint != "" {
			info.Endpoint = adapterCfg.Endpoint
		}
		if adapterCfg.ExtraAdapterInfo != "" {
			info.ExtraAdapterInfo = adapterCfg.ExtraAdapterInfo
		}
		info.Disabled = adapterCfg.Disabled

		infos[string(normalizedName)] = info
	}

	return infos, nil
}
