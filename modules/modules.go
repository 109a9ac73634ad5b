package modules

import (
	"encoding/json"
	"fmt"

	"github.com/golang/glog"

	"github.com/hbkit/hbkit/config"
	"github.com/hbkit/hbkit/modules/moduledeps"
	"github.com/hbkit/hbkit/rtd"
	"github.com/hbkit/hbkit/util/jsonutil"
)

// NewBuilder returns a new module builder.
func NewBuilder() Builder {
	return &builder{builders()}
}

// Builder is the interface intended for building modules implementing the
// real time data contract [github.com/hbkit/hbkit/rtd].
type Builder interface {
	// Build initializes existing modules passing them config and other
	// dependencies. It returns the initialized data providers in a state
	// ready for registration, or an error encountered during module
	// initialization.
	Build(cfg config.Modules, deps moduledeps.ModuleDeps) ([]rtd.DataProvider, error)
}

type (
	// ModuleBuilders mapping between module name and its builder: map[vendor]map[module]ModuleBuilderFn
	ModuleBuilders map[string]map[string]ModuleBuilderFn
	// ModuleBuilderFn returns an interface{} type that implements the data provider contract.
	ModuleBuilderFn func(cfg json.RawMessage, deps moduledeps.ModuleDeps) (interface{}, error)
)

type builder struct {
	builders ModuleBuilders
}

// Build walks over the list of registered modules and initializes them.
//
// The ID chosen for a module represents a fully qualified module path in the
// format "vendor.module_name". Modules without an enabled flag in config are
// skipped, as are modules whose provider declines its Init call.
func (m *builder) Build(
	cfg config.Modules,
	deps moduledeps.ModuleDeps,
) ([]rtd.DataProvider, error) {
	var providers []rtd.DataProvider
	for vendor, moduleBuilders := range m.builders {
		for moduleName, builder := range moduleBuilders {
			var err error
			var conf json.RawMessage
			var isEnabled bool

			id := fmt.Sprintf("%s.%s", vendor, moduleName)
			if data, ok := cfg[vendor][moduleName]; ok {
				if conf, err = jsonutil.Marshal(data); err != nil {
					return nil, fmt.Errorf(`failed to marshal "%s" module config: %s`, id, err)
				}

				if values, ok := data.(map[string]interface{}); ok {
					if value, ok := values["enabled"].(bool); ok {
						isEnabled = value
					}
				}
			}

			if !isEnabled {
				glog.Infof("Skip %s module, disabled.", id)
				continue
			}

			module, err := builder(conf, deps)
			if err != nil {
				return nil, fmt.Errorf(`failed to init "%s" module: %s`, id, err)
			}

			provider, err := asDataProvider(id, module)
			if err != nil {
				return nil, err
			}

			if !provider.Init(conf) {
				glog.Warningf("Skip %s module, provider declined to initialize.", id)
				continue
			}

			providers = append(providers, provider)
		}
	}

	return providers, nil
}
