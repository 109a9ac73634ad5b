package modules

import (
	receptivityRealtimedata "github.com/hbkit/hbkit/modules/receptivity/realtimedata"
)

// builders returns mapping between module name and its builder
// vendor and module names are chosen based on the module directory name
func builders() ModuleBuilders {
	return ModuleBuilders{
		"receptivity": {
			"realtimedata": receptivityRealtimedata.Builder,
		},
	}
}
