package moduledeps

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hbkit/hbkit/adserver"
	"github.com/hbkit/hbkit/scriptload"
)

// ModuleDeps provides dependencies that custom modules may need during
// building and at call time. Additional dependencies can be added here if
// modules need something more.
//
// ScriptLoader and AdServer may be left nil; modules which need them fall
// back to their own defaults.
type ModuleDeps struct {
	HTTPClient         *http.Client
	ScriptLoader       scriptload.Loader
	AdServer           adserver.CommandQueue
	PrometheusGatherer *prometheus.Registry
}
