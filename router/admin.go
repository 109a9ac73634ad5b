package router

import (
	"net/http"
	"net/http/pprof"

	"github.com/hbkit/hbkit/endpoints"
)

// Admin returns the handler for the admin server, serving the pprof and
// version endpoints away from public traffic.
func Admin(version, revision string) *http.ServeMux {
	mux := http.NewServeMux()

	// Register pprof handlers
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.HandleFunc("/version", endpoints.NewVersionEndpoint(version, revision))

	return mux
}
