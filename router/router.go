package router

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"

	"github.com/hbkit/hbkit/adapters"
	"github.com/hbkit/hbkit/config"
	"github.com/hbkit/hbkit/endpoints"
	infoEndpoints "github.com/hbkit/hbkit/endpoints/info"
	"github.com/hbkit/hbkit/errortypes"
	"github.com/hbkit/hbkit/exchange"
	"github.com/hbkit/hbkit/modules"
	"github.com/hbkit/hbkit/modules/moduledeps"
	"github.com/hbkit/hbkit/modules/receptivity/connector"
	"github.com/hbkit/hbkit/openrtb_ext"
	"github.com/hbkit/hbkit/rtd"
	"github.com/hbkit/hbkit/util/jsonutil"
	"github.com/hbkit/hbkit/version"
)

// NewJsonDirectoryServer is used to serve .json files from a directory as a single blob. For example,
// given a directory containing the files "a.json" and "b.json", this returns a Handle which serves JSON like:
//
//	{
//	  "a": { ... content from the file a.json ... },
//	  "b": { ... content from the file b.json ... }
//	}
//
// This function stores the file contents in memory, and should not be used on large directories.
// If the root directory, or any of the files in it, cannot be read, then the program will exit.
func NewJsonDirectoryServer(schemaDirectory string, validator openrtb_ext.BidderParamValidator) httprouter.Handle {
	// Slurp the files into memory first, since they're small and it minimizes request latency.
	files, err := os.ReadDir(schemaDirectory)
	if err != nil {
		glog.Fatalf("Failed to read directory %s: %v", schemaDirectory, err)
	}

	bidderMap := openrtb_ext.BuildBidderMap()

	data := make(map[string]json.RawMessage, len(files))
	for _, file := range files {
		bidder := strings.TrimSuffix(file.Name(), ".json")
		bidderName, isValid := bidderMap[bidder]
		if !isValid {
			glog.Fatalf("Schema exists for an unknown bidder: %s", bidder)
		}
		data[bidder] = json.RawMessage(validator.Schema(bidderName))
	}

	response, err := jsonutil.Marshal(data)
	if err != nil {
		glog.Fatalf("Failed to marshal bidder param JSON-schema: %v", err)
	}

	return func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.Header().Add("Content-Type", "application/json")
		w.Write(response)
	}
}

type NoCache struct {
	Handler http.Handler
}

func (m NoCache) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Add("Pragma", "no-cache")
	w.Header().Add("Expires", "0")
	m.Handler.ServeHTTP(w, r)
}

// Router wires the application routes to their handlers and keeps hold of the
// pieces an embedding host needs after construction, like the bidders and the
// real time data providers built from the config.
type Router struct {
	*httprouter.Router
	ParamsValidator openrtb_ext.BidderParamValidator
	BidderInfos     config.BidderInfos
	Bidders         map[openrtb_ext.BidderName]adapters.Bidder
	ActiveBidders   map[string]openrtb_ext.BidderName
	Modules         *rtd.Registry
	MetricsRegistry *prometheus.Registry
	Shutdown        func()
}

func getTransport(cfg *config.Configuration) *http.Transport {
	transport := &http.Transport{
		MaxConnsPerHost: cfg.Client.MaxConnsPerHost,
		IdleConnTimeout: time.Duration(cfg.Client.IdleConnTimeout) * time.Second,
	}

	if cfg.Client.MaxIdleConns > 0 {
		transport.MaxIdleConns = cfg.Client.MaxIdleConns
	}

	if cfg.Client.MaxIdleConnsPerHost > 0 {
		transport.MaxIdleConnsPerHost = cfg.Client.MaxIdleConnsPerHost
	}

	return transport
}

func New(cfg *config.Configuration) (r *Router, err error) {
	const schemaDirectory = "./static/bidder-params"
	const infoDirectory = "./static/bidder-info"

	r = &Router{
		Router: httprouter.New(),
	}

	generalHttpClient := &http.Client{
		Transport: getTransport(cfg),
	}

	paramsValidator, err := openrtb_ext.NewBidderParamsValidator(schemaDirectory)
	if err != nil {
		return nil, fmt.Errorf("Failed to create the bidder params validator. %v", err)
	}

	bidderInfos, err := config.LoadBidderInfosFromDisk(infoDirectory)
	if err != nil {
		return nil, fmt.Errorf("Failed to load bidder infos from %s: %v", infoDirectory, err)
	}

	bidderInfos, err = config.ApplyBidderInfoConfigOverrides(bidderInfos, cfg.Adapters)
	if err != nil {
		return nil, err
	}

	if errs := bidderInfos.Validate(); len(errs) > 0 {
		return nil, errortypes.NewAggregateError("invalid bidder infos", errs)
	}

	bidders, adaptersErrs := exchange.BuildAdapters(generalHttpClient, cfg, bidderInfos)
	if len(adaptersErrs) > 0 {
		return nil, errortypes.NewAggregateError("Failed to initialize adapters", adaptersErrs)
	}

	var metricsRegistry *prometheus.Registry
	if cfg.Metrics.Prometheus.Port != 0 {
		metricsRegistry = prometheus.NewRegistry()
	}

	scriptLoader := connector.NewLoader(generalHttpClient)

	moduleDeps := moduledeps.ModuleDeps{
		HTTPClient:         generalHttpClient,
		ScriptLoader:       scriptLoader,
		PrometheusGatherer: metricsRegistry,
	}
	providers, err := modules.NewBuilder().Build(cfg.Modules, moduleDeps)
	if err != nil {
		return nil, fmt.Errorf("Failed to init modules: %v", err)
	}

	modulesRegistry := rtd.NewRegistry(cfg.GDPR.DefaultValue)
	for _, provider := range providers {
		modulesRegistry.Register(provider)
	}

	r.ParamsValidator = paramsValidator
	r.BidderInfos = bidderInfos
	r.Bidders = bidders
	r.ActiveBidders = exchange.GetActiveBidders(bidderInfos)
	r.Modules = modulesRegistry
	r.MetricsRegistry = metricsRegistry
	r.Shutdown = scriptLoader.Stop

	r.GET("/status", endpoints.NewStatusEndpoint(cfg.StatusResponse))
	r.HandlerFunc(http.MethodGet, "/version", endpoints.NewVersionEndpoint(version.Ver, version.Rev))
	r.GET("/info/bidders", infoEndpoints.NewBiddersEndpoint(bidderInfos))
	r.GET("/info/bidders/:bidderName", infoEndpoints.NewBidderDetailsEndpoint(bidderInfos))
	r.GET("/bidders/params", NewJsonDirectoryServer(schemaDirectory, paramsValidator))
	r.ServeFiles("/static/*filepath", http.Dir("static"))

	return r, nil
}

// These CORS options pose a security risk... but it's a calculated one.
// The info and params endpoints hold no user data, and pages on any site
// must be able to read them to build requests.
//
// For more info, see:
//
// - https://github.com/rs/cors/issues/55
// - https://developer.mozilla.org/en-US/docs/Web/HTTP/CORS/Errors/CORSNotSupportingCredentials
func SupportCORS(handler http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowCredentials: true,
		AllowOriginFunc: func(string) bool {
			return true
		},
		AllowedHeaders: []string{"Origin", "X-Requested-With", "Content-Type", "Accept"}})
	return c.Handler(handler)
}
