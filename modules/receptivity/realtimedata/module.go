// Package realtimedata implements the receptivity real time data provider.
// It boots the vendor connector at init and serves the captured receptivity
// measurement as ad server targeting for every auction of the session.
package realtimedata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/hbkit/hbkit/adserver"
	"github.com/hbkit/hbkit/modules/moduledeps"
	"github.com/hbkit/hbkit/modules/receptivity/connector"
	"github.com/hbkit/hbkit/modules/receptivity/rxapi"
	"github.com/hbkit/hbkit/rtd"
	"github.com/hbkit/hbkit/scriptload"
	"github.com/hbkit/hbkit/util/jsonutil"
)

// Name is the provider name used at the registration point.
const Name = "receptivity"

const (
	targetingKey         = "ReceptivityState"
	connectorURLFormat   = "https://api.receptivity.io/%s/prebid/%s/connector/p.js"
	connectorLoadTimeout = 10 * time.Second
)

// Builder creates a new receptivity module instance.
func Builder(rawConfig json.RawMessage, deps moduledeps.ModuleDeps) (interface{}, error) {
	loader := deps.ScriptLoader
	if loader == nil {
		loader = connector.NewLoader(deps.HTTPClient)
	}

	adServer := deps.AdServer
	if adServer == nil {
		adServer = adserver.Noop()
	}

	return &Module{
		loader:   loader,
		adServer: adServer,
		metrics:  newModuleMetrics(deps.PrometheusGatherer),
	}, nil
}

// Module holds the per session receptivity state. The initial value arrives
// once from the connector boot, the engine serves live reads afterwards.
type Module struct {
	loader   scriptload.Loader
	adServer adserver.CommandQueue
	metrics  *moduleMetrics

	mu      sync.Mutex
	initial string
	engine  rxapi.Engine
}

type moduleConfig struct {
	Params struct {
		Version  string `json:"version"`
		Customer string `json:"customer"`
	} `json:"params"`
}

func (m *Module) Name() string {
	return Name
}

// Init resets the session state, validates the config and boots the vendor
// connector. Only an invalid config fails the module; a connector which
// cannot be loaded leaves the session without receptivity data but keeps
// the module registered, matching the asynchronous script delivery it
// stands in for.
func (m *Module) Init(rawConfig json.RawMessage) bool {
	m.mu.Lock()
	m.initial = ""
	m.engine = nil
	m.mu.Unlock()

	cfg, err := parseConfig(rawConfig)
	if err != nil {
		glog.Errorf("receptivity: init failed: %v", err)
		m.metrics.recordConnectorLoad(loadResultInvalidConfig)
		return false
	}

	url := fmt.Sprintf(connectorURLFormat, cfg.Params.Version, cfg.Params.Customer)

	ctx, cancel := context.WithTimeout(context.Background(), connectorLoadTimeout)
	defer cancel()

	handle, err := m.loader.Load(ctx, url, Name)
	if err != nil {
		glog.Warningf("receptivity: connector load failed: %v", err)
		m.metrics.recordConnectorLoad(loadResultFailed)
		return true
	}
	if handle == nil {
		return true
	}

	handle.AddEventListener(rxapi.EventInitialReceptivity, m.onInitialReceptivity)
	handle.AddEventListener(rxapi.EventEngineReady, m.onEngineReady)

	m.metrics.recordConnectorLoad(loadResultOK)
	return true
}

// GetBidRequestData pushes the current measurement into ad server targeting
// and releases the auction. The push is fire and forget.
func (m *Module) GetBidRequestData(adUnitCodes []string, done func(), consent rtd.UserConsent) {
	m.setAdServerTargeting(m.getReceptivity())
	done()
}

// GetTargetingData maps every requested ad unit to the same receptivity
// record. An unknown state yields an empty mapping, never a malformed
// record.
func (m *Module) GetTargetingData(adUnitCodes []string, consent rtd.UserConsent) map[string]map[string]string {
	targeting := map[string]map[string]string{}
	if len(adUnitCodes) == 0 {
		return targeting
	}

	receptivity := m.getReceptivity()
	if receptivity.ReceptivityState == "" {
		m.metrics.recordTargetingRequest(false)
		return targeting
	}

	record := map[string]string{targetingKey: receptivity.ReceptivityState}
	for _, code := range adUnitCodes {
		targeting[code] = record
	}

	m.metrics.recordTargetingRequest(true)
	return targeting
}

func (m *Module) onInitialReceptivity(ev scriptload.Event) {
	detail, ok := ev.Detail.(rxapi.Receptivity)
	if !ok || detail.ReceptivityState == "" {
		return
	}

	m.metrics.recordEvent(ev.Type)

	m.mu.Lock()
	m.initial = detail.ReceptivityState
	m.mu.Unlock()

	m.setAdServerTargeting(m.getReceptivity())
}

func (m *Module) onEngineReady(ev scriptload.Event) {
	engine, ok := ev.Detail.(rxapi.Engine)
	if !ok {
		return
	}

	m.metrics.recordEvent(ev.Type)

	m.mu.Lock()
	m.engine = engine
	m.mu.Unlock()
}

// getReceptivity prefers the live engine measurement and falls back to the
// initial value delivered at boot.
func (m *Module) getReceptivity() rxapi.Receptivity {
	m.mu.Lock()
	engine := m.engine
	initial := m.initial
	m.mu.Unlock()

	if engine != nil {
		if current := engine.GetReceptivity(); current.ReceptivityState != "" {
			return current
		}
	}

	return rxapi.Receptivity{ReceptivityState: initial}
}

// setAdServerTargeting queues the measurement as page level targeting. The
// queue defers the command until the ad server is up, so this is safe to
// call at any point of the session.
func (m *Module) setAdServerTargeting(receptivity rxapi.Receptivity) {
	if receptivity.ReceptivityState == "" {
		return
	}

	m.adServer.Push(func(svc adserver.Service) {
		svc.SetTargeting(targetingKey, receptivity.ReceptivityState)
	})
}

func parseConfig(rawConfig json.RawMessage) (moduleConfig, error) {
	var cfg moduleConfig
	if len(rawConfig) > 0 {
		if err := jsonutil.Unmarshal(rawConfig, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.Params.Version == "" {
		return cfg, errors.New("missing required param params.version")
	}
	if cfg.Params.Customer == "" {
		return cfg, errors.New("missing required param params.customer")
	}

	return cfg, nil
}
