package realtimedata

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hbkit/hbkit/adserver"
	"github.com/hbkit/hbkit/modules/moduledeps"
	"github.com/hbkit/hbkit/modules/receptivity/rxapi"
	"github.com/hbkit/hbkit/rtd"
	"github.com/hbkit/hbkit/scriptload"
)

var validConfig = json.RawMessage(`{"enabled": true, "params": {"version": "v2", "customer": "cust123"}}`)

type fakeLoader struct {
	handle *scriptload.ScriptHandle
	err    error
	urls   []string
	names  []string
}

func (l *fakeLoader) Load(ctx context.Context, url string, moduleName string) (scriptload.Handle, error) {
	l.urls = append(l.urls, url)
	l.names = append(l.names, moduleName)
	if l.err != nil {
		return nil, l.err
	}
	if l.handle == nil {
		return nil, nil
	}
	return l.handle, nil
}

type stubEngine struct {
	receptivity rxapi.Receptivity
}

func (e stubEngine) GetReceptivity() rxapi.Receptivity {
	return e.receptivity
}

func buildModule(t *testing.T, deps moduledeps.ModuleDeps) *Module {
	t.Helper()

	module, err := Builder(nil, deps)
	require.NoError(t, err)

	return module.(*Module)
}

func TestBuilder(t *testing.T) {
	module, err := Builder(nil, moduledeps.ModuleDeps{})
	require.NoError(t, err)

	provider, ok := module.(rtd.DataProvider)
	require.True(t, ok, "module should implement the data provider contract")
	assert.Equal(t, "receptivity", provider.Name())
}

func TestInitConfigValidation(t *testing.T) {
	testCases := []struct {
		description string
		config      json.RawMessage
		expectInit  bool
		expectLoads int
	}{
		{
			description: "valid",
			config:      validConfig,
			expectInit:  true,
			expectLoads: 1,
		},
		{
			description: "missing-version",
			config:      json.RawMessage(`{"params": {"customer": "cust123"}}`),
			expectInit:  false,
		},
		{
			description: "missing-customer",
			config:      json.RawMessage(`{"params": {"version": "v2"}}`),
			expectInit:  false,
		},
		{
			description: "empty-version",
			config:      json.RawMessage(`{"params": {"version": "", "customer": "cust123"}}`),
			expectInit:  false,
		},
		{
			description: "non-string-version",
			config:      json.RawMessage(`{"params": {"version": 7, "customer": "cust123"}}`),
			expectInit:  false,
		},
		{
			description: "malformed-json",
			config:      json.RawMessage(`{"params"`),
			expectInit:  false,
		},
		{
			description: "no-config",
			config:      nil,
			expectInit:  false,
		},
	}

	for _, test := range testCases {
		t.Run(test.description, func(t *testing.T) {
			loader := &fakeLoader{handle: scriptload.NewHandle()}
			module := buildModule(t, moduledeps.ModuleDeps{ScriptLoader: loader})

			assert.Equal(t, test.expectInit, module.Init(test.config))
			assert.Len(t, loader.urls, test.expectLoads)
		})
	}
}

func TestInitBuildsConnectorURL(t *testing.T) {
	loader := &fakeLoader{handle: scriptload.NewHandle()}
	module := buildModule(t, moduledeps.ModuleDeps{ScriptLoader: loader})

	require.True(t, module.Init(validConfig))

	require.Len(t, loader.urls, 1)
	assert.Equal(t, "https://api.receptivity.io/v2/prebid/cust123/connector/p.js", loader.urls[0])
	assert.Equal(t, []string{"receptivity"}, loader.names)
}

func TestInitToleratesDeclinedLoad(t *testing.T) {
	module := buildModule(t, moduledeps.ModuleDeps{ScriptLoader: &fakeLoader{}})

	assert.True(t, module.Init(validConfig))
	assert.Empty(t, module.GetTargetingData([]string{"div-1"}, rtd.UserConsent{}))
}

func TestInitToleratesLoadError(t *testing.T) {
	loader := &fakeLoader{err: errors.New("connector unreachable")}
	module := buildModule(t, moduledeps.ModuleDeps{ScriptLoader: loader})

	assert.True(t, module.Init(validConfig))
	assert.Empty(t, module.GetTargetingData([]string{"div-1"}, rtd.UserConsent{}))
}

func TestInitResetsState(t *testing.T) {
	loader := &fakeLoader{handle: scriptload.NewHandle()}
	module := buildModule(t, moduledeps.ModuleDeps{ScriptLoader: loader})

	require.True(t, module.Init(validConfig))
	loader.handle.Emit(rxapi.EventInitialReceptivity, rxapi.Receptivity{ReceptivityState: "receptive"})
	require.NotEmpty(t, module.GetTargetingData([]string{"div-1"}, rtd.UserConsent{}))

	assert.False(t, module.Init(json.RawMessage(`{}`)))
	assert.Empty(t, module.GetTargetingData([]string{"div-1"}, rtd.UserConsent{}), "a new init should drop the previous session state")
}

func TestInitialReceptivityEvent(t *testing.T) {
	queue := adserver.NewQueue()
	loader := &fakeLoader{handle: scriptload.NewHandle()}
	module := buildModule(t, moduledeps.ModuleDeps{ScriptLoader: loader, AdServer: queue})

	require.True(t, module.Init(validConfig))
	loader.handle.Emit(rxapi.EventInitialReceptivity, rxapi.Receptivity{ReceptivityState: "receptive"})

	expected := map[string]map[string]string{
		"div-1": {"ReceptivityState": "receptive"},
		"div-2": {"ReceptivityState": "receptive"},
	}
	assert.Equal(t, expected, module.GetTargetingData([]string{"div-1", "div-2"}, rtd.UserConsent{}))

	// The event pushed targeting while the ad server was still booting.
	service := adserver.NewSlotService("div-1")
	queue.SetService(service)
	assert.Equal(t, map[string]string{"ReceptivityState": "receptive"}, service.Targeting("div-1"))
}

func TestInitialReceptivityEventIgnoresBadDetail(t *testing.T) {
	loader := &fakeLoader{handle: scriptload.NewHandle()}
	module := buildModule(t, moduledeps.ModuleDeps{ScriptLoader: loader})

	require.True(t, module.Init(validConfig))
	loader.handle.Emit(rxapi.EventInitialReceptivity, "not-a-receptivity")
	loader.handle.Emit(rxapi.EventInitialReceptivity, rxapi.Receptivity{})

	assert.Empty(t, module.GetTargetingData([]string{"div-1"}, rtd.UserConsent{}))
}

func TestEngineOverridesInitial(t *testing.T) {
	loader := &fakeLoader{handle: scriptload.NewHandle()}
	module := buildModule(t, moduledeps.ModuleDeps{ScriptLoader: loader})

	require.True(t, module.Init(validConfig))
	loader.handle.Emit(rxapi.EventInitialReceptivity, rxapi.Receptivity{ReceptivityState: "receptive"})
	loader.handle.Emit(rxapi.EventEngineReady, stubEngine{rxapi.Receptivity{ReceptivityState: "non_receptive"}})

	assert.Equal(t, rxapi.Receptivity{ReceptivityState: "non_receptive"}, module.getReceptivity(), "live engine reads win over the initial value")
}

func TestEmptyEngineFallsBackToInitial(t *testing.T) {
	loader := &fakeLoader{handle: scriptload.NewHandle()}
	module := buildModule(t, moduledeps.ModuleDeps{ScriptLoader: loader})

	require.True(t, module.Init(validConfig))
	loader.handle.Emit(rxapi.EventInitialReceptivity, rxapi.Receptivity{ReceptivityState: "receptive"})
	loader.handle.Emit(rxapi.EventEngineReady, stubEngine{})

	assert.Equal(t, rxapi.Receptivity{ReceptivityState: "receptive"}, module.getReceptivity())
}

func TestEngineBeforeInitialEvent(t *testing.T) {
	loader := &fakeLoader{handle: scriptload.NewHandle()}
	module := buildModule(t, moduledeps.ModuleDeps{ScriptLoader: loader})

	require.True(t, module.Init(validConfig))
	loader.handle.Emit(rxapi.EventEngineReady, stubEngine{rxapi.Receptivity{ReceptivityState: "receptive"}})

	assert.Equal(t, rxapi.Receptivity{ReceptivityState: "receptive"}, module.getReceptivity(), "event order must not matter")
}

func TestGetBidRequestData(t *testing.T) {
	queue := adserver.NewQueue()
	loader := &fakeLoader{handle: scriptload.NewHandle()}
	module := buildModule(t, moduledeps.ModuleDeps{ScriptLoader: loader, AdServer: queue})

	require.True(t, module.Init(validConfig))
	loader.handle.Emit(rxapi.EventInitialReceptivity, rxapi.Receptivity{ReceptivityState: "receptive"})

	service := adserver.NewSlotService("div-1")
	queue.SetService(service)

	var doneCalls int
	module.GetBidRequestData([]string{"div-1"}, func() { doneCalls++ }, rtd.UserConsent{})

	assert.Equal(t, 1, doneCalls, "done must be called exactly once")
	assert.Equal(t, map[string]string{"ReceptivityState": "receptive"}, service.Targeting("div-1"))
}

func TestGetBidRequestDataWithoutState(t *testing.T) {
	module := buildModule(t, moduledeps.ModuleDeps{ScriptLoader: &fakeLoader{}})
	require.True(t, module.Init(validConfig))

	var doneCalls int
	module.GetBidRequestData(nil, func() { doneCalls++ }, rtd.UserConsent{})

	assert.Equal(t, 1, doneCalls, "done must be called even with nothing to contribute")
}

func TestGetTargetingDataEmptyCases(t *testing.T) {
	loader := &fakeLoader{handle: scriptload.NewHandle()}
	module := buildModule(t, moduledeps.ModuleDeps{ScriptLoader: loader})
	require.True(t, module.Init(validConfig))

	assert.Empty(t, module.GetTargetingData([]string{"div-1"}, rtd.UserConsent{}), "no state known yet")

	loader.handle.Emit(rxapi.EventInitialReceptivity, rxapi.Receptivity{ReceptivityState: "receptive"})
	assert.Empty(t, module.GetTargetingData(nil, rtd.UserConsent{}), "no ad units requested")
}

func TestMetricsExported(t *testing.T) {
	registry := prometheus.NewRegistry()
	loader := &fakeLoader{handle: scriptload.NewHandle()}
	module := buildModule(t, moduledeps.ModuleDeps{ScriptLoader: loader, PrometheusGatherer: registry})

	require.True(t, module.Init(validConfig))
	loader.handle.Emit(rxapi.EventInitialReceptivity, rxapi.Receptivity{ReceptivityState: "receptive"})
	module.GetTargetingData([]string{"div-1"}, rtd.UserConsent{})

	families, err := registry.Gather()
	require.NoError(t, err)

	names := make(map[string]struct{}, len(families))
	for _, family := range families {
		names[family.GetName()] = struct{}{}
	}

	assert.Contains(t, names, "receptivity_connector_loads")
	assert.Contains(t, names, "receptivity_connector_events")
	assert.Contains(t, names, "receptivity_targeting_requests")
}
