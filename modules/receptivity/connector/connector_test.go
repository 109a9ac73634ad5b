package connector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hbkit/hbkit/modules/receptivity/rxapi"
	"github.com/hbkit/hbkit/scriptload"
)

type connectorServer struct {
	mu        sync.Mutex
	state     string
	stateHits int
	bootstrap func(stateURL string) string
}

func (s *connectorServer) setState(state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func newConnectorServer(t *testing.T, bootstrap func(stateURL string) string) (*connectorServer, *httptest.Server) {
	t.Helper()

	cs := &connectorServer{state: "receptive", bootstrap: bootstrap}

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	mux.HandleFunc("/v2/prebid/customer/connector/p.js", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(cs.bootstrap(server.URL + "/state")))
	})
	mux.HandleFunc("/state", func(w http.ResponseWriter, r *http.Request) {
		cs.mu.Lock()
		defer cs.mu.Unlock()
		cs.stateHits++
		w.Write([]byte(`{"ReceptivityState": "` + cs.state + `"}`))
	})

	return cs, server
}

func collectEvents(handle scriptload.Handle, event string) *[]scriptload.Event {
	var events []scriptload.Event
	handle.AddEventListener(event, func(ev scriptload.Event) {
		events = append(events, ev)
	})
	return &events
}

func TestLoadEmitsInitialReceptivity(t *testing.T) {
	_, server := newConnectorServer(t, func(stateURL string) string {
		return `{"initialReceptivity": {"ReceptivityState": "receptive"}}`
	})

	loader := NewLoader(server.Client())
	defer loader.Stop()

	handle, err := loader.Load(context.Background(), server.URL+"/v2/prebid/customer/connector/p.js", "receptivity")
	require.NoError(t, err)
	require.NotNil(t, handle)

	initial := collectEvents(handle, rxapi.EventInitialReceptivity)
	engineReady := collectEvents(handle, rxapi.EventEngineReady)

	require.Len(t, *initial, 1)
	assert.Equal(t, rxapi.Receptivity{ReceptivityState: "receptive"}, (*initial)[0].Detail)
	assert.Empty(t, *engineReady, "no engine endpoint in the bootstrap")
}

func TestLoadEmitsEngineReady(t *testing.T) {
	_, server := newConnectorServer(t, func(stateURL string) string {
		return `{
			"initialReceptivity": {"ReceptivityState": "receptive"},
			"engine": {"stateUrl": "` + stateURL + `"}
		}`
	})

	loader := NewLoader(server.Client())
	defer loader.Stop()

	handle, err := loader.Load(context.Background(), server.URL+"/v2/prebid/customer/connector/p.js", "receptivity")
	require.NoError(t, err)

	engineReady := collectEvents(handle, rxapi.EventEngineReady)
	require.Len(t, *engineReady, 1)

	engine, ok := (*engineReady)[0].Detail.(rxapi.Engine)
	require.True(t, ok, "engine ready detail should satisfy rxapi.Engine")

	assert.Equal(t, rxapi.Receptivity{ReceptivityState: "receptive"}, engine.GetReceptivity(), "engine should be primed before the event fires")
}

func TestLoadSkipsEmptyInitialState(t *testing.T) {
	_, server := newConnectorServer(t, func(stateURL string) string {
		return `{"initialReceptivity": {"ReceptivityState": ""}}`
	})

	loader := NewLoader(server.Client())
	defer loader.Stop()

	handle, err := loader.Load(context.Background(), server.URL+"/v2/prebid/customer/connector/p.js", "receptivity")
	require.NoError(t, err)

	initial := collectEvents(handle, rxapi.EventInitialReceptivity)
	assert.Empty(t, *initial)
}

func TestLoadBootstrapErrors(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	loader := NewLoader(server.Client())
	defer loader.Stop()

	handle, err := loader.Load(context.Background(), server.URL+"/missing.js", "receptivity")
	assert.Nil(t, handle)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load connector for receptivity")
	assert.Contains(t, err.Error(), "returned 404")
}

func TestEngineRefresh(t *testing.T) {
	cs, server := newConnectorServer(t, func(stateURL string) string {
		return `{"engine": {"stateUrl": "` + stateURL + `", "refreshMs": 5}}`
	})

	loader := NewLoader(server.Client())
	defer loader.Stop()

	handle, err := loader.Load(context.Background(), server.URL+"/v2/prebid/customer/connector/p.js", "receptivity")
	require.NoError(t, err)

	engineReady := collectEvents(handle, rxapi.EventEngineReady)
	require.Len(t, *engineReady, 1)
	engine := (*engineReady)[0].Detail.(rxapi.Engine)

	cs.setState("non_receptive")

	assert.Eventually(t, func() bool {
		return engine.GetReceptivity().ReceptivityState == "non_receptive"
	}, time.Second, 5*time.Millisecond, "refresh should pick up the new state")
}

func TestEngineKeepsLastMeasurementOnFailure(t *testing.T) {
	var failing bool
	var mu sync.Mutex

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/state", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if failing {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"ReceptivityState": "receptive"}`))
	})

	engine := &engineClient{httpClient: server.Client(), stateURL: server.URL + "/state"}

	require.NoError(t, engine.Run())
	assert.Equal(t, "receptive", engine.GetReceptivity().ReceptivityState)

	mu.Lock()
	failing = true
	mu.Unlock()

	assert.Error(t, engine.Run())
	assert.Equal(t, "receptive", engine.GetReceptivity().ReceptivityState, "failed refresh should keep the previous measurement")
}
