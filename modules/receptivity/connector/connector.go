// Package connector boots the receptivity vendor runtime. The browser
// counterpart is the vendor's p.js script tag; here the Loader fetches the
// connector bootstrap document from the same URL and raises the events the
// script would raise, including standing up a polling engine for live reads.
package connector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/buger/jsonparser"
	"github.com/golang/glog"
	"golang.org/x/net/context/ctxhttp"

	"github.com/hbkit/hbkit/modules/receptivity/rxapi"
	"github.com/hbkit/hbkit/scriptload"
	"github.com/hbkit/hbkit/util/task"
)

const stateRequestTimeout = 5 * time.Second

// Loader implements scriptload.Loader for receptivity connector URLs.
type Loader struct {
	httpClient *http.Client

	mu    sync.Mutex
	tasks []*task.TickerTask
}

func NewLoader(httpClient *http.Client) *Loader {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Loader{httpClient: httpClient}
}

// Load fetches the bootstrap document at url and replays the connector boot
// sequence on the returned handle. The document carries the first
// measurement and, optionally, the engine state endpoint to poll:
//
//	{
//	  "initialReceptivity": {"ReceptivityState": "receptive"},
//	  "engine": {"stateUrl": "https://...", "refreshMs": 30000}
//	}
func (l *Loader) Load(ctx context.Context, url string, moduleName string) (scriptload.Handle, error) {
	body, err := l.fetchBootstrap(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to load connector for %s: %w", moduleName, err)
	}

	handle := scriptload.NewHandle()

	if state, err := jsonparser.GetString(body, "initialReceptivity", "ReceptivityState"); err == nil && state != "" {
		handle.Emit(rxapi.EventInitialReceptivity, rxapi.Receptivity{ReceptivityState: state})
	}

	if stateURL, err := jsonparser.GetString(body, "engine", "stateUrl"); err == nil && stateURL != "" {
		refreshMs, _ := jsonparser.GetInt(body, "engine", "refreshMs")

		engine := &engineClient{httpClient: l.httpClient, stateURL: stateURL}
		refresh := task.NewTickerTask(time.Duration(refreshMs)*time.Millisecond, engine)
		refresh.Start()
		l.track(refresh)

		handle.Emit(rxapi.EventEngineReady, engine)
	}

	return handle, nil
}

// Stop ends the refresh schedule of every engine this loader booted.
func (l *Loader) Stop() {
	l.mu.Lock()
	tasks := l.tasks
	l.tasks = nil
	l.mu.Unlock()

	for _, t := range tasks {
		t.Stop()
	}
}

func (l *Loader) track(t *task.TickerTask) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tasks = append(l.tasks, t)
}

func (l *Loader) fetchBootstrap(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build GET %s request: %v", url, err)
	}

	resp, err := ctxhttp.Do(ctx, l.httpClient, req)
	if err != nil {
		return nil, fmt.Errorf("error calling GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s returned %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body from GET %s: %v", url, err)
	}

	return body, nil
}

// engineClient polls the vendor state endpoint and serves the latest
// measurement. It implements rxapi.Engine for readers and task.Runner for
// the refresh schedule.
type engineClient struct {
	httpClient *http.Client
	stateURL   string

	mu      sync.Mutex
	current rxapi.Receptivity
}

func (c *engineClient) GetReceptivity() rxapi.Receptivity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Run refreshes the measurement once. A failed refresh keeps the previous
// measurement in place.
func (c *engineClient) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), stateRequestTimeout)
	defer cancel()

	req, err := http.NewRequest("GET", c.stateURL, nil)
	if err != nil {
		glog.Errorf("receptivity: failed to build GET %s request: %v", c.stateURL, err)
		return err
	}

	resp, err := ctxhttp.Do(ctx, c.httpClient, req)
	if err != nil {
		glog.Warningf("receptivity: error calling GET %s: %v", c.stateURL, err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		glog.Warningf("receptivity: GET %s returned %d", c.stateURL, resp.StatusCode)
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		glog.Warningf("receptivity: error reading response body from GET %s: %v", c.stateURL, err)
		return err
	}

	state, err := jsonparser.GetString(body, "ReceptivityState")
	if err != nil {
		glog.Warningf("receptivity: GET %s returned malformed state: %v", c.stateURL, err)
		return err
	}

	c.mu.Lock()
	c.current = rxapi.Receptivity{ReceptivityState: state}
	c.mu.Unlock()

	return nil
}
