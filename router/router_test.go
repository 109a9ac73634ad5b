package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hbkit/hbkit/config"
	"github.com/hbkit/hbkit/openrtb_ext"
)

type testValidator struct{}

func (validator *testValidator) Validate(name openrtb_ext.BidderName, ext json.RawMessage) error {
	return nil
}

func (validator *testValidator) Schema(name openrtb_ext.BidderName) string {
	if name == openrtb_ext.BidderWelect {
		return "{\"welect\":true}"
	} else {
		return "{\"welect\":false}"
	}
}

func ensureHasKey(t *testing.T, data map[string]json.RawMessage, key string) {
	t.Helper()
	if _, ok := data[key]; !ok {
		t.Errorf("Expected map to produce a schema for adapter: %s", key)
	}
}

func TestNewJsonDirectoryServer(t *testing.T) {
	const schemaDirectory = "../static/bidder-params"

	handler := NewJsonDirectoryServer(schemaDirectory, &testValidator{})
	recorder := httptest.NewRecorder()
	request, _ := http.NewRequest("GET", "/whatever", nil)
	handler(recorder, request, nil)

	var data map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &data))

	// Make sure that every schema file has an entry in the blob by the same name.
	schemaFiles, err := os.ReadDir(schemaDirectory)
	require.NoError(t, err, "Failed to open the schema directory")

	for _, schemaFile := range schemaFiles {
		ensureHasKey(t, data, strings.TrimSuffix(schemaFile.Name(), ".json"))
	}

	assert.Equal(t, "application/json", recorder.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"welect":true}`, string(data["welect"]))
}

func TestGetTransport(t *testing.T) {
	testCases := []struct {
		description                 string
		givenClient                 config.HTTPClient
		expectedMaxConnsPerHost     int
		expectedMaxIdleConns        int
		expectedMaxIdleConnsPerHost int
		expectedIdleConnTimeout     time.Duration
	}{
		{
			description:             "Zero values leave the transport limits unset",
			givenClient:             config.HTTPClient{},
			expectedIdleConnTimeout: 0,
		},
		{
			description: "Configured values are applied",
			givenClient: config.HTTPClient{
				MaxConnsPerHost:     50,
				MaxIdleConns:        400,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60,
			},
			expectedMaxConnsPerHost:     50,
			expectedMaxIdleConns:        400,
			expectedMaxIdleConnsPerHost: 10,
			expectedIdleConnTimeout:     60 * time.Second,
		},
	}

	for _, test := range testCases {
		t.Run(test.description, func(t *testing.T) {
			transport := getTransport(&config.Configuration{Client: test.givenClient})

			assert.Equal(t, test.expectedMaxConnsPerHost, transport.MaxConnsPerHost)
			assert.Equal(t, test.expectedMaxIdleConns, transport.MaxIdleConns)
			assert.Equal(t, test.expectedMaxIdleConnsPerHost, transport.MaxIdleConnsPerHost)
			assert.Equal(t, test.expectedIdleConnTimeout, transport.IdleConnTimeout)
		})
	}
}

func TestCORSSupport(t *testing.T) {
	const origin = "https://publisher-domain.com"
	handler := func(w http.ResponseWriter, r *http.Request) {}
	cors := SupportCORS(http.HandlerFunc(handler))
	rr := httptest.NewRecorder()
	req, err := http.NewRequest("OPTIONS", "http://some-domain.com/info/bidders", nil)
	req.Header.Set("Access-Control-Request-Method", "GET")
	req.Header.Set("Access-Control-Request-Headers", "origin")
	req.Header.Set("Origin", origin)

	if !assert.NoError(t, err) {
		return
	}
	cors.ServeHTTP(rr, req)
	assert.Equal(t, origin, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestNoCache(t *testing.T) {
	nc := NoCache{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
	}
	rw := httptest.NewRecorder()
	req, err := http.NewRequest("GET", "http://localhost/nocache", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("ETag", "abcdef")
	nc.ServeHTTP(rw, req)
	h := rw.Header()
	if expected := "no-cache, no-store, must-revalidate"; expected != h.Get("Cache-Control") {
		t.Errorf("invalid cache-control header: expected: %s got: %s", expected, h.Get("Cache-Control"))
	}
	if expected := "no-cache"; expected != h.Get("Pragma") {
		t.Errorf("invalid pragma header: expected: %s got: %s", expected, h.Get("Pragma"))
	}
	if expected := "0"; expected != h.Get("Expires") {
		t.Errorf("invalid expires header: expected: %s got: %s", expected, h.Get("Expires"))
	}
	if expected := ""; expected != h.Get("ETag") {
		t.Errorf("invalid etag header: expected: %s got: %s", expected, h.Get("ETag"))
	}
}
