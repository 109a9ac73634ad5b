package adapterstest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prebid/openrtb/v20/openrtb2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"

	"github.com/hbkit/hbkit/adapters"
	"github.com/hbkit/hbkit/util/jsonutil"
)

// RunJSONBidderTest runs all the *.json sample files found under rootDir through the bidder.
//
//	rootDir/exemplary:    tests which never expect errors from the bidder
//	rootDir/supplemental: tests which assert the errors the bidder returns
//
// Each file holds a mock bid request, the http calls the bidder is expected to make
// for it with their mocked responses, and the bids the bidder should produce from those.
func RunJSONBidderTest(t *testing.T, rootDir string, bidder adapters.Bidder) {
	t.Helper()

	runSpecs(t, filepath.Join(rootDir, "exemplary"), bidder, false)
	runSpecs(t, filepath.Join(rootDir, "supplemental"), bidder, true)
}

func runSpecs(t *testing.T, dir string, bidder adapters.Bidder, allowErrors bool) {
	t.Helper()

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return
	}

	specFiles, err := os.ReadDir(dir)
	require.NoErrorf(t, err, "Failed to read contents of directory %s", dir)

	for _, specFile := range specFiles {
		if !strings.HasSuffix(specFile.Name(), ".json") {
			continue
		}

		fileName := filepath.Join(dir, specFile.Name())
		t.Run(fileName, func(t *testing.T) {
			spec := loadSpec(t, fileName)

			if !allowErrors {
				require.Emptyf(t, spec.MakeRequestErrors, "exemplary spec %s must not expect MakeRequests errors", fileName)
				require.Emptyf(t, spec.MakeBidsErrors, "exemplary spec %s must not expect MakeBids errors", fileName)
			}

			runSpec(t, spec, bidder)
		})
	}
}

type bidderTestSpec struct {
	BidRequest        json.RawMessage       `json:"mockBidRequest"`
	HttpCalls         []httpCall            `json:"httpCalls"`
	BidResponses      []expectedBidResponse `json:"expectedBidResponses"`
	MakeRequestErrors []expectedError       `json:"expectedMakeRequestsErrors"`
	MakeBidsErrors    []expectedError       `json:"expectedMakeBidsErrors"`
}

type httpCall struct {
	Request  httpRequest  `json:"expectedRequest"`
	Response httpResponse `json:"mockResponse"`
}

type httpRequest struct {
	Uri    string          `json:"uri"`
	Body   json.RawMessage `json:"body"`
	ImpIDs []string        `json:"impIDs"`
}

type httpResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

type expectedBidResponse struct {
	Currency string        `json:"currency"`
	Bids     []expectedBid `json:"bids"`
}

type expectedBid struct {
	Bid  json.RawMessage `json:"bid"`
	Type string          `json:"type"`
}

type expectedError struct {
	Value string `json:"value"`
	// Comparison is "literal" or "startswith". Defaults to literal.
	Comparison string `json:"comparison"`
}

func loadSpec(t *testing.T, fileName string) *bidderTestSpec {
	t.Helper()

	specData, err := os.ReadFile(fileName)
	require.NoErrorf(t, err, "Failed to read file %s", fileName)

	var spec bidderTestSpec
	require.NoErrorf(t, jsonutil.UnmarshalValid(specData, &spec), "Failed to unmarshal JSON from file %s", fileName)

	return &spec
}

func runSpec(t *testing.T, spec *bidderTestSpec, bidder adapters.Bidder) {
	t.Helper()

	var request openrtb2.BidRequest
	require.NoError(t, jsonutil.UnmarshalValid(spec.BidRequest, &request), "Failed to unmarshal mockBidRequest")

	actualRequests, errs := bidder.MakeRequests(&request, &adapters.ExtraRequestInfo{})
	assertErrorList(t, "MakeRequests", errs, spec.MakeRequestErrors)
	assertMakeRequestsOutput(t, actualRequests, spec.HttpCalls)

	var bidResponses []*adapters.BidderResponse
	var bidErrs []error
	for i, actual := range actualRequests {
		if i >= len(spec.HttpCalls) {
			break
		}

		mock := spec.HttpCalls[i].Response
		response, errsThisCall := bidder.MakeBids(&request, actual, &adapters.ResponseData{
			StatusCode: mock.Status,
			Body:       mock.Body,
		})
		if response != nil {
			bidResponses = append(bidResponses, response)
		}
		bidErrs = append(bidErrs, errsThisCall...)
	}

	assertErrorList(t, "MakeBids", bidErrs, spec.MakeBidsErrors)
	assertMakeBidsOutput(t, bidResponses, spec.BidResponses)
}

func assertMakeRequestsOutput(t *testing.T, actual []*adapters.RequestData, expected []httpCall) {
	t.Helper()

	if !assert.Lenf(t, actual, len(expected), "MakeRequests returned %d requests. Expected %d", len(actual), len(expected)) {
		return
	}

	for i, call := range expected {
		assert.Equalf(t, call.Request.Uri, actual[i].Uri, "request[%d] uri", i)
		assert.ElementsMatchf(t, call.Request.ImpIDs, actual[i].ImpIDs, "request[%d] impIDs", i)
		diffJson(t, "request body", actual[i].Body, call.Request.Body)
	}
}

func assertMakeBidsOutput(t *testing.T, actual []*adapters.BidderResponse, expected []expectedBidResponse) {
	t.Helper()

	if !assert.Lenf(t, actual, len(expected), "MakeBids returned %d responses. Expected %d", len(actual), len(expected)) {
		return
	}

	for i, expectedResponse := range expected {
		if expectedResponse.Currency != "" {
			assert.Equalf(t, expectedResponse.Currency, actual[i].Currency, "response[%d] currency", i)
		}

		if !assert.Lenf(t, actual[i].Bids, len(expectedResponse.Bids), "response[%d] bid count", i) {
			continue
		}

		for j, expectedBid := range expectedResponse.Bids {
			actualBid := actual[i].Bids[j]
			assert.Equalf(t, expectedBid.Type, string(actualBid.BidType), "response[%d] bid[%d] type", i, j)

			actualJson, err := jsonutil.Marshal(actualBid.Bid)
			require.NoErrorf(t, err, "response[%d] bid[%d] failed to marshal", i, j)
			diffJson(t, "bid", actualJson, expectedBid.Bid)
		}
	}
}

func assertErrorList(t *testing.T, description string, actual []error, expected []expectedError) {
	t.Helper()

	if !assert.Lenf(t, actual, len(expected), "%s returned wrong error count. Got %v", description, actual) {
		return
	}

	for i, expectedErr := range expected {
		switch expectedErr.Comparison {
		case "", "literal":
			assert.Equalf(t, expectedErr.Value, actual[i].Error(), "%s error[%d]", description, i)
		case "startswith":
			assert.Truef(t, strings.HasPrefix(actual[i].Error(), expectedErr.Value),
				"%s error[%d] %q does not start with %q", description, i, actual[i].Error(), expectedErr.Value)
		default:
			t.Fatalf("invalid comparison type %q", expectedErr.Comparison)
		}
	}
}

// diffJson compares two JSON byte payloads and prints a readable diff on mismatch.
func diffJson(t *testing.T, description string, actual []byte, expected []byte) {
	t.Helper()

	if len(actual) == 0 && len(expected) == 0 {
		return
	}
	if len(actual) == 0 || len(expected) == 0 {
		t.Fatalf("%s json comparison: one payload is empty", description)
	}

	diff, err := gojsondiff.New().Compare(actual, expected)
	require.NoErrorf(t, err, "%s json diff failed", description)

	if diff.Modified() {
		var left interface{}
		require.NoErrorf(t, jsonutil.UnmarshalValid(actual, &left), "%s json did not match, but unmarshalling failed", description)
		printer := formatter.NewAsciiFormatter(left, formatter.AsciiFormatterConfig{
			ShowArrayIndex: true,
		})
		output, err := printer.Format(diff)
		require.NoErrorf(t, err, "%s json did not match, but diff formatting failed", description)
		t.Errorf("%s json did not match expected.\n\n%s", description, output)
	}
}
