package jsonutil

import (
	"encoding/json"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/hbkit/hbkit/errortypes"
)

var jsonConfValidationOn = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

var jsonConfValidationOff = jsoniter.Config{
	EscapeHTML:  true,
	SortMapKeys: true,
}.Froze()

// Unmarshal unmarshals a byte slice into the specified data structure without performing
// any validation on the data. An unmarshal error is returned if a non-validation error occurs.
func Unmarshal(data []byte, v interface{}) error {
	err := jsonConfValidationOff.Unmarshal(data, v)
	if err != nil {
		return &errortypes.FailedToUnmarshal{
			Message: tryExtractErrorMessage(err),
		}
	}
	return nil
}

// UnmarshalValid validates and unmarshals a byte slice into the specified data structure
// returning an unmarshal error if validation fails.
func UnmarshalValid(data []byte, v interface{}) error {
	if err := jsonConfValidationOn.Unmarshal(data, v); err != nil {
		return &errortypes.FailedToUnmarshal{
			Message: tryExtractErrorMessage(err),
		}
	}
	return nil
}

// Marshal marshals a data structure into a byte slice performing validation on
// json.RawMessage fields. A marshal error is returned if any error occurs.
func Marshal(v interface{}) ([]byte, error) {
	data, err := jsonConfValidationOn.Marshal(v)
	if err != nil {
		return nil, &errortypes.FailedToMarshal{
			Message: err.Error(),
		}
	}
	return data, nil
}

// IsValid checks if a byte slice is valid JSON.
func IsValid(data []byte) bool {
	return json.Valid(data)
}

// tryExtractErrorMessage attempts to trim the error messages returned by the json-iter
// library down to their useful core. The errors are not typed and carry internal context
// which is noise for callers.
func tryExtractErrorMessage(err error) string {
	msg := err.Error()

	operationIndex := strings.Index(msg, ": ")
	if operationIndex == -1 {
		return msg
	}

	detailIndex := strings.LastIndex(msg, ", error found in")
	if detailIndex == -1 || detailIndex < operationIndex {
		return msg
	}

	return msg[operationIndex+2 : detailIndex]
}
