package modules

import (
	"fmt"

	"github.com/hbkit/hbkit/rtd"
)

// asDataProvider checks that a built module exposes the contract the host
// can drive.
func asDataProvider(id string, module interface{}) (rtd.DataProvider, error) {
	provider, ok := module.(rtd.DataProvider)
	if !ok {
		return nil, fmt.Errorf(`module "%s" does not implement any supported provider interface`, id)
	}

	return provider, nil
}
