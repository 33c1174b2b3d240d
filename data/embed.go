// Package data holds the example data shipped with the service.
package data

import (
	_ "embed"
)

// Fixture is the example data set in the seed fixture format.
//
//go:embed fixture.yaml
var Fixture []byte
