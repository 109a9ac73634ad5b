// Package rxapi holds the receptivity vendor surface shared by the
// connector runtime and the modules consuming it.
package rxapi

// Receptivity is one attentiveness measurement for the current viewer.
type Receptivity struct {
	ReceptivityState string `json:"ReceptivityState"`
}

// Engine serves live receptivity reads once the vendor engine has warmed up.
// An engine whose measurement is not ready yet returns the zero Receptivity.
type Engine interface {
	GetReceptivity() Receptivity
}

// Events the connector raises on its script handle while booting.
const (
	// EventInitialReceptivity carries a Receptivity detail with the first
	// measurement of the session.
	EventInitialReceptivity = "initialReceptivity"

	// EventEngineReady carries an Engine detail for live reads.
	EventEngineReady = "rxEngineIsReady"
)
