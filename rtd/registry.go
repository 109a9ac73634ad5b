package rtd

import (
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/hbkit/hbkit/gdpr"
)

// defaultEnrichmentWait bounds how long GetBidRequestData blocks on
// providers which never call done.
const defaultEnrichmentWait = 500 * time.Millisecond

// Registry fans host calls out to the registered providers. Each provider
// which implements VendorIDer is gated on the request consent before any
// of its methods run.
type Registry struct {
	gdprDefaultValue string
	enrichmentWait   time.Duration
	entries          []registryEntry
}

type registryEntry struct {
	provider DataProvider
	vendorID uint16
}

// NewRegistry builds an empty registry. gdprDefaultValue is the host level
// assumption ("0" or "1") applied when a request carries no GDPR signal.
func NewRegistry(gdprDefaultValue string) *Registry {
	return &Registry{
		gdprDefaultValue: gdprDefaultValue,
		enrichmentWait:   defaultEnrichmentWait,
	}
}

// Register adds a provider which already passed Init.
func (r *Registry) Register(provider DataProvider) {
	var vendorID uint16
	if v, ok := provider.(VendorIDer); ok {
		vendorID = v.GVLID()
	}
	r.entries = append(r.entries, registryEntry{provider: provider, vendorID: vendorID})
}

// Names returns the registered provider names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for _, entry := range r.entries {
		names = append(names, entry.provider.Name())
	}
	return names
}

// GetBidRequestData calls every consent cleared provider and returns once
// each has called done, or after the enrichment wait elapses. A second done
// call from a provider is ignored.
func (r *Registry) GetBidRequestData(adUnitCodes []string, consent UserConsent) {
	signal := gdpr.SignalNormalize(consent.GDPR, r.gdprDefaultValue)

	var wg sync.WaitGroup
	for _, entry := range r.entries {
		if !gdpr.VendorAllowed(entry.vendorID, signal, consent.Consent) {
			glog.Infof("rtd: skipping provider %s, vendor %d lacks consent", entry.provider.Name(), entry.vendorID)
			continue
		}

		wg.Add(1)
		var once sync.Once
		done := func() {
			once.Do(wg.Done)
		}
		entry.provider.GetBidRequestData(adUnitCodes, done, consent)
	}

	if !waitWithBound(&wg, r.enrichmentWait) {
		glog.Warningf("rtd: enrichment abandoned after %s, a provider never called done", r.enrichmentWait)
	}
}

// GetTargetingData merges targeting from every consent cleared provider.
// When two providers emit the same key for the same ad unit, the later
// registration wins.
func (r *Registry) GetTargetingData(adUnitCodes []string, consent UserConsent) map[string]map[string]string {
	signal := gdpr.SignalNormalize(consent.GDPR, r.gdprDefaultValue)

	merged := make(map[string]map[string]string)
	for _, entry := range r.entries {
		if !gdpr.VendorAllowed(entry.vendorID, signal, consent.Consent) {
			glog.Infof("rtd: skipping provider %s, vendor %d lacks consent", entry.provider.Name(), entry.vendorID)
			continue
		}

		for code, keyValues := range entry.provider.GetTargetingData(adUnitCodes, consent) {
			slot, ok := merged[code]
			if !ok {
				slot = make(map[string]string, len(keyValues))
				merged[code] = slot
			}
			for key, value := range keyValues {
				slot[key] = value
			}
		}
	}
	return merged
}

func waitWithBound(wg *sync.WaitGroup, bound time.Duration) bool {
	if bound <= 0 {
		wg.Wait()
		return true
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return true
	case <-time.After(bound):
		return false
	}
}
