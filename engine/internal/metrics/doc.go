// Package metrics defines the Prometheus instruments of the rule engine.
//
// New registers every collector on the given registerer, so each engine
// instance (and each test) can own its registry. All methods are safe to call
// on a nil *Metrics, which records nothing.
package metrics
