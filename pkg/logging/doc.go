// Package logging builds the zap logger shared by the iotwatch binaries.
//
// New returns a production (JSON) logger whose level lives in a
// zap.AtomicLevel, so a config reload can change verbosity without
// rebuilding the logger.
package logging
