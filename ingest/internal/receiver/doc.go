// Package receiver implements the ingest HTTP endpoint.
//
// POST /data accepts one telemetry JSON object. The body is validated
// against the inbound message contract, optionally archived, and published
// to the transport subject the rule engine consumes from.
//
//	200 {"status":"success"}       accepted and published
//	400 {"error":"..."}            body is not a valid telemetry object
//	413 {"error":"..."}            body exceeds the size limit
//	500 {"error":"..."}            archive write failed
//	503 {"error":"..."}            publish failed
package receiver
