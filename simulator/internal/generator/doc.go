// Package generator drives a fleet of simulated devices.
//
// Each device runs in its own goroutine and, once per tick, posts a reading
// with a uniformly random field_a in [0, MaxValue]. A failed post is logged
// against the device and counted; the device carries on with a fresh reading
// on its next tick.
package generator
