// Package sim provides a deterministic discrete-event engine for simulating
// distributed protocols without real network I/O or wall-clock timing.
//
// A run is driven by a single-threaded engine that pops events from a queue
// ordered by virtual time and sequence number, advances the virtual clock,
// and dispatches each event to the node it targets. Nodes react to events by
// emitting messages; the network turns messages into future events using
// delays that are either fixed or drawn from a seeded random source. Two
// runs constructed with the same seed produce bit-identical delivery logs on
// any host.
package sim
