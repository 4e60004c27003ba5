// Package audit defines the engine's structured security event model and
// the asynchronous dispatcher that forwards events to a configured sink.
// The engine never blocks a request on audit delivery; under backpressure
// the dispatcher either drops (with a counter) or waits on the caller's
// context, per configuration.
package audit
