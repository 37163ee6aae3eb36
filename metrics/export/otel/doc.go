// Package otel exports the engine's counter snapshot as OpenTelemetry
// observable counters. Collection is pull-based: counter values are read
// from the engine only when the meter provider collects.
package otel
