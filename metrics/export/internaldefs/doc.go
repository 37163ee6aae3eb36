// Package internaldefs holds the shared counter definitions used by the
// metrics exporters. It exists so exporter backends agree on metric names
// without importing each other.
package internaldefs
