// Package infra contains technical adapters: the in-memory store and
// seed loader, the MQTT tracking publisher, metrics exporters and the
// zerolog logger. These packages depend only on the interfaces defined
// in the core packages.
package infra
