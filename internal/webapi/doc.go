// Package webapi serves the HTTP control surface: session start/stop,
// status, catalog browsing, file download, and a websocket live stream.
package webapi
