// meta/meta.go
package meta

// DefaultPort is the TCP port of the line protocol server.
const DefaultPort = 41869

// DefaultWebSocketPort serves the same protocol over websockets.
const DefaultWebSocketPort = 41870

// WebSocketPath is the endpoint upgraded to a websocket.
const WebSocketPath = "/ws"

// DefaultModelPath is where the frozen policy graph is looked up.
const DefaultModelPath = "saved_graph_file"

// MAX_LINE bounds a protocol line in bytes.
const MAX_LINE = 4096

// EnvPrefix prefixes every environment variable read by config.
const EnvPrefix = "GINRUMMY_"
