package protocol

// Method names understood by the server dispatch and the counterpart.
const (
	MethodInitialize       = "initialize"
	MethodPing             = "ping"
	MethodCapabilities     = "capabilities/get"
	MethodToolsList        = "tools/list"
	MethodToolsCall        = "tools/call"
	MethodOrchestrateRun   = "orchestrate/run"
	MethodCreateMessage    = "sampling/createMessage"
	MethodNotifInitialized = "notifications/initialized"
	MethodNotifCancelled   = "notifications/cancelled"
)

// ClientCapabilities is what a connecting client declares at initialize.
// The orchestrator consults Sampling and Tools before issuing tool-augmented
// requests so it can fail fast on an unsupported counterpart.
type ClientCapabilities struct {
	Sampling  bool `json:"sampling"`
	Tools     bool `json:"tools"`
	Resources bool `json:"resources,omitempty"`
}

// ServerCapabilities is what the server reports through the read-only
// capability query.
type ServerCapabilities struct {
	Tools         bool `json:"tools"`
	Orchestration bool `json:"orchestration"`
	Resumable     bool `json:"resumable"`
	Subscriptions bool `json:"subscriptions,omitempty"`
}

// InitializeParams is the body of an initialize request.
type InitializeParams struct {
	ClientName    string             `json:"clientName,omitempty"`
	ClientVersion string             `json:"clientVersion,omitempty"`
	Capabilities  ClientCapabilities `json:"capabilities"`
}

// InitializeResult answers an initialize request.
type InitializeResult struct {
	ServerName    string             `json:"serverName"`
	ServerVersion string             `json:"serverVersion"`
	SessionID     string             `json:"sessionId"`
	Capabilities  ServerCapabilities `json:"capabilities"`
}
