package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ErrorResponse is returned with every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// Format describes one output format.
type Format struct {
	Name      string `json:"name"`
	Extension string `json:"extension"`
	MediaType string `json:"mediaType"`
	Family    string `json:"family"`
}

// FormatsResponse lists the supported output formats.
type FormatsResponse struct {
	Formats []Format `json:"formats"`
}

// InstanceStatus describes one office instance.
type InstanceStatus struct {
	ID      int    `json:"id"`
	Port    int    `json:"port"`
	PID     int    `json:"pid"`
	Busy    bool   `json:"busy"`
	Profile string `json:"profile"`
}

// EngineStatus summarizes the conversion engine.
type EngineStatus struct {
	State     string           `json:"state"`
	Since     string           `json:"since,omitempty"`
	InFlight  int              `json:"inFlight"`
	Capacity  int              `json:"capacity"`
	Formats   int              `json:"formats"`
	LastError string           `json:"lastError,omitempty"`
	Instances []InstanceStatus `json:"instances,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Version     string `json:"version,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// ScratchStatus reports scratch storage usage.
type ScratchStatus struct {
	Dir       string `json:"dir"`
	Files     int    `json:"files"`
	Bytes     int64  `json:"bytes"`
	FreeBytes uint64 `json:"freeBytes,omitempty"`
}

// StatusResponse aggregates gateway runtime information for API consumers.
type StatusResponse struct {
	PID          int                `json:"pid"`
	Listen       string             `json:"listen"`
	StartedAt    string             `json:"startedAt,omitempty"`
	UploadCap    int64              `json:"uploadCap"`
	Engine       EngineStatus       `json:"engine"`
	Scratch      ScratchStatus      `json:"scratch"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// HealthResponse is the body of the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Engine string `json:"engine"`
}
