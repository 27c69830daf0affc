package models

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus represents the overall system status.
type SystemStatus struct {
	Status       HealthStatus           `json:"status"`
	Time         Timestamp              `json:"time"`
	City         string                 `json:"city"`
	Dependencies []DependencyStatus     `json:"dependencies"`
	Cache        CacheStatus            `json:"cache"`
	Sessions     int                    `json:"sessions"`
	Warmup       map[string]interface{} `json:"warmup,omitempty"`
}

// DependencyStatus represents the breaker state of a guarded dependency.
type DependencyStatus struct {
	Name          string       `json:"name"`
	Status        HealthStatus `json:"status"`
	CircuitState  string       `json:"circuitState"`
	Failures      uint32       `json:"consecutiveFailures"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       *string      `json:"message,omitempty"`
}

// CacheStatus reports the dashboard load cache.
type CacheStatus struct {
	Size     int   `json:"size"`
	Capacity int   `json:"capacity"`
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
}
