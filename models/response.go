package models

// ErrorMessageResponse returns the error message response struct
type ErrorMessageResponse struct {
	Response MessageError
}

// MessageError contains the inner details for the error message response
type MessageError struct {
	Message string
	Error   string
}

// HealthCheckResponse is returned by the liveness endpoint
type HealthCheckResponse struct {
	Alive bool `json:"alive"`
}

// ReportDetailsResponse wraps a report together with its audit trail
type ReportDetailsResponse struct {
	Report    EmergencyReport     `json:"report"`
	Responses []EmergencyResponse `json:"responses"`
}

// ReportListResponse is a page of reports
type ReportListResponse struct {
	Reports []EmergencyReport `json:"reports"`
	Page    int               `json:"page"`
	Limit   int               `json:"limit"`
}
