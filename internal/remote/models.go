package remote

import "encoding/json"

// AuthRequest is the credential payload for the token endpoint
type AuthRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse carries the issued JWT access token
type AuthResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// Profile is the authenticated user's identity as reported by the server
type Profile struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
}

// ReferencePayload is the create request for a reference record.
// It carries fields only; local ids never leave the device.
type ReferencePayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ReferenceResponse is a server-authoritative reference record
type ReferenceResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// FarmerPayload is the create request for a farmer submission. The farm
// type and crop references are canonical server ids.
type FarmerPayload struct {
	FarmerName string `json:"farmer_name"`
	NationalID string `json:"national_id"`
	FarmType   int64  `json:"farm_type"`
	Crop       int64  `json:"crop"`
	Location   string `json:"location"`
}

// FarmerResponse acknowledges a created farmer submission
type FarmerResponse struct {
	ID int64 `json:"id"`
}

// APIError represents a non-success response from the remote service,
// carrying the server's structured error payload
type APIError struct {
	StatusCode int             `json:"status_code"`
	Message    string          `json:"message"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if len(e.Payload) > 0 {
		return string(e.Payload)
	}
	return "remote service error"
}

// Transient reports whether the error is worth retrying: server-side
// failures are, client-side rejections are not
func (e *APIError) Transient() bool {
	return e.StatusCode >= 500
}
