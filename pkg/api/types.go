// Package api defines the JSON wire types shared by the auth server, the
// request coordinator, and client code.
package api

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse reports the second-factor step that follows a successful
// password check. TOTPSecret and OtpauthURL are present only when Next is
// "mfa_setup_required", and are shown exactly once.
type LoginResponse struct {
	Message    string `json:"message"`
	Next       string `json:"next"`
	TOTPSecret string `json:"totp_secret,omitempty"`
	OtpauthURL string `json:"otpauth_url,omitempty"`
}

// MFASetupRequest is the body of POST /api/mfa/setup.
type MFASetupRequest struct {
	Username string `json:"username"`
	Code     string `json:"code"`
}

// MFASetupResponse confirms a committed enrollment.
type MFASetupResponse struct {
	Message    string `json:"message"`
	MFAEnabled bool   `json:"mfa_enabled"`
}

// MFAVerifyRequest is the body of POST /api/mfa/verify.
type MFAVerifyRequest struct {
	Username string `json:"username"`
	Code     string `json:"code"`
}

// MFAVerifyResponse carries the freshly issued session token. The raw token
// appears here and nowhere else.
type MFAVerifyResponse struct {
	SessionToken string `json:"session_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// DataRequest is the body of POST /api/data. Certificate is a PEM-encoded
// client certificate; Data is the sealed payload.
type DataRequest struct {
	Certificate string `json:"certificate"`
	Data        string `json:"data"`
}

// DataResponse is the decrypted-and-processed result. ProcessedBy is set by
// the coordinator, not the server, to mark which backend handled the request.
type DataResponse struct {
	Result      string `json:"result"`
	Message     string `json:"message"`
	User        string `json:"user"`
	Timestamp   string `json:"timestamp"`
	ProcessedBy string `json:"processed_by,omitempty"`
}

// HealthResponse is the server's GET /api/health body.
type HealthResponse struct {
	Status            string `json:"status"`
	MFASupported      bool   `json:"mfa_supported"`
	CertificatesReady bool   `json:"certificates_ready"`
}

// ServerStatus is one backend's probe result inside CoordinatorHealth.
type ServerStatus struct {
	Server string `json:"server"`
	Status string `json:"status"`
}

// CoordinatorHealth is the coordinator's GET /api/health body.
type CoordinatorHealth struct {
	Coordinator string         `json:"coordinator"`
	Servers     []ServerStatus `json:"servers"`
	UpCount     int            `json:"up_count"`
}

// ErrorResponse is the uniform error body for all endpoints.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}
