package domain

type AuthPayload struct {
	Username   string   `json:"username"`
	Permission []string `json:"permission"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

// PermissionMonitor grants read access to the admin API.
const PermissionMonitor = "arbfn.monitor"
