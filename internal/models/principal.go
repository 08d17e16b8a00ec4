package models

// Principal is the authenticated caller of a request.
type Principal struct {
	Username   string `json:"username"`
	TenantCode string `json:"tenant"`
}
