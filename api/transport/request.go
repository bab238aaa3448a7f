package transport

// TwoFactorRequest toggles the role-scoped two-factor flag of the session.
type TwoFactorRequest struct {
	Enabled *bool `json:"enabled"`
}
