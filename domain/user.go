package domain

// Credentials are submitted by the login form and forwarded to the backend.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Identity is what the backend login exchange returns on success.
type Identity struct {
	Token   string
	Role    Role
	UserID  string
	GroupID string
}

// Session converts the exchanged identity into a fresh session.
func (i Identity) Session() Session {
	return Session{
		Token:   i.Token,
		Role:    i.Role,
		UserID:  i.UserID,
		GroupID: i.GroupID,
	}
}
