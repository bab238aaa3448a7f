package domain

// Durable record keys. The first four form one unit: all present or all absent.
const (
	KeyAuthToken   = "authToken"
	KeyRole        = "role"
	KeyUserID      = "userId"
	KeyGroupID     = "groupId"
	KeyTwoFactor   = "twoFactor"
	KeyRedirectURL = "redirectUrl"
)

// IdentityKeys are the keys that must be written and cleared together.
var IdentityKeys = []string{KeyAuthToken, KeyRole, KeyUserID, KeyGroupID}

// Session is the identity of the principal signed in on one browser client.
type Session struct {
	Token     string `json:"-"`
	Role      Role   `json:"role"`
	UserID    string `json:"user_id"`
	GroupID   string `json:"group_id,omitempty"`
	TwoFactor bool   `json:"two_factor"`
}

// IsAuthenticated reports whether the session carries a credential.
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.Token != ""
}

// Record is the durable form of a session as stored key by key.
type Record map[string]string

// NewRecord builds the four-field identity record for s.
func NewRecord(s Session) Record {
	return Record{
		KeyAuthToken: s.Token,
		KeyRole:      string(s.Role),
		KeyUserID:    s.UserID,
		KeyGroupID:   s.GroupID,
	}
}

// Complete reports whether every identity key is present.
func (r Record) Complete() bool {
	for _, key := range IdentityKeys {
		if _, ok := r[key]; !ok {
			return false
		}
	}
	return true
}

// Empty reports whether no identity key is present.
func (r Record) Empty() bool {
	for _, key := range IdentityKeys {
		if _, ok := r[key]; ok {
			return false
		}
	}
	return true
}

// Session decodes a complete record. It fails with ErrStorageCorrupt when keys are
// missing or the credential fields are blank.
func (r Record) Session() (Session, error) {
	if !r.Complete() {
		return Session{}, ErrStorageCorrupt
	}
	if r[KeyAuthToken] == "" || r[KeyUserID] == "" {
		return Session{}, ErrStorageCorrupt
	}
	role, err := ParseRole(r[KeyRole])
	if err != nil {
		return Session{}, ErrStorageCorrupt
	}
	return Session{
		Token:     r[KeyAuthToken],
		Role:      role,
		UserID:    r[KeyUserID],
		GroupID:   r[KeyGroupID],
		TwoFactor: r[KeyTwoFactor] == "true",
	}, nil
}
