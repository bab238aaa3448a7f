package domain

// NavState is the outcome of resolving one top-level navigation.
type NavState int

const (
	NavUnauthenticated NavState = iota
	NavLoading
	NavWrongRole
	NavCorrectRole
	NavNotFound
)

func (s NavState) String() string {
	switch s {
	case NavUnauthenticated:
		return "unauthenticated"
	case NavLoading:
		return "loading"
	case NavWrongRole:
		return "authenticated_wrong_role"
	case NavCorrectRole:
		return "authenticated_correct_role"
	case NavNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}
