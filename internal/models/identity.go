package models

// UserKind is the role carried in the userType claim of a signed token.
// The token issuer uses the main application's role strings, so unknown
// values are passed through rather than rejected.
type UserKind string

const (
	KindStudent UserKind = "eleve"
	KindParent  UserKind = "parent"
	KindTeacher UserKind = "professeur"
	KindStaff   UserKind = "personnel"
	KindAdmin   UserKind = "admin"
)

// Identity is the authenticated principal behind a connection. It lives only
// for the duration of the connection and is never persisted.
//
// Identity is comparable and used as a map key: the same user id connecting
// under two different kinds counts as two distinct identities.
type Identity struct {
	ID   string
	Kind UserKind
}
