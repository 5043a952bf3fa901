package domain

// Permission is the grant level recorded on a share.
type Permission string

const (
	PermissionRead    Permission = "read"
	PermissionWrite   Permission = "write"
	PermissionComment Permission = "comment"
)

func (p Permission) Valid() bool {
	switch p {
	case PermissionRead, PermissionWrite, PermissionComment:
		return true
	}
	return false
}

// ContextRole classifies a share target as viewer or collaborator. It is a
// pure function of the share's permission; stored copies are never trusted.
type ContextRole string

const (
	RoleViewer       ContextRole = "viewer"
	RoleCollaborator ContextRole = "collaborator"
)

// RoleForPermission derives the context role: write and comment grants make a
// collaborator, read makes a viewer.
func RoleForPermission(p Permission) ContextRole {
	if p == PermissionWrite || p == PermissionComment {
		return RoleCollaborator
	}
	return RoleViewer
}

// GlobalRole is the account-wide role carried in the auth token.
type GlobalRole string

const (
	GlobalRoleAdmin GlobalRole = "admin"
	GlobalRoleUser  GlobalRole = "user"
)

// Operation is the kind of action being authorized against a file.
type Operation int

const (
	// OpRead covers pure reads: downloads, listings, previews.
	OpRead Operation = iota
	// OpWrite covers anything that modifies the file or its collaboration
	// state, including starting a session.
	OpWrite
)

func (o Operation) String() string {
	if o == OpWrite {
		return "write"
	}
	return "read"
}

// AccessLevel is the resolved authority of an actor over a file, computed
// once per decision and never stored.
type AccessLevel int

const (
	AccessNone AccessLevel = iota
	AccessViewer
	AccessCollaborator
	AccessOwner
	AccessAdmin
)

func (l AccessLevel) String() string {
	switch l {
	case AccessAdmin:
		return "admin"
	case AccessOwner:
		return "owner"
	case AccessCollaborator:
		return "collaborator"
	case AccessViewer:
		return "viewer"
	}
	return "none"
}
