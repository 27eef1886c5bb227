package authz

import (
	"strconv"
	"strings"
)

// Role names used across the application. Every user is provisioned with
// RoleStudent on creation; RoleAdmin is granted only by another admin.
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// Resource identifies one of the guarded record kinds.
type Resource string

const (
	ResourceProfile        Resource = "profile"
	ResourceRoleAssignment Resource = "role_assignment"
	ResourceDocument       Resource = "document"
	ResourceBlob           Resource = "blob"
)

// Op is the operation being attempted on a Resource.
type Op string

const (
	OpRead   Op = "read"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	// OpSetStatus is the dedicated admin path for changing a profile's
	// application status. Owner updates never carry the status field.
	OpSetStatus Op = "set_status"
)

// Actor is the authenticated identity attempting an operation, with the
// roles it held at lookup time.
type Actor struct {
	ID    uint
	Roles []string
}

// Has reports whether the actor holds the given role.
func (a Actor) Has(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin is shorthand for Has(RoleAdmin).
func (a Actor) IsAdmin() bool { return a.Has(RoleAdmin) }

type predicate func(a Actor, ownerID uint) bool

func ownerOnly(a Actor, ownerID uint) bool { return a.ID == ownerID }

func adminOnly(a Actor, _ uint) bool { return a.IsAdmin() }

func ownerOrAdmin(a Actor, ownerID uint) bool { return a.ID == ownerID || a.IsAdmin() }

// rules is the per-(resource, op) predicate table. An absent entry means the
// operation is never allowed. Ownership checks are identity-equality; admin
// checks are additive overrides. Students deliberately get no delete rule on
// documents: deletion goes through an admin.
var rules = map[Resource]map[Op]predicate{
	ResourceProfile: {
		OpRead:      ownerOrAdmin,
		OpCreate:    ownerOnly,
		OpUpdate:    ownerOnly,
		OpDelete:    adminOnly,
		OpSetStatus: adminOnly,
	},
	ResourceRoleAssignment: {
		OpRead:   ownerOrAdmin,
		OpCreate: adminOnly,
		OpUpdate: adminOnly,
		OpDelete: adminOnly,
	},
	ResourceDocument: {
		OpRead:   ownerOrAdmin,
		OpCreate: ownerOnly,
		OpDelete: adminOnly,
	},
	ResourceBlob: {
		OpRead:   ownerOrAdmin,
		OpCreate: ownerOnly,
		OpDelete: adminOnly,
	},
}

// Can evaluates the rule table. ownerID is the owning user of the record
// being touched (for creates, the owner the new record would have).
func Can(a Actor, res Resource, op Op, ownerID uint) bool {
	ops, ok := rules[res]
	if !ok {
		return false
	}
	pred, ok := ops[op]
	if !ok {
		return false
	}
	return pred(a, ownerID)
}

// Decide is Can returning ErrDenied instead of false, for call sites that
// propagate errors.
func Decide(a Actor, res Resource, op Op, ownerID uint) error {
	if !Can(a, res, op, ownerID) {
		return ErrDenied
	}
	return nil
}

// OwnerOfKey extracts the owning user id from a blob key. Keys are
// namespaced as "<studentID>/<opaque-name>"; the first path segment is the
// only ownership source for blob access, no join required.
func OwnerOfKey(key string) (uint, error) {
	seg, _, ok := strings.Cut(key, "/")
	if !ok || seg == "" {
		return 0, ErrBadKey
	}
	id, err := strconv.ParseUint(seg, 10, 32)
	if err != nil || id == 0 {
		return 0, ErrBadKey
	}
	return uint(id), nil
}
