package handlers

// Role is a coarse-grained authorization level. The core only needs enough
// of the role lattice to let worker-driven System identities pass every
// gate; fine-grained role definitions belong to an external auth domain.
type Role int

const (
	RoleAnonymous Role = iota
	RoleDepositor
	RoleCurator
	RoleAdmin
)

// AuthorizationKind discriminates the Authorization tagged variant: Public,
// AtLeast(Role), or Custom(fn).
type AuthorizationKind int

const (
	Public AuthorizationKind = iota
	AtLeastRole
	Custom
)

// Identity is anything an Authorization gate can be checked against. uow.System
// implements it by always reporting RoleAdmin so worker invocations satisfy
// any gate.
type Identity interface {
	Role() Role
}

// Authorization is the tagged gate every handler Registration must declare.
// A zero Authorization (Kind Public, but not Declared) is rejected by
// Registration.Validate: handlers opt in to openness through PublicAuth()
// rather than defaulting to it silently.
type Authorization struct {
	Kind     AuthorizationKind
	MinRole  Role
	CheckFn  func(Identity) bool
	declared bool
}

// Declared reports whether this Authorization was constructed through one of
// the constructors below, as opposed to a zero-valued struct literal a
// caller forgot to fill in. Registry validation at pool-construction time
// treats an undeclared Authorization as a startup error.
func (a Authorization) Declared() bool { return a.declared }

// PublicAuth permits any identity.
func PublicAuth() Authorization { return Authorization{Kind: Public, declared: true} }

// AtLeast permits identities whose Role() is >= role.
func AtLeast(role Role) Authorization { return Authorization{Kind: AtLeastRole, MinRole: role, declared: true} }

// CustomAuth permits identities for which fn returns true.
func CustomAuth(fn func(Identity) bool) Authorization {
	return Authorization{Kind: Custom, CheckFn: fn, declared: true}
}

// Allows evaluates the gate against id.
func (a Authorization) Allows(id Identity) bool {
	switch a.Kind {
	case Public:
		return true
	case AtLeastRole:
		return id.Role() >= a.MinRole
	case Custom:
		return a.CheckFn != nil && a.CheckFn(id)
	default:
		return false
	}
}
