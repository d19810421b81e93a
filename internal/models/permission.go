package models

// Capability is a single dashboard permission bit.
type Capability uint8

const (
	CapSuperAdmin Capability = 1 << iota
	CapFinance
	CapITAdmin
	CapRegistrar
)

// Permissions is the resolved capability set of a user for one session.
type Permissions struct {
	Caps Capability `json:"caps"`
}

// Has reports whether every capability in c is granted.
func (p Permissions) Has(c Capability) bool {
	return c != 0 && p.Caps&c == c
}

// HasAny reports whether at least one of caps is granted.
func (p Permissions) HasAny(caps ...Capability) bool {
	for _, c := range caps {
		if p.Has(c) {
			return true
		}
	}
	return false
}

// Flags renders the capability set as the four role flags.
func (p Permissions) Flags() RoleFlags {
	return RoleFlags{
		IsSuperAdmin: p.Has(CapSuperAdmin),
		IsFinance:    p.Has(CapFinance),
		IsITAdmin:    p.Has(CapITAdmin),
		IsRegistrar:  p.Has(CapRegistrar),
	}
}

// RoleFlags are independent booleans; a user may hold several at once.
type RoleFlags struct {
	IsSuperAdmin bool `json:"is_super_admin"`
	IsFinance    bool `json:"is_finance"`
	IsITAdmin    bool `json:"is_it_admin"`
	IsRegistrar  bool `json:"is_registrar"`
}
