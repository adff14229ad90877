package enums

// Role is the coarse actor role carried in access tokens.
type Role string

const (
	RoleBuyer Role = "buyer"
	RoleAdmin Role = "admin"
)

var roles = vocabulary[Role]{kind: "role", values: []Role{RoleBuyer, RoleAdmin}, fold: true}

func (r Role) String() string { return string(r) }

func (r Role) IsValid() bool { return roles.has(r) }

func ParseRole(value string) (Role, error) {
	return roles.parse(value)
}
