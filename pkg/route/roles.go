package route

import (
	"fmt"
	"strings"
)

// Role says which dispatch value a handler parameter receives.
type Role int

const (
	// RoleController receives the controller handle passed to Dispatch.
	RoleController Role = iota + 1

	// RolePathData receives the path extracted from the event.
	RolePathData

	// RoleEventData receives the event itself.
	RoleEventData
)

// String returns the role name used in directives.
func (r Role) String() string {
	switch r {
	case RoleController:
		return "controller"
	case RolePathData:
		return "pathData"
	case RoleEventData:
		return "fullEventData"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Arg returns the argument name the role binds to in a dispatch call.
func (r Role) Arg() string {
	switch r {
	case RoleController:
		return "controller"
	case RolePathData:
		return "path"
	case RoleEventData:
		return "event"
	default:
		return ""
	}
}

// ParseRole parses a role name. Both the directive names and the short
// argument names are accepted.
func ParseRole(s string) (Role, error) {
	switch s {
	case "controller":
		return RoleController, nil
	case "pathData", "path":
		return RolePathData, nil
	case "fullEventData", "event":
		return RoleEventData, nil
	}
	return 0, fmt.Errorf("route: unknown role %q", s)
}

// Param is one declared handler parameter.
type Param struct {
	// Name is the parameter name in the handler's source.
	Name string

	// Type is the parameter's type expression, used for manifests.
	Type string

	// Roles lists the roles attached to the parameter. A valid parameter
	// carries exactly one.
	Roles []Role
}

// P is shorthand for a parameter with a single role.
func P(name string, role Role) Param {
	return Param{Name: name, Roles: []Role{role}}
}

// Binding is the canonical call order of a handler: the role carried by
// each parameter, in declaration order.
type Binding struct {
	roles []Role
}

// Order returns the roles in parameter order.
func (b Binding) Order() []Role {
	out := make([]Role, len(b.roles))
	copy(out, b.roles)
	return out
}

// Len returns the number of bound parameters.
func (b Binding) Len() int {
	return len(b.roles)
}

// Index returns the parameter position carrying role, or -1.
func (b Binding) Index(role Role) int {
	for i, r := range b.roles {
		if r == role {
			return i
		}
	}
	return -1
}

// CallOrder renders the argument list of the handler call, e.g. "event, controller".
func (b Binding) CallOrder() string {
	args := make([]string, len(b.roles))
	for i, r := range b.roles {
		args[i] = r.Arg()
	}
	return strings.Join(args, ", ")
}

// SortRoles validates the parameter roles of a handler and returns its
// canonical call order. The order follows parameter positions, never role
// names, so the generated call always matches the declared signature.
func SortRoles(params []Param) (Binding, error) {
	seen := make(map[Role]string, 3)
	roles := make([]Role, 0, len(params))

	for _, p := range params {
		switch {
		case len(p.Roles) == 0:
			return Binding{}, &BuildError{Code: CodeParamNoRole, Param: p.Name}
		case len(p.Roles) > 1:
			return Binding{}, &BuildError{
				Code:   CodeParamManyRoles,
				Param:  p.Name,
				Detail: fmt.Sprintf("roles %s", joinRoles(p.Roles)),
			}
		}
		role := p.Roles[0]
		if role < RoleController || role > RoleEventData {
			return Binding{}, &BuildError{Code: CodeParamNoRole, Param: p.Name, Detail: role.String()}
		}
		if other, dup := seen[role]; dup {
			return Binding{}, &BuildError{
				Code:   CodeRoleRepeated,
				Param:  p.Name,
				Detail: fmt.Sprintf("%s is already carried by %s", role, other),
			}
		}
		seen[role] = p.Name
		roles = append(roles, role)
	}

	if _, ok := seen[RoleController]; !ok {
		return Binding{}, &BuildError{Code: CodeNoController}
	}
	return Binding{roles: roles}, nil
}

func joinRoles(roles []Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = r.String()
	}
	return strings.Join(names, ", ")
}
