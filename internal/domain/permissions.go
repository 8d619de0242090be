package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

func ParseRole(raw string) (Role, error) {
	switch role := Role(strings.ToLower(strings.TrimSpace(raw))); role {
	case RoleAdmin, RoleSuperAdmin:
		return role, nil
	case "":
		return RoleAdmin, nil
	}
	return "", NewValidationError(fmt.Sprintf("role must be admin or superadmin, got %q", raw))
}

type Permission string

const (
	PermProducts Permission = "products"
	PermWorkers  Permission = "workers"
	PermSales    Permission = "sales"
	PermReturns  Permission = "returns"
)

var AllPermissions = []Permission{PermProducts, PermWorkers, PermSales, PermReturns}

func ParsePermission(raw string) (Permission, error) {
	p := Permission(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range AllPermissions {
		if p == known {
			return p, nil
		}
	}
	return "", NewValidationError(fmt.Sprintf("unknown permission %q", raw))
}

// Permissions is a set of capabilities granted to an admin.
type Permissions []Permission

func NewPermissions(names []string) (Permissions, error) {
	seen := map[Permission]bool{}
	out := make(Permissions, 0, len(names))
	for _, name := range names {
		p, err := ParsePermission(name)
		if err != nil {
			return nil, err
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (ps Permissions) Has(p Permission) bool {
	for _, candidate := range ps {
		if candidate == p {
			return true
		}
	}
	return false
}

func (ps Permissions) Strings() []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, string(p))
	}
	return out
}

// MarshalJSON renders the set as an object of flags, e.g. {"products":true,...}.
func (ps Permissions) MarshalJSON() ([]byte, error) {
	flags := make(map[string]bool, len(AllPermissions))
	for _, p := range AllPermissions {
		flags[string(p)] = ps.Has(p)
	}
	return json.Marshal(flags)
}

// UnmarshalJSON accepts either the flag object or a list of names.
func (ps *Permissions) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err == nil {
		parsed, err := NewPermissions(names)
		if err != nil {
			return err
		}
		*ps = parsed
		return nil
	}

	var flags map[string]bool
	if err := json.Unmarshal(data, &flags); err != nil {
		return fmt.Errorf("permissions must be an object of flags or a list of names")
	}
	names = names[:0]
	for name, enabled := range flags {
		if enabled {
			names = append(names, name)
		}
	}
	parsed, err := NewPermissions(names)
	if err != nil {
		return err
	}
	*ps = parsed
	return nil
}
