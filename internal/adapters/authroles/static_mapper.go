package authroles

import (
	"slices"

	domainauth "github.com/om239903-ai/internship-project/internal/domain/auth"
	"github.com/om239903-ai/internship-project/internal/ports"
)

var _ ports.RoleMapper = StaticRoleMapper{}

// StaticRoleMapper maps groups by simple string membership rules. An empty group name grants
// that role to every authenticated caller.
type StaticRoleMapper struct {
	OperatorGroup string
	ViewerGroup   string
}

func (m StaticRoleMapper) Map(groups []string) domainauth.Role {
	if m.OperatorGroup == "" || slices.Contains(groups, m.OperatorGroup) {
		return domainauth.RoleOperator
	}
	if m.ViewerGroup == "" || slices.Contains(groups, m.ViewerGroup) {
		return domainauth.RoleViewer
	}
	return domainauth.RoleNone
}
