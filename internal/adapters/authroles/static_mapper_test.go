package authroles

import (
	"testing"

	"github.com/stretchr/testify/assert"

	domainauth "github.com/om239903-ai/internship-project/internal/domain/auth"
)

func TestStaticRoleMapper(t *testing.T) {
	m := StaticRoleMapper{OperatorGroup: "scan-ops", ViewerGroup: "sales"}

	assert.Equal(t, domainauth.RoleOperator, m.Map([]string{"sales", "scan-ops"}))
	assert.Equal(t, domainauth.RoleViewer, m.Map([]string{"sales"}))
	assert.Equal(t, domainauth.RoleNone, m.Map([]string{"finance"}))
	assert.Equal(t, domainauth.RoleNone, m.Map(nil))

	viewersOpen := StaticRoleMapper{OperatorGroup: "scan-ops"}
	assert.Equal(t, domainauth.RoleViewer, viewersOpen.Map(nil))

	open := StaticRoleMapper{}
	assert.Equal(t, domainauth.RoleOperator, open.Map(nil))
}
