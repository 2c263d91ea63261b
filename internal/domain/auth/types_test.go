package auth

import "testing"

func TestRole_Allows(t *testing.T) {
	tests := []struct {
		have, need Role
		want       bool
	}{
		{RoleOperator, RoleOperator, true},
		{RoleOperator, RoleViewer, true},
		{RoleViewer, RoleViewer, true},
		{RoleViewer, RoleOperator, false},
		{RoleNone, RoleViewer, false},
		{RoleNone, RoleNone, false},
		{Role("root"), RoleViewer, false},
		{RoleOperator, Role("root"), false},
	}
	for _, tt := range tests {
		if got := tt.have.Allows(tt.need); got != tt.want {
			t.Errorf("%s.Allows(%s) = %v, want %v", tt.have, tt.need, got, tt.want)
		}
	}
}
