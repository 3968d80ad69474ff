package domain_test

import (
	"testing"

	"github.com/nammaooru/civic-reports/internal/domain"
)

func TestParseReportStatus(t *testing.T) {
	for _, valid := range []string{"submitted", "acknowledged", "in_progress", "resolved", "closed"} {
		if _, ok := domain.ParseReportStatus(valid); !ok {
			t.Errorf("ParseReportStatus(%q) rejected a valid status", valid)
		}
	}
	for _, invalid := range []string{"", "Submitted", "archived", "IN_PROGRESS"} {
		if _, ok := domain.ParseReportStatus(invalid); ok {
			t.Errorf("ParseReportStatus(%q) accepted an invalid status", invalid)
		}
	}
}

func TestTerminalStatus(t *testing.T) {
	if !domain.StatusClosed.Terminal() {
		t.Error("closed should be terminal")
	}
	for _, s := range []domain.ReportStatus{
		domain.StatusSubmitted, domain.StatusAcknowledged,
		domain.StatusInProgress, domain.StatusResolved,
	} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestRolePermissions(t *testing.T) {
	cases := []struct {
		role domain.Role
		want bool
	}{
		{domain.RoleCitizen, false},
		{domain.RoleOfficial, true},
		{domain.RoleModerator, true},
		{domain.RoleAdmin, true},
	}
	for _, tc := range cases {
		if got := tc.role.CanTransitionReports(); got != tc.want {
			t.Errorf("%s.CanTransitionReports() = %v, want %v", tc.role, got, tc.want)
		}
	}
}
