package shell

import (
	"strings"

	"github.com/fastygo/portal/domain"
)

// Screen is one entry of a role's route table. The screen body itself belongs to the
// billing frontend; the gateway only places it inside the shell.
type Screen struct {
	Path    string
	Title   string
	Section string
}

// Shell is the sidebar, navbar and route table mounted for one role.
type Shell struct {
	Role    domain.Role
	Title   string
	Screens []Screen

	index map[string]Screen
}

func New(role domain.Role, title string, screens []Screen) *Shell {
	index := make(map[string]Screen, len(screens))
	for _, sc := range screens {
		index[sc.Path] = sc
	}
	return &Shell{Role: role, Title: title, Screens: screens, index: index}
}

// Lookup resolves a sub-path relative to the role prefix, e.g. "contract-list".
func (s *Shell) Lookup(subPath string) (Screen, bool) {
	sc, ok := s.index[strings.Trim(subPath, "/")]
	return sc, ok
}

// Href is the absolute path of a screen in this shell.
func (s *Shell) Href(sc Screen) string {
	return s.Role.Prefix() + "/" + sc.Path
}

// Shells returns the route tables of all four roles.
func Shells() []*Shell {
	return []*Shell{
		New(domain.RoleAgent, "Agent", []Screen{
			{Path: "dashboard", Title: "Dashboard", Section: "Overview"},
			{Path: "invoice-upload", Title: "Upload invoice", Section: "Invoices"},
			{Path: "invoice-verify", Title: "Verify invoice", Section: "Invoices"},
			{Path: "offer-selection", Title: "Select offer", Section: "Invoices"},
			{Path: "invoice-list", Title: "Invoices", Section: "Invoices"},
			{Path: "contract-list", Title: "Contracts", Section: "Contracts"},
			{Path: "agreement-list", Title: "Agreements", Section: "Contracts"},
			{Path: "client-list", Title: "Clients", Section: "Clients"},
			{Path: "profile", Title: "Profile", Section: "Account"},
		}),
		New(domain.RoleSupervisor, "Supervisor", []Screen{
			{Path: "dashboard", Title: "Dashboard", Section: "Overview"},
			{Path: "agent-list", Title: "Agents", Section: "Team"},
			{Path: "invoice-list", Title: "Invoices", Section: "Invoices"},
			{Path: "contract-list", Title: "Contracts", Section: "Contracts"},
			{Path: "reports", Title: "Reports", Section: "Reports"},
			{Path: "profile", Title: "Profile", Section: "Account"},
		}),
		New(domain.RoleGroupAdmin, "Group admin", []Screen{
			{Path: "dashboard", Title: "Dashboard", Section: "Overview"},
			{Path: "user-list", Title: "Users", Section: "Users"},
			{Path: "user-create", Title: "Add user", Section: "Users"},
			{Path: "campaigns", Title: "Messaging campaigns", Section: "Messaging"},
			{Path: "subscription", Title: "Subscription", Section: "Billing"},
			{Path: "payments", Title: "Payments", Section: "Billing"},
			{Path: "profile", Title: "Profile", Section: "Account"},
		}),
		New(domain.RoleClient, "Client", []Screen{
			{Path: "dashboard", Title: "Dashboard", Section: "Overview"},
			{Path: "contract-list", Title: "Contracts", Section: "Contracts"},
			{Path: "agreement-list", Title: "Agreements", Section: "Contracts"},
			{Path: "invoice-list", Title: "Invoices", Section: "Invoices"},
			{Path: "payments", Title: "Payments", Section: "Billing"},
			{Path: "profile", Title: "Profile", Section: "Account"},
		}),
	}
}
