package auth

const (
	RoleEmployee    = "Employee"
	RoleManager     = "Manager"
	RoleHR          = "HR"
	RoleApprover    = "Approver"
	RoleSystemAdmin = "SystemAdmin"
)

const (
	PermUsersRead           = "users.read"
	PermUsersWrite          = "users.write"
	PermUsersImpersonate    = "users.impersonate"
	PermAgreementsRead      = "agreements.read"
	PermAgreementsWrite     = "agreements.write"
	PermAgreementsApprove   = "agreements.approve"
	PermAgreementsVerify    = "agreements.verify"
	PermAgreementsExport    = "agreements.export"
	PermReviewsRead         = "reviews.read"
	PermReviewsWrite        = "reviews.write"
	PermReviewsApprove      = "reviews.approve"
	PermPlansRead           = "plans.read"
	PermPlansWrite          = "plans.write"
	PermFeedbackRead        = "feedback.read"
	PermFeedbackWrite       = "feedback.write"
	PermNotificationsConfig = "notifications.configure"
	PermAuditRead           = "audit.read"
	PermSystemAdmin         = "admin.system"
)

var DefaultPermissions = []string{
	PermUsersRead,
	PermUsersWrite,
	PermUsersImpersonate,
	PermAgreementsRead,
	PermAgreementsWrite,
	PermAgreementsApprove,
	PermAgreementsVerify,
	PermAgreementsExport,
	PermReviewsRead,
	PermReviewsWrite,
	PermReviewsApprove,
	PermPlansRead,
	PermPlansWrite,
	PermFeedbackRead,
	PermFeedbackWrite,
	PermNotificationsConfig,
	PermAuditRead,
	PermSystemAdmin,
}

var RolePermissions = map[string][]string{
	RoleEmployee: {
		PermAgreementsRead,
		PermAgreementsWrite,
		PermAgreementsExport,
		PermReviewsRead,
		PermReviewsWrite,
		PermPlansRead,
		PermPlansWrite,
		PermFeedbackRead,
		PermFeedbackWrite,
	},
	RoleManager: {
		PermUsersRead,
		PermAgreementsRead,
		PermAgreementsWrite,
		PermAgreementsExport,
		PermReviewsRead,
		PermReviewsWrite,
		PermPlansRead,
		PermPlansWrite,
		PermFeedbackRead,
		PermFeedbackWrite,
	},
	RoleApprover: {
		PermUsersRead,
		PermAgreementsRead,
		PermAgreementsApprove,
		PermAgreementsExport,
		PermReviewsRead,
		PermReviewsApprove,
		PermPlansRead,
		PermFeedbackRead,
	},
	RoleHR: {
		PermUsersRead,
		PermUsersWrite,
		PermAgreementsRead,
		PermAgreementsWrite,
		PermAgreementsApprove,
		PermAgreementsVerify,
		PermAgreementsExport,
		PermReviewsRead,
		PermReviewsWrite,
		PermReviewsApprove,
		PermPlansRead,
		PermPlansWrite,
		PermFeedbackRead,
		PermFeedbackWrite,
		PermNotificationsConfig,
		PermAuditRead,
	},
	RoleSystemAdmin: {
		PermUsersRead,
		PermUsersWrite,
		PermUsersImpersonate,
		PermAuditRead,
		PermNotificationsConfig,
		PermSystemAdmin,
	},
}

// ValidRole reports whether name is one of the seeded roles.
func ValidRole(name string) bool {
	_, ok := RolePermissions[name]
	return ok
}

// IsAdmin covers HR and system administrators, who manage accounts.
func IsAdmin(roleName string) bool {
	return roleName == RoleHR || roleName == RoleSystemAdmin
}
