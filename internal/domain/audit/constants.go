package audit

const (
	ActionCreate      = "CREATE"
	ActionUpdate      = "UPDATE"
	ActionDelete      = "DELETE"
	ActionSubmit      = "SUBMIT"
	ActionApprove     = "APPROVE"
	ActionReject      = "REJECT"
	ActionReturn      = "RETURN"
	ActionVerify      = "VERIFY"
	ActionSignoff     = "SIGNOFF"
	ActionLogin       = "LOGIN"
	ActionLogout      = "LOGOUT"
	ActionImpersonate = "IMPERSONATE"
	ActionExport      = "EXPORT"
)

var Actions = []string{
	ActionCreate,
	ActionUpdate,
	ActionDelete,
	ActionSubmit,
	ActionApprove,
	ActionReject,
	ActionReturn,
	ActionVerify,
	ActionSignoff,
	ActionLogin,
	ActionLogout,
	ActionImpersonate,
	ActionExport,
}

const (
	EntityAgreement       = "performance_agreement"
	EntityKRA             = "kra"
	EntityGAF             = "gaf"
	EntityReview          = "review"
	EntityImprovementPlan = "improvement_plan"
	EntityDevelopmentPlan = "development_plan"
	EntityFeedback        = "feedback"
	EntityUser            = "user"
	EntitySession         = "session"
	EntityTenantSettings  = "tenant_settings"
)
