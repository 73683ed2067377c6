package performance

const (
	GoalStatusActive    = "active"
	GoalStatusCompleted = "completed"

	ReviewRoleSelf    = "self"
	ReviewRoleManager = "manager"
	ReviewRoleHR      = "hr"

	EmployeeStatusActive = "active"

	SourceGoals    = "goals"
	SourceReviews  = "review_responses"
	SourceEvidence = "cpis_evidence"

	// ratings are collected on a 1..5 scale
	reviewRatingMin = 1.0
	reviewRatingMax = 5.0

	selfReviewWeight = 0.5

	defaultHistoryLimit = 12
)
