package dto

// EnrollmentListQuery captures GET /student/courses query params.
type EnrollmentListQuery struct {
	Completed *bool `form:"completed"`
	Page      int   `form:"page"`
	PageSize  int   `form:"page_size"`
}
