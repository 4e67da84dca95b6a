package dto

// ProgressExportQuery captures GET /courses/:courseId/progress/export query params.
type ProgressExportQuery struct {
	Format string `form:"format"`
}
