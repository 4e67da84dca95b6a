package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/learnhub-api/internal/middleware"
	"github.com/noah-isme/learnhub-api/internal/models"
	"github.com/noah-isme/learnhub-api/internal/service"
)

// Routes bundles the handlers mounted under the API prefix.
type Routes struct {
	Auth         *service.AuthService
	Quizzes      *QuizHandler
	Progress     *ProgressHandler
	Enrollments  *EnrollmentHandler
	Certificates *CertificateHandler
	Exports      *ExportHandler
}

// Register mounts the learning endpoints on group.
func (r Routes) Register(group *gin.RouterGroup) {
	requireAuth := middleware.JWT(r.Auth)

	group.POST("/student/submit-quiz", middleware.OptionalJWT(r.Auth), r.Quizzes.SubmitLegacy)
	group.GET("/certificates/:token", r.Certificates.Download)

	student := group.Group("/student", requireAuth)
	{
		student.GET("/courses", r.Enrollments.List)
		student.GET("/courses/:courseId", r.Enrollments.Get)
		student.POST("/courses/:courseId/enroll", r.Enrollments.Enroll)
		student.PUT("/courses/:courseId/progress", r.Progress.Update)
		student.POST("/courses/:courseId/content/:contentId/submit-quiz", r.Quizzes.Submit)
		student.GET("/certificates", r.Certificates.List)
		student.GET("/wishlist", r.Enrollments.Wishlist)
		student.POST("/wishlist/:courseId", r.Enrollments.AddToWishlist)
		student.DELETE("/wishlist/:courseId", r.Enrollments.RemoveFromWishlist)
	}

	group.GET("/courses/:courseId/progress/export",
		requireAuth,
		middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin, models.RoleSubAdmin),
		r.Exports.CourseProgress)
}
