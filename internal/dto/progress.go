package dto

// UpdateProgressRequest captures PUT /student/courses/:courseId/progress payload.
type UpdateProgressRequest struct {
	Progress *int `json:"progress" validate:"required,min=0,max=100"`
}

// UpdateProgressResponse reports the stored progress after the update.
type UpdateProgressResponse struct {
	Success        bool    `json:"success"`
	Progress       int     `json:"progress"`
	Completed      bool    `json:"completed"`
	CertificateURL *string `json:"certificateUrl,omitempty"`
}
