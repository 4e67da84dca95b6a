package models

// UserRole represents the roles carried in access tokens.
type UserRole string

const (
	RoleAdmin    UserRole = "ADMIN"
	RoleSubAdmin UserRole = "SUBADMIN"
	RoleTeacher  UserRole = "TEACHER"
	RoleStudent  UserRole = "STUDENT"
)

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// NewPagination normalises page and size and returns the metadata block.
func NewPagination(page, size, total int) *Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return &Pagination{Page: page, PageSize: size, TotalCount: total}
}
