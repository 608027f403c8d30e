package domain

import "time"

// CourseStatus enumerates course lifecycle states.
type CourseStatus string

const (
	CourseStatusPending CourseStatus = "pending"
	CourseStatusReady   CourseStatus = "ready"
	CourseStatusFailed  CourseStatus = "failed"
)

// Course is a user-owned container of topics generated from a syllabus.
type Course struct {
	ID          string
	UserID      string
	Name        string
	Description string
	Status      CourseStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Topic is an ordered unit inside a course; exercises hang off topics.
type Topic struct {
	ID        string
	CourseID  string
	Name      string
	Position  int
	CreatedAt time.Time
}

// CourseOutline is the structured result of outline generation from a
// syllabus document. Topic names keep the order the model produced.
type CourseOutline struct {
	CourseName        string   `json:"course_name"`
	CourseDescription string   `json:"course_description"`
	Topics            []string `json:"topics"`
}
