package competency

import "time"

// Course is the unit every other record is scoped to. ExternalID is the
// platform's numeric course id; zero means the course is not bound to a platform.
type Course struct {
	ID         string    `gorm:"primaryKey;size:128" json:"id"`
	ShortName  string    `gorm:"column:short_name;not null" json:"short_name"`
	FullName   string    `gorm:"column:full_name" json:"full_name"`
	ExternalID int64     `gorm:"column:external_id;index" json:"external_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Course) TableName() string { return "course" }

// Document is a source unit of course material. The text itself lives behind
// ContentRef; only its hash is kept to detect changes between runs.
type Document struct {
	ID          string    `gorm:"primaryKey;size:128" json:"id"`
	CourseID    string    `gorm:"size:128;not null;index" json:"course_id"`
	Title       string    `gorm:"not null" json:"title"`
	ContentRef  string    `gorm:"column:content_ref" json:"content_ref"`
	ContentHash string    `gorm:"column:content_hash;size:64" json:"content_hash"`
	Ordinal     int       `gorm:"not null;index" json:"ordinal"`
	TopicTitle  string    `gorm:"column:topic_title" json:"topic_title,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Document) TableName() string { return "document" }

// Candidate is an unvetted competency proposal for one document. It is never
// persisted.
type Candidate struct {
	Text       string
	DocumentID string
}
