package entities

import "time"

const (
	MinRating = 1
	MaxRating = 5
)

// Review is a patient's rating of a completed appointment. The rating is
// immutable once stored; only replies are added afterwards.
type Review struct {
	ID                string     `json:"id" db:"id"`
	AppointmentID     string     `json:"appointment_id" db:"appointment_id"`
	UserID            string     `json:"user_id" db:"user_id"`
	Rating            int        `json:"rating" db:"rating"`
	Comment           string     `json:"comment" db:"comment"`
	DoctorReply       *string    `json:"doctor_reply,omitempty" db:"doctor_reply"`
	HospitalReply     *string    `json:"hospital_reply,omitempty" db:"hospital_reply"`
	DoctorRepliedAt   *time.Time `json:"doctor_replied_at,omitempty" db:"doctor_replied_at"`
	HospitalRepliedAt *time.Time `json:"hospital_replied_at,omitempty" db:"hospital_replied_at"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// ValidRating reports whether r lies in [MinRating, MaxRating]
func ValidRating(r int) bool {
	return r >= MinRating && r <= MaxRating
}

// RatingSummary is the aggregate written back onto a doctor
type RatingSummary struct {
	DoctorID string  `json:"doctor_id"`
	Average  float64 `json:"average"`
	Count    int     `json:"count"`
}

// AverageRating returns the arithmetic mean of ratings, or 0 when empty
func AverageRating(ratings []int) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	return float64(sum) / float64(len(ratings))
}
