package entities

import "time"

// MaxAvgTimePerPatient caps the per-appointment duration a doctor may declare (minutes)
const MaxAvgTimePerPatient = 480

// Category groups doctors by specialty
type Category struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Hospital represents a hospital where doctors hold schedules
type Hospital struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Address   string    `json:"address" db:"address"`
	City      string    `json:"city" db:"city"`
	Phone     string    `json:"phone" db:"phone"`
	Email     string    `json:"email" db:"email"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Doctor represents a doctor. AvgRating and ReviewCount are owned by the
// rating aggregator and are never written from user input.
type Doctor struct {
	ID                string    `json:"id" db:"id"`
	UserID            *string   `json:"user_id,omitempty" db:"user_id"`
	Name              string    `json:"name" db:"name"`
	Title             string    `json:"title" db:"title"`
	Bio               string    `json:"bio" db:"bio"`
	CategoryID        string    `json:"category_id" db:"category_id"`
	AvgTimePerPatient int       `json:"avg_time_per_patient" db:"avg_time_per_patient"`
	AvgRating         float64   `json:"avg_rating" db:"avg_rating"`
	ReviewCount       int       `json:"review_count" db:"review_count"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// SlotWidth returns the length of one bookable slot for this doctor
func (d *Doctor) SlotWidth() time.Duration {
	return time.Duration(d.AvgTimePerPatient) * time.Minute
}

// DoctorHospitalSchedule is a doctor's weekly recurring availability at one hospital
type DoctorHospitalSchedule struct {
	ID         string    `json:"id" db:"id"`
	DoctorID   string    `json:"doctor_id" db:"doctor_id"`
	HospitalID string    `json:"hospital_id" db:"hospital_id"`
	StartTime  TimeOfDay `json:"start_time" db:"start_time"`
	EndTime    TimeOfDay `json:"end_time" db:"end_time"`
	Weekdays   Weekdays  `json:"weekdays" db:"weekdays"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Covers reports whether the schedule applies on the given date
func (s *DoctorHospitalSchedule) Covers(date Date) bool {
	return s.Weekdays.Contains(date.Weekday())
}

// Weekdays is the set of days of the week a schedule applies to
type Weekdays []time.Weekday

// Contains reports whether day is in the set
func (w Weekdays) Contains(day time.Weekday) bool {
	for _, d := range w {
		if d == day {
			return true
		}
	}
	return false
}

// Valid reports whether every entry is a real weekday and none repeats
func (w Weekdays) Valid() bool {
	if len(w) == 0 {
		return false
	}
	seen := make(map[time.Weekday]bool, len(w))
	for _, d := range w {
		if d < time.Sunday || d > time.Saturday || seen[d] {
			return false
		}
		seen[d] = true
	}
	return true
}

// Int64s converts the set for storage in an integer array column
func (w Weekdays) Int64s() []int64 {
	out := make([]int64, len(w))
	for i, d := range w {
		out[i] = int64(d)
	}
	return out
}

// WeekdaysFromInt64s is the inverse of Int64s
func WeekdaysFromInt64s(values []int64) Weekdays {
	out := make(Weekdays, len(values))
	for i, v := range values {
		out[i] = time.Weekday(v)
	}
	return out
}
