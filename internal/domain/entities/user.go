package entities

// Role is the single role carried by an authenticated identity
type Role string

const (
	RoleSuperAdmin    Role = "super_admin"
	RoleHospitalAdmin Role = "hospital_admin"
	RoleDoctor        Role = "doctor"
	RolePatient       Role = "patient"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleHospitalAdmin, RoleDoctor, RolePatient:
		return true
	}
	return false
}

// Principal is the caller identity derived from a bearer token. HospitalID is
// set for hospital admins and DoctorID for doctors.
type Principal struct {
	UserID     string `json:"user_id"`
	Role       Role   `json:"role"`
	HospitalID string `json:"hospital_id,omitempty"`
	DoctorID   string `json:"doctor_id,omitempty"`
}

// IsSuperAdmin reports whether the principal has unrestricted access
func (p *Principal) IsSuperAdmin() bool {
	return p != nil && p.Role == RoleSuperAdmin
}

// AdministersHospital reports whether the principal may manage hospitalID
func (p *Principal) AdministersHospital(hospitalID string) bool {
	if p == nil {
		return false
	}
	if p.IsSuperAdmin() {
		return true
	}
	return p.Role == RoleHospitalAdmin && p.HospitalID != "" && p.HospitalID == hospitalID
}

// IsDoctor reports whether the principal is the given doctor
func (p *Principal) IsDoctor(doctorID string) bool {
	return p != nil && p.Role == RoleDoctor && p.DoctorID != "" && p.DoctorID == doctorID
}

// HasRole reports whether the principal holds any of roles
func (p *Principal) HasRole(roles ...Role) bool {
	if p == nil {
		return false
	}
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// IsParticipant reports whether the principal may see the appointment
func (p *Principal) IsParticipant(a *Appointment) bool {
	if p == nil || a == nil {
		return false
	}
	return p.UserID == a.UserID || p.IsDoctor(a.DoctorID) || p.AdministersHospital(a.HospitalID)
}
