package models

// Attendee is a contact directory entry for officers, witnesses and supervisors.
type Attendee struct {
	ID           string       `db:"id" json:"id"`
	FullName     string       `db:"full_name" json:"full_name"`
	Role         AttendeeRole `db:"role" json:"role"`
	Phone        *string      `db:"phone" json:"phone,omitempty"`
	Email        *string      `db:"email" json:"email,omitempty"`
	SupervisorID *string      `db:"supervisor_id" json:"supervisor_id,omitempty"`
}

// Recipient converts the directory entry into a notification recipient.
func (a Attendee) Recipient() Recipient {
	r := Recipient{ID: a.ID, Name: a.FullName}
	if a.Phone != nil {
		r.Phone = *a.Phone
	}
	if a.Email != nil {
		r.Email = *a.Email
	}
	return r
}
