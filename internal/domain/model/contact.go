package model

// ContactRole values recognised by the staging fan-out.
const (
	ContactRoleStaff = "STAFF"
)

// Contact is a recipient record from the contact directory, already projected
// onto the addresses relevant to one channel.
type Contact struct {
	UserID           int64  `json:"user_id"           db:"user_id"`
	PrimaryAddress   string `json:"primary_address"   db:"primary_address"`
	SecondaryAddress string `json:"secondary_address" db:"secondary_address"`
	Role             string `json:"role"              db:"role"`
	StagingOptIn     bool   `json:"staging_opt_in"    db:"staging_opt_in"`
	Active           bool   `json:"active"            db:"active"`
	Suspended        bool   `json:"suspended"         db:"suspended"`
}

// Address returns the preferred address, or the secondary one, or "".
func (c *Contact) Address() string {
	if c == nil {
		return ""
	}
	if c.PrimaryAddress != "" {
		return c.PrimaryAddress
	}
	return c.SecondaryAddress
}

// EligibleForStaging reports whether the contact receives staging traffic.
func (c *Contact) EligibleForStaging() bool {
	return c != nil && c.Role == ContactRoleStaff && c.StagingOptIn && c.Active && !c.Suspended
}
