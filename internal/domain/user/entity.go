package user

import "time"

// User represents a user entity in the system.
type User struct {
	ID        string    // ID is the store-generated identifier, immutable after creation
	Username  string    // Username is the exact, case-sensitive handle of the user
	Email     *string   // Email is optional
	FirstName *string   // FirstName is optional
	LastName  *string   // LastName is optional
	CreatedAt time.Time // CreatedAt is set once at creation (UTC)
	UpdatedAt time.Time // UpdatedAt is refreshed on every update (UTC)
}

// Patch carries the fields of a partial update. A nil or empty field leaves
// the stored value untouched.
type Patch struct {
	Email     *string
	FirstName *string
	LastName  *string
}

// Fields returns the patch entries that should overwrite stored values,
// keyed by the given column names.
func (p Patch) Fields(emailKey, firstNameKey, lastNameKey string) map[string]string {
	fields := make(map[string]string, 3)
	if present(p.Email) {
		fields[emailKey] = *p.Email
	}
	if present(p.FirstName) {
		fields[firstNameKey] = *p.FirstName
	}
	if present(p.LastName) {
		fields[lastNameKey] = *p.LastName
	}
	return fields
}

func present(s *string) bool {
	return s != nil && *s != ""
}

// Now returns the current UTC time truncated to millisecond precision, the
// finest resolution both supported stores round-trip.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
