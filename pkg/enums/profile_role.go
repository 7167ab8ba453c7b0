package enums

// ProfileRole is the role recorded on a user profile.
type ProfileRole string

const (
	ProfileRoleDoctor ProfileRole = "doctor"
	ProfileRoleAdmin  ProfileRole = "admin"
)
