package types

// User is a gallery account.
type User struct {
	Common
	UserName         string // unique
	FullName         string
	Email            string
	Language         string
	Locked           bool
	PluginParameters Parameters
}

// Tag returns the serialized type tag.
func (u *User) Tag() string { return "User" }

// Group is a named set of users.
type Group struct {
	Common
	GroupType int
	GroupName string // unique
	Users     []*User
}

// Tag returns the serialized type tag.
func (g *Group) Tag() string { return "Group" }
