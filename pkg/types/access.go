package types

// AccessList is a named, ordered collection of permission grants.
// Lists are deduplicated by id at load time: every item subscribed to
// the same access list id holds the identical *AccessList, so shared
// lists serialize as one object.
type AccessList struct {
	ID      int
	Entries []AccessEntry
}

// AccessEntry grants a permission to a principal: a user, a group, or
// (for a few Gallery2 modules) an item.
type AccessEntry struct {
	Permission int
	Principal  Entity
}
