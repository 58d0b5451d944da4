package model

// Group is a static partition of the host pool, used to scope
// "lease a random host" requests.  Groups are provisioned out of band
// and are read-only to this service.
//
// Fields:
//  ID   – primary key identifier.
//  Name – unique group name.
type Group struct {
	ID   GroupID // groups.id
	Name string  // groups.name
}
