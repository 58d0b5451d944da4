package model

// User represents an application user record as stored in the `users`
// table.  Login is the external identity (directory DN or account
// name) under which the user authenticates.  NotificationHandle is the
// opaque address messages are delivered to; it stays nil until the
// user links an account, and notification attempts for such users fail
// softly.  Link is a random token embedded in the account-linking URL
// handed to the user.
//
// Fields:
//  ID                 – primary key identifier.
//  Login              – unique external identity.
//  NotificationHandle – delivery address for notifications (nullable).
//  Email              – contact email (nullable).
//  Link               – opaque account-linking token.
type User struct {
	ID                 UserID  // users.id
	Login              string  // users.login
	NotificationHandle *string // users.notification_handle (nullable)
	Email              *string // users.email (nullable)
	Link               string  // users.link
}
