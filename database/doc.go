// Package database provides connection management, migrations, foreign key
// handling, SQL seeding, request-scoped sessions, and SQL error
// classification built on top of Bun.
package database
