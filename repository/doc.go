// Package repository provides a generic, session-agnostic CRUD repository
// built on Bun, and its specializations for users, items and access tokens.
package repository
