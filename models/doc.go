// Package models defines the bun-mapped entities of the service together
// with their create and update inputs, and registers them for migration.
package models
