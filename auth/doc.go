// Package auth registers users, issues and revokes bearer tokens, and
// resolves a token back to its user.
package auth
