// Package google acquires and persists OAuth2 credentials for Google APIs.
//
// A CredentialProvider reads an installed-app client secret, reuses the token
// stored under TokenDir when it is still valid, refreshes it when it has
// expired, and otherwise runs an interactive consent flow with a loopback
// redirect. Tokens are written back after every refresh so later runs start
// from the newest one.
package google
