// Package cli implements identityctl, an interactive client for the identityd
// HTTP API.
//
// The REPL covers the whole account lifecycle: register, verify (paste the
// token from the verification link), login, forgot (request a recovery code,
// confirm it and set a new password), profile, update, passwd, history and
// logout.
package cli
