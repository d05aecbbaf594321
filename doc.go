// Package auth implements credential verification and JWT issuance against a
// MongoDB-backed user store.
//
// Credential verification:
//   - Auther.VerifyLogin locates a user by username (falling back to email),
//     checks the submitted password against the stored credential, enforces the
//     account's active flag, and resolves the final role name following any
//     role-reference indirection. User records are typed-but-partial: every
//     field is optional and resolution follows a fixed, documented order.
//   - Stored credentials may be bcrypt hashes or legacy plaintext values. The
//     plaintext path is a compatibility affordance for pre-existing unhashed
//     records; every match through it is logged and reported to the activity
//     sink, never silently accepted.
//
// Tokens:
//   - TokenService signs HS256 JWTs carrying subject, user_id, and role claims
//     with a fixed TTL, and validates them against the same symmetric secret.
//     All validation failures collapse to a single token error for callers.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by Auther to describe
//     login outcomes. Sinks run best-effort (errors are logged) so you can
//     forward to a database or queue without blocking authentication.
//
// Claims decoration:
//   - ClaimsDecorator is invoked before JWTs are signed. Decorators may enrich
//     the metadata extension field while protected claims (sub, user_id, role,
//     iat, exp, iss, aud) remain immutable.
package auth
