// Package auth provides operator authentication for Sweep Core.
//
// The system uses a single-operator model: credentials live in config.yaml
// as a username plus an Argon2id password hash, and successful login issues
// a short-lived HS256 JWT. There is no user database.
//
// # Key Functions
//
//   - HashPassword / VerifyPassword: Argon2id in PHC string format
//   - GenerateAccessToken / ParseToken: HS256 JWT issue and validation
//
// # Usage
//
//	ok, err := auth.VerifyPassword(password, cfg.Security.Operator.PasswordHash)
//	if err != nil || !ok {
//	    return auth.ErrInvalidCredentials
//	}
//	token, err := auth.GenerateAccessToken(username, cfg.Security.JWT.Secret, ttl)
package auth
