package common

// BearerScheme is the Authorization header scheme carrying a session token.
const BearerScheme = "Bearer"

// BasePath is the HTTP prefix of the identity API.
const BasePath = "/api/auth"
