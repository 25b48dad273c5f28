package constants

// Field Length Limits
const (
	MinPasswordLength = 8
	MaxPasswordLength = 100
	MinNameLength     = 2
	MaxNameLength     = 50
	MaxEmailLength    = 255
)

// Token Settings
const (
	DefaultAccessTokenTTLMinutes = 15
	DefaultRefreshTokenTTLDays   = 7
	MinSigningSecretBytes        = 32
	RefreshTokenEntropyBytes     = 32 // 256 bits
)
