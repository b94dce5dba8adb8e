package model

type GeneratePasswordRequest struct {
	MasterPassword string         `json:"masterPassword"`
	Platform       string         `json:"platform"`
	PasswordLength *int           `json:"passwordLength,omitempty"`
	PasswordRules  *PasswordRules `json:"passwordRules,omitempty"`
}

// PasswordRules are per-request overrides; nil fields keep the platform
// defaults.
type PasswordRules struct {
	RequireSymbols   *bool `json:"requireSymbols,omitempty"`
	ExcludeAmbiguous *bool `json:"excludeAmbiguous,omitempty"`
}

type GeneratePasswordResponse struct {
	Password string           `json:"password"`
	Metadata PasswordMetadata `json:"metadata"`
}

type PasswordMetadata struct {
	Platform         string           `json:"platform"`
	Length           int              `json:"length"`
	RequireSymbols   bool             `json:"requireSymbols"`
	ExcludeAmbiguous bool             `json:"excludeAmbiguous"`
	Strength         PasswordStrength `json:"strength"`
}

type PasswordStrength struct {
	Score int    `json:"score"`
	Label string `json:"label"`
}
