package domain

const TokenTypeBearer = "bearer"

// TokenPair is rebuilt on every login or refresh and never persisted.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}
