package config

type GoogleConfig interface {
	GetGoogleClientID() string
	GetGoogleClientSecret() string
	GetGoogleIssuers() []string
	GetOAuthStateSecret() string
}

type Google struct {
	file *fileConfig
}

var _ GoogleConfig = Google{}

// Google signs ID tokens with either spelling of its issuer
var defaultGoogleIssuers = []string{"https://accounts.google.com", "accounts.google.com"}

// GetGoogleClientID returns the OAuth client ID registered for the portal. An empty value
// disables Google sign-in.
func (g Google) GetGoogleClientID() string {
	return GetEnv("GOOGLE_CLIENT_ID", fileString(g.file, func(f *fileConfig) string { return f.Google.ClientID }, ""))
}

func (g Google) GetGoogleClientSecret() string {
	return GetEnv("GOOGLE_CLIENT_SECRET", fileString(g.file, func(f *fileConfig) string { return f.Google.ClientSecret }, ""))
}

func (g Google) GetGoogleIssuers() []string {
	var fromFile []string
	if g.file != nil {
		fromFile = g.file.Google.Issuers
	}
	if issuers := getList("GOOGLE_ISSUERS", fromFile); len(issuers) > 0 {
		return issuers
	}
	return defaultGoogleIssuers
}

// GetOAuthStateSecret returns the HMAC key for the sign-in state cookie
func (g Google) GetOAuthStateSecret() string {
	return GetEnv("OAUTH_STATE_SECRET", fileString(g.file, func(f *fileConfig) string { return f.Google.StateSecret }, ""))
}
