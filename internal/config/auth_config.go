package config

import "time"

type AuthConfig interface {
	GetOrgDomain() string
	GetAdminEmails() []string
	GetLocalSessionTTL() time.Duration
	GetRememberSessionTTL() time.Duration
	GetExternalSessionTTL() time.Duration
	GetBcryptCost() int
	GetLoginRatePerMinute() int
	GetLoginRateBurst() int
}

type Auth struct {
	file *fileConfig
}

var _ AuthConfig = Auth{}

// GetOrgDomain returns the organisation's own e-mail domain. Accounts on this domain are
// approved as staff automatically.
func (a Auth) GetOrgDomain() string {
	return GetEnv("ORG_DOMAIN", fileString(a.file, func(f *fileConfig) string { return f.Auth.OrgDomain }, ""))
}

func (a Auth) GetAdminEmails() []string {
	var fromFile []string
	if a.file != nil {
		fromFile = a.file.Auth.AdminEmails
	}
	return getList("ADMIN_EMAILS", fromFile)
}

func (a Auth) GetLocalSessionTTL() time.Duration {
	return getDuration("SESSION_TTL_LOCAL", fileString(a.file, func(f *fileConfig) string { return f.Auth.LocalSessionTTL }, ""), 8*time.Hour)
}

func (a Auth) GetRememberSessionTTL() time.Duration {
	return getDuration("SESSION_TTL_REMEMBER", fileString(a.file, func(f *fileConfig) string { return f.Auth.RememberSessionTTL }, ""), 30*24*time.Hour)
}

func (a Auth) GetExternalSessionTTL() time.Duration {
	return getDuration("SESSION_TTL_EXTERNAL", fileString(a.file, func(f *fileConfig) string { return f.Auth.ExternalSessionTTL }, ""), 8*time.Hour)
}

func (a Auth) GetBcryptCost() int {
	var fromFile int
	if a.file != nil {
		fromFile = a.file.Auth.BcryptCost
	}
	return getInt("BCRYPT_COST", fromFile, 12)
}

func (a Auth) GetLoginRatePerMinute() int {
	var fromFile int
	if a.file != nil {
		fromFile = a.file.Auth.LoginRatePerMinute
	}
	return getInt("LOGIN_RATE_PER_MINUTE", fromFile, 10)
}

func (a Auth) GetLoginRateBurst() int {
	var fromFile int
	if a.file != nil {
		fromFile = a.file.Auth.LoginRateBurst
	}
	return getInt("LOGIN_RATE_BURST", fromFile, 5)
}
