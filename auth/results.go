package auth

import (
	"time"

	"github.com/jrsteele09/research-portal/accounts"
)

// ReasonCode is the machine-readable outcome of a login or account operation
type ReasonCode string

const (
	ReasonOK                       ReasonCode = "ok"
	ReasonInvalidCredentials       ReasonCode = "invalid_credentials"
	ReasonAccountInactive          ReasonCode = "account_inactive"
	ReasonPendingApproval          ReasonCode = "pending_approval"
	ReasonInvalidExternalToken     ReasonCode = "invalid_external_token"
	ReasonStorageError             ReasonCode = "storage_error"
	ReasonInvalidInput             ReasonCode = "invalid_input"
	ReasonDuplicateAccount         ReasonCode = "duplicate_account"
	ReasonCurrentPasswordIncorrect ReasonCode = "current_password_incorrect"
	ReasonNotFound                 ReasonCode = "not_found"
	ReasonForbidden                ReasonCode = "forbidden"
	ReasonInvalidTransition        ReasonCode = "invalid_transition"
)

var reasonMessages = map[ReasonCode]string{
	ReasonOK:                       "",
	ReasonInvalidCredentials:       "invalid credentials",
	ReasonAccountInactive:          "account deactivated",
	ReasonPendingApproval:          "pending approval",
	ReasonInvalidExternalToken:     "invalid token",
	ReasonStorageError:             "something went wrong, please try again",
	ReasonInvalidInput:             "invalid input",
	ReasonDuplicateAccount:         "an account with these details already exists",
	ReasonCurrentPasswordIncorrect: "current password incorrect",
	ReasonNotFound:                 "not found",
	ReasonForbidden:                "forbidden",
	ReasonInvalidTransition:        "request has already been decided",
}

// Message is the user-facing text for a reason code
func (c ReasonCode) Message() string {
	return reasonMessages[c]
}

// LoginResult is returned by every login attempt. Expected business failures are reported here,
// never as errors.
type LoginResult struct {
	Success      bool                    `json:"success"`
	SessionToken string                  `json:"-"`
	ExpiresAt    time.Time               `json:"expires_at,omitzero"`
	Account      *accounts.PublicAccount `json:"account,omitempty"`
	ReasonCode   ReasonCode              `json:"reason_code"`
	Reason       string                  `json:"reason,omitempty"`
}

func loginRejected(code ReasonCode) LoginResult {
	return LoginResult{ReasonCode: code, Reason: code.Message()}
}

// Result is the outcome of an operation that does not issue a session
type Result struct {
	Success    bool       `json:"success"`
	ReasonCode ReasonCode `json:"reason_code"`
	Reason     string     `json:"reason,omitempty"`
}

func Succeeded() Result {
	return Result{Success: true, ReasonCode: ReasonOK}
}

func Failed(code ReasonCode) Result {
	return Result{ReasonCode: code, Reason: code.Message()}
}

// InvalidInput reports a validation failure with a specific message
func InvalidInput(msg string) Result {
	return Result{ReasonCode: ReasonInvalidInput, Reason: msg}
}

type RegisterRequest struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	OrgUnit     string `json:"org_unit"`
}

type RegisterResult struct {
	Result
	Account         *accounts.PublicAccount `json:"account,omitempty"`
	PendingApproval bool                    `json:"pending_approval"`
}
