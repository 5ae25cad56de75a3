package slp

import "fmt"

// ErrorCode is an SLP API status code.
type ErrorCode int16

// SLP API status codes (RFC 2614).
const (
	OK                   ErrorCode = 0
	LastCall             ErrorCode = 1
	LanguageNotSupported ErrorCode = -1
	ParseError           ErrorCode = -2
	InvalidRegistration  ErrorCode = -3
	ScopeNotSupported    ErrorCode = -4
	AuthenticationAbsent ErrorCode = -6
	AuthenticationFailed ErrorCode = -7
	InvalidUpdate        ErrorCode = -13
	RefreshRejected      ErrorCode = -15
	NotImplemented       ErrorCode = -17
	BufferOverflow       ErrorCode = -18
	NetworkTimedOut      ErrorCode = -19
	NetworkInitFailed    ErrorCode = -20
	MemoryAllocFailed    ErrorCode = -21
	ParameterBad         ErrorCode = -22
	NetworkError         ErrorCode = -23
	InternalSystemError  ErrorCode = -24
	HandleInUse          ErrorCode = -25
	TypeError            ErrorCode = -26
)

var errorCodeNames = map[ErrorCode]string{
	OK:                   "SLP_OK",
	LastCall:             "SLP_LAST_CALL",
	LanguageNotSupported: "SLP_LANGUAGE_NOT_SUPPORTED",
	ParseError:           "SLP_PARSE_ERROR",
	InvalidRegistration:  "SLP_INVALID_REGISTRATION",
	ScopeNotSupported:    "SLP_SCOPE_NOT_SUPPORTED",
	AuthenticationAbsent: "SLP_AUTHENTICATION_ABSENT",
	AuthenticationFailed: "SLP_AUTHENTICATION_FAILED",
	InvalidUpdate:        "SLP_INVALID_UPDATE",
	RefreshRejected:      "SLP_REFRESH_REJECTED",
	NotImplemented:       "SLP_NOT_IMPLEMENTED",
	BufferOverflow:       "SLP_BUFFER_OVERFLOW",
	NetworkTimedOut:      "SLP_NETWORK_TIMED_OUT",
	NetworkInitFailed:    "SLP_NETWORK_INIT_FAILED",
	MemoryAllocFailed:    "SLP_MEMORY_ALLOC_FAILED",
	ParameterBad:         "SLP_PARAMETER_BAD",
	NetworkError:         "SLP_NETWORK_ERROR",
	InternalSystemError:  "SLP_INTERNAL_SYSTEM_ERROR",
	HandleInUse:          "SLP_HANDLE_IN_USE",
	TypeError:            "SLP_TYPE_ERROR",
}

// String returns the SLP API name of the code.
func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("SLP_ERROR(%d)", int16(c))
}

// Error implements error.
func (c ErrorCode) Error() string {
	return fmt.Sprintf("slp: %s (%d)", c.String(), int16(c))
}

// IsOK reports whether the code signals success. LastCall marks the end of a
// callback sequence and counts as success.
func (c ErrorCode) IsOK() bool {
	return c == OK || c == LastCall
}

// AsError returns nil for successful codes and the code itself otherwise.
func (c ErrorCode) AsError() error {
	if c.IsOK() {
		return nil
	}
	return c
}
