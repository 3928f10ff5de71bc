package auth

import "fmt"

// Result is the outcome of a checkin attempt. Every failure path inside the
// login pipeline resolves to one of these values; no error leaves the
// controller boundary unhandled.
type Result int

const (
	AuthSuccess Result = iota
	AlreadyOnLS
	AlreadyOnGS
	AccountBanned
	InvalidPassword
	AddressBanned
)

func (r Result) String() string {
	switch r {
	case AuthSuccess:
		return "AuthSuccess"
	case AlreadyOnLS:
		return "AlreadyOnLS"
	case AlreadyOnGS:
		return "AlreadyOnGS"
	case AccountBanned:
		return "AccountBanned"
	case InvalidPassword:
		return "InvalidPassword"
	case AddressBanned:
		return "AddressBanned"
	default:
		return fmt.Sprintf("Unknown(%d)", int(r))
	}
}

// DisconnectReason is the reason code sent to the client before the
// connection is closed. Each Result maps to a distinct code so the client
// can tell a ban from a bad password from a duplicate session.
type DisconnectReason byte

const (
	ReasonNone             DisconnectReason = 0x00 // close without a fail packet
	ReasonSystemError      DisconnectReason = 0x01
	ReasonUserOrPassWrong  DisconnectReason = 0x03
	ReasonAccessFailed     DisconnectReason = 0x04 // idle kick / policy rejection
	ReasonAccountInUse     DisconnectReason = 0x07
	ReasonAccountInWorld   DisconnectReason = 0x08
	ReasonAccountSuspended DisconnectReason = 0x09
	ReasonServerOverloaded DisconnectReason = 0x0f
	ReasonAddressBlocked   DisconnectReason = 0x10
)
