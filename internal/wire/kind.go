package wire

import "fmt"

// Kind is an agent protocol message number, always the first payload byte.
type Kind uint8

// Message numbers from the agent protocol.
const (
	KindFailure             Kind = 5
	KindSuccess             Kind = 6
	KindRequestIdentities   Kind = 11
	KindIdentitiesAnswer    Kind = 12
	KindSignRequest         Kind = 13
	KindSignResponse        Kind = 14
	KindAddIdentity         Kind = 17
	KindRemoveIdentity      Kind = 18
	KindRemoveAllIdentities Kind = 19
	KindLock                Kind = 22
	KindUnlock              Kind = 23
	KindAddIDConstrained    Kind = 25
	KindExtension           Kind = 27
	KindExtensionFailure    Kind = 28
)

// IsResponse reports whether the message number is an agent->client message.
func (k Kind) IsResponse() bool {
	switch k {
	case KindFailure, KindSuccess, KindIdentitiesAnswer, KindSignResponse, KindExtensionFailure:
		return true
	default:
		return false
	}
}

func (k Kind) String() string {
	switch k {
	case KindFailure:
		return "failure"
	case KindSuccess:
		return "success"
	case KindRequestIdentities:
		return "request_identities"
	case KindIdentitiesAnswer:
		return "identities_answer"
	case KindSignRequest:
		return "sign_request"
	case KindSignResponse:
		return "sign_response"
	case KindAddIdentity:
		return "add_identity"
	case KindRemoveIdentity:
		return "remove_identity"
	case KindRemoveAllIdentities:
		return "remove_all_identities"
	case KindLock:
		return "lock"
	case KindUnlock:
		return "unlock"
	case KindAddIDConstrained:
		return "add_identity_constrained"
	case KindExtension:
		return "extension"
	case KindExtensionFailure:
		return "extension_failure"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}
