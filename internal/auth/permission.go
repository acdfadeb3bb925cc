package auth

import (
	"net/http"

	"github.com/ovaphlow/pitchfork/service-social/internal/apperror"
	"github.com/ovaphlow/pitchfork/service-social/internal/user/entity"
)

type VerbClass int

const (
	Read VerbClass = iota
	Write
)

// VerbClassOf maps safe HTTP methods to Read and everything else to Write.
func VerbClassOf(method string) VerbClass {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return Read
	default:
		return Write
	}
}

// Resource is anything with a single owning user.
type Resource interface {
	OwnerID() int64
}

type Decision int

const (
	Allow Decision = iota
	DenyUnauthenticated
	DenyForbidden
)

// Err converts a deny decision into the error surfaced to clients.
func (d Decision) Err() error {
	switch d {
	case DenyUnauthenticated:
		return apperror.Unauthenticated()
	case DenyForbidden:
		return apperror.Forbidden()
	default:
		return nil
	}
}

// Authorize decides whether identity (nil for anonymous) may apply verb to res.
// Reads are public; writes need the owner.
func Authorize(identity *entity.User, res Resource, verb VerbClass) Decision {
	if verb == Read {
		return Allow
	}
	if identity == nil {
		return DenyUnauthenticated
	}
	if !identity.Owns(res.OwnerID()) {
		return DenyForbidden
	}
	return Allow
}
