package isolation

import (
	"github.com/taskplane/taskplane/shared/apperr"
)

// ResolveOverride decides whether a request runs with the tenant filter
// bypassed. Both conditions are required: the credential must carry the
// global-admin capability and the request must ask for the override
// explicitly. Asking without the capability is a FORBIDDEN error, never a
// silent downgrade to normal scoping.
func ResolveOverride(globalAdmin, requested bool) (bool, error) {
	if requested && !globalAdmin {
		return false, apperr.New(apperr.CodeForbidden, "admin override requires the global-admin capability")
	}
	return globalAdmin && requested, nil
}
