package sqlguard

import (
	"fmt"

	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/vendacrm/venda-engine/pkg/apperrors"
)

// InjectionHit describes a clicked-payload value that matched a SQL injection
// fingerprint.
type InjectionHit struct {
	Field       string
	Fingerprint string
}

// CheckClickedValue runs libinjection over a single clicked value. Only
// strings are checked; numbers, booleans and nil cannot carry injection
// payloads. Returns nil when the value is clean.
func CheckClickedValue(field string, value any) *InjectionHit {
	s, ok := value.(string)
	if !ok {
		return nil
	}
	isSQLi, fingerprint := libinjection.IsSQLi(s)
	if !isSQLi {
		return nil
	}
	return &InjectionHit{Field: field, Fingerprint: string(fingerprint)}
}

// CheckClickedValues screens every string value of a clicked-chart payload
// before it is bound into the detail query. The query itself is always
// executed with driver-level parameter binding, so this is defense in depth
// rather than the primary barrier. A hit is a binding error: the payload is
// attacker-controllable, the template is not.
func CheckClickedValues(clicked map[string]any) error {
	for field, value := range clicked {
		if hit := CheckClickedValue(field, value); hit != nil {
			return fmt.Errorf("%w: injection pattern %q in field %s",
				apperrors.ErrBinding, hit.Fingerprint, hit.Field)
		}
	}
	return nil
}
