package phi

// Masking placeholders. Phone and SSN keep their last four characters; a
// date of birth retains no information at all.
const (
	phonePrefix    = "XXX-XXX-"
	ssnPrefix      = "XXX-XX-"
	dobPlaceholder = "XXXX-XX-XX"
)

// maskedFields maps identifying field names to their masking rule.
var maskedFields = map[string]func(string) string{
	"phone":         maskKeepLast4(phonePrefix),
	"ssn":           maskKeepLast4(ssnPrefix),
	"date_of_birth": func(string) string { return dobPlaceholder },
}

func maskKeepLast4(prefix string) func(string) string {
	return func(v string) string {
		if len(v) <= 4 {
			return prefix + v
		}
		return prefix + v[len(v)-4:]
	}
}

// Mask returns a copy of record with identifying fields redacted. Only fields
// present in the record are touched; nothing is ever invented. Masking is
// idempotent: a masked value re-masks to itself because the rules keep only
// the trailing characters they preserve.
//
// It is applied after decryption, before serialization, whenever the
// requesting role lacks full-visibility rights for the resource type.
func Mask(record map[string]any) map[string]any {
	masked := make(map[string]any, len(record))
	for k, v := range record {
		masked[k] = v
	}
	for field, rule := range maskedFields {
		v, ok := masked[field]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		masked[field] = rule(s)
	}
	return masked
}
