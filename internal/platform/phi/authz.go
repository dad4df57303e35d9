package phi

import "errors"

// Role is an authenticated principal's role. The set is closed: a role
// outside it holds no permissions at all.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// Resource identifies a category of protected data. It is only ever used as
// a lookup key into the authorization matrix.
type Resource string

const (
	ResourceMedicalRecords Resource = "medical_records"
	ResourcePrescriptions  Resource = "prescriptions"
	ResourceAppointments   Resource = "appointments"
	ResourcePatientInfo    Resource = "patient_info"
)

// Action is an operation attempted against a protected resource.
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ErrAuthorizationDenied is returned when the matrix denies an access. The
// boundary maps it to a plain 403 so that a denial never reveals whether the
// resource exists.
var ErrAuthorizationDenied = errors.New("access to protected health information denied")

// authorizationMatrix is the process-wide access policy. It is constructed
// once and never mutated at runtime; changing it requires a redeploy.
var authorizationMatrix = map[Role]map[Resource][]Action{
	RoleDoctor: {
		ResourceMedicalRecords: {ActionRead, ActionWrite, ActionUpdate},
		ResourcePrescriptions:  {ActionRead, ActionWrite, ActionUpdate},
		ResourceAppointments:   {ActionRead, ActionWrite, ActionUpdate},
		ResourcePatientInfo:    {ActionRead},
	},
	RolePatient: {
		ResourceMedicalRecords: {ActionRead},
		ResourcePrescriptions:  {ActionRead},
		ResourceAppointments:   {ActionRead, ActionWrite},
		ResourcePatientInfo:    {ActionRead, ActionUpdate},
	},
	RoleAdmin: {
		ResourceMedicalRecords: {ActionRead},
		ResourcePrescriptions:  {ActionRead},
		ResourceAppointments:   {ActionRead},
		ResourcePatientInfo:    {ActionRead},
	},
}

// IsAuthorized reports whether role may perform action on the given resource
// type. Unknown roles and resource types yield an empty permission set, so
// everything not explicitly granted is denied. It must be consulted before
// any decrypt or persist touching the resource type.
func IsAuthorized(role Role, resource Resource, action Action) bool {
	for _, allowed := range authorizationMatrix[role][resource] {
		if allowed == action {
			return true
		}
	}
	return false
}

// AllowedActions returns the action set granted to role for resource. The
// returned slice is a copy; callers cannot tamper with the matrix through it.
func AllowedActions(role Role, resource Resource) []Action {
	granted := authorizationMatrix[role][resource]
	out := make([]Action, len(granted))
	copy(out, granted)
	return out
}

// ValidateEmergencyAccess is the break-glass extension point. There is no
// emergency-override protocol designed yet, so it always denies: a real
// implementation needs its own heavier audit trail before any bypass can be
// allowed.
func ValidateEmergencyAccess(principalID string, resource Resource) bool {
	return false
}
