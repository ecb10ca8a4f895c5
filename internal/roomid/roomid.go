package roomid

import "github.com/google/uuid"

// Valid reports whether candidate is a room ID in canonical textual UUID
// form (8-4-4-4-12 hex groups, case-insensitive). uuid.Parse alone is too
// permissive for this: it also accepts urn: prefixes, braced and bare-hex
// forms that the join form rejects, so the shape is checked first. The same
// rule gates both room creation and the client-side form.
func Valid(candidate string) bool {
	if len(candidate) != 36 {
		return false
	}
	if candidate[8] != '-' || candidate[13] != '-' || candidate[18] != '-' || candidate[23] != '-' {
		return false
	}
	_, err := uuid.Parse(candidate)
	return err == nil
}

// New returns a fresh room ID in canonical lowercase form.
func New() string {
	return uuid.NewString()
}
