// Package privacy keeps complainant identities out of public API
// responses. Complaints are stored with the submitter's email so
// government reviewers can follow up, but public listings only ever see
// a masked address and a stable pseudonym.
package privacy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// MaskEmail hides the local part of an address, keeping the first
// character and the domain: "ramesh@example.com" -> "r*****@example.com".
// Inputs that don't look like an email are masked entirely.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return strings.Repeat("*", len(email))
	}

	local := email[:at]
	domain := email[at:]

	masked := string(local[0])
	if len(local) > 1 {
		masked += strings.Repeat("*", len(local)-1)
	}
	return masked + domain
}

// Pseudonym derives a stable anonymous handle from an email. The same
// submitter maps to the same handle across complaints, so reviewers can
// spot repeat reporters without learning who they are.
func Pseudonym(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return fmt.Sprintf("citizen-%s", hex.EncodeToString(sum[:4]))
}
