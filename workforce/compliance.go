package workforce

import (
	"fmt"
	"strings"

	"github.com/warp/deploy-engine/generic"
)

// DefaultHorizonDays is the "6-week" warning horizon.
const DefaultHorizonDays = 42

// =============================================================================
// RESULT TYPES
// =============================================================================

type OverallCompliance string

const (
	ComplianceCompliant OverallCompliance = "compliant"
	ComplianceAttention OverallCompliance = "attention"
	ComplianceNoData    OverallCompliance = "no-data"
)

// Expiry is a required certificate inside the horizon. Already-expired
// certificates are included with DaysLeft <= 0.
type Expiry struct {
	Type     string
	DaysLeft int
}

func (e Expiry) IsExpired() bool { return e.DaysLeft <= 0 }

// Label is "Expired" for DaysLeft <= 0 and "Expiring" otherwise.
func (e Expiry) Label() string {
	if e.IsExpired() {
		return "Expired"
	}
	return "Expiring"
}

func (e Expiry) String() string {
	if e.IsExpired() {
		return fmt.Sprintf("%s: Expired (%d days ago)", e.Type, -e.DaysLeft)
	}
	return fmt.Sprintf("%s: Expiring in %d days", e.Type, e.DaysLeft)
}

type ComplianceResult struct {
	Missing  []string
	Expiring []Expiry
	// Undated lists required types whose matching certificate has no
	// usable expiry date.
	Undated []string
	Overall OverallCompliance
}

// ComplianceOptions tunes EvaluateCompliance. Zero values select the
// defaults.
type ComplianceOptions struct {
	HorizonDays int               // default 42
	Reference   generic.TimePoint // default today
	CertType    CertType          // "" = any; ASBESTOS restricts candidates
}

func (o ComplianceOptions) withDefaults() ComplianceOptions {
	if o.HorizonDays <= 0 {
		o.HorizonDays = DefaultHorizonDays
	}
	if o.Reference.IsZero() {
		o.Reference = generic.Today()
	}
	return o
}

// =============================================================================
// EVALUATION
// =============================================================================

// EvaluateCompliance checks op's certificates against required. Pure; bad
// dates degrade to "not compliant".
func EvaluateCompliance(op Operative, required []string, opts ComplianceOptions) ComplianceResult {
	opts = opts.withDefaults()
	result := ComplianceResult{Overall: ComplianceCompliant}

	if len(op.Certificates) == 0 {
		result.Missing = append([]string(nil), required...)
		result.Overall = ComplianceNoData
		return result
	}

	for _, req := range required {
		cert, ok := bestMatch(op.Certificates, req, opts.CertType)
		if !ok {
			result.Missing = append(result.Missing, req)
			result.Overall = ComplianceAttention
			continue
		}
		if cert.ExpiryDate.IsZero() {
			result.Undated = append(result.Undated, req)
			result.Overall = ComplianceAttention
			continue
		}

		daysLeft := generic.DaysUntil(opts.Reference, cert.ExpiryDate)
		if daysLeft <= opts.HorizonDays {
			result.Expiring = append(result.Expiring, Expiry{Type: req, DaysLeft: daysLeft})
			result.Overall = ComplianceAttention
			continue
		}
		if cert.Status.IsRisk() {
			result.Overall = ComplianceAttention
		}
	}
	return result
}

// bestMatch finds the certificate for a required type. Among several
// matches the latest expiry wins; undated matches lose to dated ones.
func bestMatch(certs []Certificate, required string, filter CertType) (Certificate, bool) {
	want := strings.ToLower(strings.TrimSpace(required))
	var (
		best  Certificate
		found bool
	)
	for _, c := range certs {
		if strings.ToLower(strings.TrimSpace(c.Name)) != want {
			continue
		}
		if filter != "" && c.Type.Normalized() != filter.Normalized() {
			continue
		}
		if !found || c.ExpiryDate.After(best.ExpiryDate) {
			best, found = c, true
		}
	}
	return best, found
}

// =============================================================================
// PER-CERTIFICATE FRESHNESS
// =============================================================================

type Freshness string

const (
	FreshValid        Freshness = "valid"
	FreshExpiringSoon Freshness = "expiring-soon"
	FreshExpired      Freshness = "expired"
	FreshMissing      Freshness = "missing"
)

// CertificateFreshness classifies one certificate against ref. A missing
// expiry or an INVALID stored status reads as missing.
func CertificateFreshness(c Certificate, ref generic.TimePoint, horizonDays int) Freshness {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	if c.ExpiryDate.IsZero() || CertStatus(strings.ToUpper(string(c.Status))) == CertInvalid {
		return FreshMissing
	}
	daysLeft := generic.DaysUntil(ref, c.ExpiryDate)
	switch {
	case daysLeft <= 0:
		return FreshExpired
	case daysLeft <= horizonDays:
		return FreshExpiringSoon
	}
	return FreshValid
}

// =============================================================================
// CERTIFICATE MAINTENANCE
// =============================================================================

// AddCertificates appends certs to op and returns the updated operative.
func AddCertificates(op Operative, certs ...Certificate) Operative {
	op.Certificates = append(append([]Certificate(nil), op.Certificates...), certs...)
	return op
}

// ReplaceCertificate swaps the certificate with cert.ID in place.
func ReplaceCertificate(op Operative, cert Certificate) (Operative, error) {
	out := append([]Certificate(nil), op.Certificates...)
	for i, c := range out {
		if c.ID == cert.ID {
			out[i] = cert
			op.Certificates = out
			return op, nil
		}
	}
	return op, generic.NewNotFound(generic.ErrCertificateNotFound, "certificate", cert.ID)
}

// RemoveCertificate drops the certificate with id. Absent ids leave op
// unchanged and report NotFound.
func RemoveCertificate(op Operative, id string) (Operative, error) {
	out := make([]Certificate, 0, len(op.Certificates))
	removed := false
	for _, c := range op.Certificates {
		if c.ID == id {
			removed = true
			continue
		}
		out = append(out, c)
	}
	if !removed {
		return op, generic.NewNotFound(generic.ErrCertificateNotFound, "certificate", id)
	}
	op.Certificates = out
	return op, nil
}

// UpsertCertificates replaces certificates sharing an id and appends the
// rest.
func UpsertCertificates(op Operative, certs []Certificate) Operative {
	for _, c := range certs {
		if c.ID != "" {
			if updated, err := ReplaceCertificate(op, c); err == nil {
				op = updated
				continue
			}
		}
		op = AddCertificates(op, c)
	}
	return op
}

// BulkAddCertificates adds the same certificates to every operative in ids.
// Returns the changed operatives and the ids that were not found.
func BulkAddCertificates(ops []Operative, ids []OperativeID, certs []Certificate) ([]Operative, []OperativeID) {
	byID := make(map[OperativeID]Operative, len(ops))
	for _, o := range ops {
		byID[o.ID] = o
	}
	var (
		changed []Operative
		missing []OperativeID
	)
	for _, id := range ids {
		op, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		changed = append(changed, AddCertificates(op, certs...))
	}
	return changed, missing
}
