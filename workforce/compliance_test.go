package workforce_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/deploy-engine/generic"
	"github.com/warp/deploy-engine/workforce"
)

var ref = date("2024-03-01")

func evaluate(op workforce.Operative, required ...string) workforce.ComplianceResult {
	return workforce.EvaluateCompliance(op, required, workforce.ComplianceOptions{Reference: ref})
}

// =============================================================================
// HORIZON BOUNDARY
// =============================================================================

func TestCompliance_HorizonBoundary(t *testing.T) {
	tests := []struct {
		name     string
		offset   int
		overall  workforce.OverallCompliance
		flagged  bool
		label    string
		daysLeft int
	}{
		{"exactly 42 days is expiring", 42, workforce.ComplianceAttention, true, "Expiring", 42},
		{"43 days is not flagged", 43, workforce.ComplianceCompliant, false, "", 0},
		{"today is expired", 0, workforce.ComplianceAttention, true, "Expired", 0},
		{"past is expired", -5, workforce.ComplianceAttention, true, "Expired", -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// GIVEN: one required certificate expiring offset days from ref
			op := operative("o1", "Olive", "Oak")
			op.Certificates = []workforce.Certificate{cert("CSCS", ref.AddDays(tt.offset))}

			// WHEN
			res := evaluate(op, "CSCS")

			// THEN
			assert.Equal(t, tt.overall, res.Overall)
			if !tt.flagged {
				assert.Empty(t, res.Expiring)
				return
			}
			require.Len(t, res.Expiring, 1)
			assert.Equal(t, tt.daysLeft, res.Expiring[0].DaysLeft)
			assert.Equal(t, tt.label, res.Expiring[0].Label())
		})
	}
}

func TestCompliance_ExpiredIsNeverExpiringLabel(t *testing.T) {
	for offset := -30; offset <= 0; offset++ {
		e := workforce.Expiry{Type: "CSCS", DaysLeft: offset}
		assert.True(t, e.IsExpired(), "offset %d", offset)
		assert.Equal(t, "Expired", e.Label(), "offset %d", offset)
	}
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestCompliance_MedicalExpiringInTenDays(t *testing.T) {
	// GIVEN: Medical expires in 10 days, CSCS is fine
	op := operative("o1", "Olive", "Oak")
	op.Certificates = []workforce.Certificate{
		cert("CSCS", ref.AddDays(200)),
		cert("Medical", ref.AddDays(10)),
	}

	// WHEN
	res := evaluate(op, "CSCS", "Medical")

	// THEN
	assert.Equal(t, workforce.ComplianceAttention, res.Overall)
	assert.Equal(t, []workforce.Expiry{{Type: "Medical", DaysLeft: 10}}, res.Expiring)
	assert.Empty(t, res.Missing)
	assert.Equal(t, "Medical: Expiring in 10 days", res.Expiring[0].String())
}

func TestCompliance_NoCertificatesIsNoData(t *testing.T) {
	op := operative("o1", "Olive", "Oak")

	res := evaluate(op, "CSCS", "Medical")

	assert.Equal(t, workforce.ComplianceNoData, res.Overall)
	assert.Equal(t, []string{"CSCS", "Medical"}, res.Missing)
}

func TestCompliance_MissingRequiredType(t *testing.T) {
	op := operative("o1", "Olive", "Oak")
	op.Certificates = []workforce.Certificate{cert("CSCS", ref.AddDays(200))}

	res := evaluate(op, "CSCS", "First Aid")

	assert.Equal(t, workforce.ComplianceAttention, res.Overall)
	assert.Equal(t, []string{"First Aid"}, res.Missing)
}

func TestCompliance_NameMatchIsCaseInsensitive(t *testing.T) {
	op := operative("o1", "Olive", "Oak")
	op.Certificates = []workforce.Certificate{cert("  cscs ", ref.AddDays(200))}

	res := evaluate(op, "CSCS")

	assert.Equal(t, workforce.ComplianceCompliant, res.Overall)
}

func TestCompliance_LatestExpiryWins(t *testing.T) {
	// GIVEN: an expired CSCS and a renewed one
	op := operative("o1", "Olive", "Oak")
	op.Certificates = []workforce.Certificate{
		cert("CSCS", ref.AddDays(-10)),
		cert("CSCS", ref.AddDays(300)),
	}

	res := evaluate(op, "CSCS")

	assert.Equal(t, workforce.ComplianceCompliant, res.Overall)
	assert.Empty(t, res.Expiring)
}

func TestCompliance_UndatedCertificateNeedsAttention(t *testing.T) {
	op := operative("o1", "Olive", "Oak")
	op.Certificates = []workforce.Certificate{cert("CSCS", generic.TimePoint{})}

	res := evaluate(op, "CSCS")

	assert.Equal(t, workforce.ComplianceAttention, res.Overall)
	assert.Equal(t, []string{"CSCS"}, res.Undated)
}

func TestCompliance_RiskStatusBlocksCompliant(t *testing.T) {
	for _, status := range []workforce.CertStatus{workforce.CertExpired, workforce.CertExpiringSoon, workforce.CertInvalid, "expired"} {
		t.Run(string(status), func(t *testing.T) {
			op := operative("o1", "Olive", "Oak")
			c := cert("CSCS", ref.AddDays(300))
			c.Status = status
			op.Certificates = []workforce.Certificate{c}

			res := evaluate(op, "CSCS")

			assert.Equal(t, workforce.ComplianceAttention, res.Overall)
			assert.Empty(t, res.Expiring)
		})
	}
}

func TestCompliance_CertTypeFilter(t *testing.T) {
	op := operative("o1", "Olive", "Oak")
	general := cert("Face Fit Test", ref.AddDays(300))
	op.Certificates = []workforce.Certificate{general}

	res := workforce.EvaluateCompliance(op, []string{"Face Fit Test"}, workforce.ComplianceOptions{
		Reference: ref,
		CertType:  workforce.CertAsbestos,
	})
	assert.Equal(t, []string{"Face Fit Test"}, res.Missing)

	op.Certificates[0].Type = "asbestos"
	res = workforce.EvaluateCompliance(op, []string{"Face Fit Test"}, workforce.ComplianceOptions{
		Reference: ref,
		CertType:  workforce.CertAsbestos,
	})
	assert.Equal(t, workforce.ComplianceCompliant, res.Overall)
}

func TestCompliance_CustomHorizon(t *testing.T) {
	op := operative("o1", "Olive", "Oak")
	op.Certificates = []workforce.Certificate{cert("CSCS", ref.AddDays(20))}

	res := workforce.EvaluateCompliance(op, []string{"CSCS"}, workforce.ComplianceOptions{Reference: ref, HorizonDays: 14})

	assert.Equal(t, workforce.ComplianceCompliant, res.Overall)
}

// =============================================================================
// FRESHNESS AND VOCABULARY
// =============================================================================

func TestCertificateFreshness(t *testing.T) {
	invalid := cert("CSCS", ref.AddDays(100))
	invalid.Status = workforce.CertInvalid

	tests := []struct {
		name string
		cert workforce.Certificate
		want workforce.Freshness
	}{
		{"far future", cert("CSCS", ref.AddDays(100)), workforce.FreshValid},
		{"inside horizon", cert("CSCS", ref.AddDays(42)), workforce.FreshExpiringSoon},
		{"today", cert("CSCS", ref), workforce.FreshExpired},
		{"no expiry", cert("CSCS", generic.TimePoint{}), workforce.FreshMissing},
		{"invalid status", invalid, workforce.FreshMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, workforce.CertificateFreshness(tt.cert, ref, 0))
		})
	}
}

func TestRequiredTypesFor_AsbestosProject(t *testing.T) {
	s := site("s1", "c1", "2024-03-04", "2024-03-15", 2)
	assert.Equal(t, workforce.DefaultVocabulary.General, workforce.RequiredTypesFor(s, workforce.DefaultVocabulary))

	s.ProjectType = "asbestos removal"
	got := workforce.RequiredTypesFor(s, workforce.DefaultVocabulary)
	assert.Len(t, got, len(workforce.DefaultVocabulary.General)+len(workforce.DefaultVocabulary.Asbestos))
	assert.Contains(t, got, "Face Fit Test")
}

// =============================================================================
// CERTIFICATE MAINTENANCE
// =============================================================================

func TestRemoveCertificate_UnknownIsNotFound(t *testing.T) {
	op := operative("o1", "Olive", "Oak")
	op.Certificates = []workforce.Certificate{cert("CSCS", ref)}

	got, err := workforce.RemoveCertificate(op, "nope")

	assert.True(t, generic.IsNotFound(err))
	assert.Len(t, got.Certificates, 1)

	got, err = workforce.RemoveCertificate(op, "c-CSCS")
	require.NoError(t, err)
	assert.Empty(t, got.Certificates)
}

func TestUpsertCertificates_ReplacesByID(t *testing.T) {
	op := operative("o1", "Olive", "Oak")
	op.Certificates = []workforce.Certificate{cert("CSCS", ref)}

	renewed := cert("CSCS", ref.AddDays(365))
	got := workforce.UpsertCertificates(op, []workforce.Certificate{renewed, {Name: "Medical"}})

	require.Len(t, got.Certificates, 2)
	assert.Equal(t, renewed.ExpiryDate, got.Certificates[0].ExpiryDate)
	assert.Equal(t, "Medical", got.Certificates[1].Name)
	assert.Len(t, op.Certificates, 1, "input is not mutated")
}

func TestBulkAddCertificates_ReportsMissing(t *testing.T) {
	ops := []workforce.Operative{operative("o1", "A", "A"), operative("o2", "B", "B")}

	changed, missing := workforce.BulkAddCertificates(ops, []workforce.OperativeID{"o1", "ghost", "o2"}, []workforce.Certificate{cert("CSCS", ref)})

	require.Len(t, changed, 2)
	assert.Len(t, changed[0].Certificates, 1)
	assert.Len(t, changed[1].Certificates, 1)
	assert.Equal(t, []workforce.OperativeID{"ghost"}, missing)
}
