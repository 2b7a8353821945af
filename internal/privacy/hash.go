package privacy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"epigrid/internal/types"
)

// HashBasis returns the hex SHA-256 digest over the canonical JSON encoding
// of the unperturbed aggregate fields. Map keys are sorted during encoding,
// so identical inputs always produce identical digests. The hash is computed
// strictly before noise is applied: it commits to the true values while the
// wire carries the noised ones, and it carries nothing that identifies a node.
func HashBasis(basis types.AggregateBasis) (string, error) {
	payload := map[string]any{
		"patient_count":  basis.PatientCount,
		"avg_risk_score": basis.AvgRiskScore,
		"location": map[string]any{
			"lat": basis.Location.Lat,
			"lon": basis.Location.Lon,
		},
		"timestamp": basis.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// BasisMatches reports whether the given digest commits to the basis.
func BasisMatches(basis types.AggregateBasis, digest string) bool {
	computed, err := HashBasis(basis)
	if err != nil {
		return false
	}
	return computed == digest
}
