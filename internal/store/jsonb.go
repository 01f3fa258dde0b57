package store

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"onboarding-engine/internal/model"
)

// JSONBFactors stores a risk assessment's ordered factor list as JSONB.
type JSONBFactors []model.RiskFactor

// Value implements the driver.Valuer interface for database storage.
func (j JSONBFactors) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return json.Marshal([]model.RiskFactor(j))
}

// Scan implements the sql.Scanner interface for database retrieval.
func (j *JSONBFactors) Scan(value interface{}) error {
	return scanJSONB(value, (*[]model.RiskFactor)(j))
}

// JSONBChecks stores a document's policy check results as JSONB.
type JSONBChecks []model.PolicyCheck

// Value implements the driver.Valuer interface for database storage.
func (j JSONBChecks) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return json.Marshal([]model.PolicyCheck(j))
}

// Scan implements the sql.Scanner interface for database retrieval.
func (j *JSONBChecks) Scan(value interface{}) error {
	return scanJSONB(value, (*[]model.PolicyCheck)(j))
}

// JSONBCertification stores a document's certification block as JSONB.
type JSONBCertification struct {
	model.CertificationMetadata
}

// Value implements the driver.Valuer interface for database storage.
func (j JSONBCertification) Value() (driver.Value, error) {
	return json.Marshal(j.CertificationMetadata)
}

// Scan implements the sql.Scanner interface for database retrieval.
func (j *JSONBCertification) Scan(value interface{}) error {
	if value == nil {
		j.CertificationMetadata = model.CertificationMetadata{}
		return nil
	}
	return scanJSONB(value, &j.CertificationMetadata)
}

func scanJSONB(value interface{}, dest interface{}) error {
	if value == nil {
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("cannot scan non-string/[]byte value as JSONB")
	}
	return json.Unmarshal(raw, dest)
}
