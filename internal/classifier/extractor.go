package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"onboarding-engine/internal/model"
)

// ExtractionBackend is the external vision service that reads a document
// image and returns structured fields. The Gemini-backed Extractor is the
// production implementation; tests substitute their own.
type ExtractionBackend interface {
	Extract(ctx context.Context, fileName, mimeType string, data []byte) (*Extraction, error)
}

// Extractor wraps the Gemini client and model used for document field
// extraction.
type Extractor struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// extractionWire is the JSON shape requested from the model. Dates arrive as
// strings and are parsed during conversion; unknown keys are rejected.
type extractionWire struct {
	DetectedType           string   `json:"detected_type"`
	Confidence             float64  `json:"confidence"`
	ExtractedName          string   `json:"extracted_name"`
	IsCertified            bool     `json:"is_certified"`
	CertifierQualification string   `json:"certifier_qualification"`
	CertificationWording   string   `json:"certification_wording"`
	CertificationDate      string   `json:"certification_date"`
	ExpiryDate             string   `json:"expiry_date"`
	QualityFlags           []string `json:"quality_flags"`
}

// NewExtractor initializes the Gemini client. An empty API key returns a nil
// Extractor and no error so callers can decide how to handle missing
// configuration; the adapter then runs heuristic-only.
func NewExtractor(ctx context.Context, apiKey string) (*Extractor, error) {
	if apiKey == "" {
		return nil, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	m := client.GenerativeModel("gemini-2.5-flash-preview-09-2025")
	return &Extractor{client: client, model: m}, nil
}

// Close releases underlying resources.
func (e *Extractor) Close() {
	if e == nil || e.client == nil {
		return
	}
	if err := e.client.Close(); err != nil {
		log.Printf("warning: failed to close genai client: %v", err)
	}
}

const extractionPrompt = `You are a compliance document examiner for a fund administrator.
Examine the attached onboarding document and extract its classification and identity fields.

RULES:
1. detected_type MUST be one of the known compliance document type codes (e.g. "certificate_of_incorporation", "certified_identity_document", "personal_proof_of_address", "structure_chart").
2. extracted_name is the full legal name of the person or entity the document concerns, or "" when none is visible.
3. Dates MUST be formatted YYYY-MM-DD, or "" when absent.
4. quality_flags lists legibility or completeness concerns, or [].
5. Respond ONLY with a single minified JSON object of the form:
{"detected_type":"","confidence":0.0,"extracted_name":"","is_certified":false,"certifier_qualification":"","certification_wording":"","certification_date":"","expiry_date":"","quality_flags":[]}`

// Extract sends the document bytes to the model and parses the structured
// extraction.
func (e *Extractor) Extract(ctx context.Context, fileName, mimeType string, data []byte) (*Extraction, error) {
	if e == nil || e.model == nil {
		return nil, fmt.Errorf("extraction backend is not initialized")
	}

	resp, err := e.model.GenerateContent(ctx,
		genai.Text(extractionPrompt),
		genai.Text(fmt.Sprintf("File name: %q", fileName)),
		genai.Blob{MIMEType: mimeType, Data: data},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to generate extraction: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no response from extraction backend")
	}
	part := resp.Candidates[0].Content.Parts[0]
	textPart, ok := part.(genai.Text)
	if !ok {
		return nil, fmt.Errorf("unexpected response type from extraction backend: %T", part)
	}

	return parseExtraction(string(textPart))
}

func parseExtraction(raw string) (*Extraction, error) {
	decoder := json.NewDecoder(strings.NewReader(strings.TrimSpace(raw)))
	decoder.DisallowUnknownFields()

	var wire extractionWire
	if err := decoder.Decode(&wire); err != nil {
		return nil, fmt.Errorf("failed to parse extraction JSON: %w (response was: %s)", err, raw)
	}

	ex := &Extraction{
		DetectedType:  wire.DetectedType,
		Confidence:    wire.Confidence,
		ExtractedName: wire.ExtractedName,
		QualityFlags:  wire.QualityFlags,
		Certification: model.CertificationMetadata{
			IsCertified:            wire.IsCertified,
			CertifierQualification: wire.CertifierQualification,
			CertificationWording:   wire.CertificationWording,
		},
	}
	if date, err := parseWireDate(wire.CertificationDate); err != nil {
		return nil, err
	} else if date != nil {
		ex.Certification.CertificationDate = date
	}
	if date, err := parseWireDate(wire.ExpiryDate); err != nil {
		return nil, err
	} else if date != nil {
		ex.Certification.ExpiryDate = date
	}
	return ex, nil
}

func parseWireDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q in extraction: %w", value, err)
	}
	return &parsed, nil
}

// ============================================================================
// ADAPTER
// ============================================================================

// Adapter drives the extraction backend with a bounded timeout and a small
// number of retries with backoff. On exhaustion, or when no backend is
// configured, it falls back to the deterministic heuristic so classification
// never blocks the workflow.
type Adapter struct {
	backend ExtractionBackend
	timeout time.Duration
	retries int
	backoff time.Duration
	now     func() time.Time
}

// NewAdapter builds an adapter around a backend. Passing a nil backend is
// valid and selects the heuristic-only path.
func NewAdapter(backend ExtractionBackend, timeout time.Duration, retries int) *Adapter {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	return &Adapter{
		backend: backend,
		timeout: timeout,
		retries: retries,
		backoff: 500 * time.Millisecond,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Classify produces the analysis for one uploaded document. Classification
// of independent files is safe to run concurrently; the adapter holds no
// mutable state across calls.
func (a *Adapter) Classify(ctx context.Context, docID uuid.UUID, fileName, mimeType string, data []byte) model.DocumentAnalysis {
	if a.backend == nil || isNilExtractor(a.backend) {
		return Heuristic(docID, fileName, a.now())
	}

	var lastErr error
	for attempt := 0; attempt <= a.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				log.Printf("extraction cancelled for %s, falling back to heuristic classification: %v", fileName, ctx.Err())
				return Heuristic(docID, fileName, a.now())
			case <-time.After(a.backoff << (attempt - 1)):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, a.timeout)
		ex, err := a.backend.Extract(attemptCtx, fileName, mimeType, data)
		cancel()
		if err == nil {
			return Normalize(docID, fileName, *ex, a.now())
		}
		lastErr = err
	}

	log.Printf("extraction backend exhausted for %s, falling back to heuristic classification: %v", fileName, lastErr)
	return Heuristic(docID, fileName, a.now())
}

// isNilExtractor catches a typed-nil *Extractor stored in the interface,
// which NewExtractor returns when no API key is configured.
func isNilExtractor(backend ExtractionBackend) bool {
	e, ok := backend.(*Extractor)
	return ok && e == nil
}
