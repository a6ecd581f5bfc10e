package ingest

import (
	"mime"
	"strings"

	"github.com/clinimetric-scale-server/internal/domain"
)

var submissionFields = map[string][]string{
	"scale":      {"scale", "definition"},
	"subjectRef": {"subjectRef", "subject_ref", "patientRef", "patient_ref"},
	"responses":  {"responses", "answers"},
}

// Submission is one scoring request. Scale is nil when the request targets a
// stored scale.
type Submission struct {
	Scale      *domain.Scale
	SubjectRef string
	Responses  []domain.Response
}

// DecodeSubmission parses a scoring request. A bare response list is accepted
// as a submission without a subject or inline scale.
func DecodeSubmission(data []byte, format Format) (*Submission, error) {
	doc, err := decodeDocument(data, format)
	if err != nil {
		return nil, err
	}
	return MapSubmission(doc)
}

// MapSubmission converts a generic decoded object into a Submission.
func MapSubmission(doc any) (*Submission, error) {
	if _, isList := doc.([]any); isList {
		responses, err := MapResponses(doc)
		if err != nil {
			return nil, err
		}
		return &Submission{Responses: responses}, nil
	}

	var errs error
	rec, ok := newRecord("", doc, &errs)
	if !ok {
		return nil, errs
	}

	sub := &Submission{SubjectRef: rec.str(submissionFields, "subjectRef")}
	if errs != nil {
		return nil, errs
	}

	if raw, found := rec.raw(submissionFields, "scale"); found {
		scale, err := mapScaleAt("scale", raw)
		if err != nil {
			return nil, err
		}
		sub.Scale = scale
	}

	raw, found := rec.raw(submissionFields, "responses")
	if !found {
		return nil, domain.NewValidationError("responses", "responses are required", nil)
	}
	responses, err := MapResponses(raw)
	if err != nil {
		return nil, err
	}
	sub.Responses = responses
	return sub, nil
}

// FormatFromContentType picks a format from an HTTP Content-Type header,
// defaulting to JSON.
func FormatFromContentType(contentType string) Format {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}
	if strings.Contains(strings.ToLower(mediaType), "yaml") {
		return FormatYAML
	}
	return FormatJSON
}
