package output

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"

	"github.com/gowebpki/jcs"
	"github.com/pkg/errors"

	"github.com/maxvaer/secprobe/internal/probe"
)

type jsonReport struct {
	RunID   string          `json:"run_id"`
	Target  string          `json:"target"`
	Results json.RawMessage `json:"results"`
	Digest  string          `json:"digest"`
	Summary probe.Summary   `json:"summary"`
}

// JSONWriter buffers results and writes a single report object on
// WriteFooter. The digest covers the RFC 8785 canonical form of the
// results, so two runs with the same outcomes share a digest.
type JSONWriter struct {
	w       io.Writer
	meta    probe.Meta
	results []probe.Result
}

// NewJSONWriter creates a JSON report writer.
func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{w: w}
}

func (j *JSONWriter) WriteHeader(meta probe.Meta) error {
	j.meta = meta
	return nil
}

func (j *JSONWriter) WriteSection(string) error { return nil }

func (j *JSONWriter) WriteResult(r probe.Result) error {
	j.results = append(j.results, r)
	return nil
}

func (j *JSONWriter) WriteFooter(s probe.Summary) error {
	canonical, digest, err := Digest(j.results)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(j.w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonReport{
		RunID:   j.meta.RunID,
		Target:  j.meta.Target,
		Results: canonical,
		Digest:  digest,
		Summary: s,
	})
}

func (j *JSONWriter) Close() error { return nil }

// Digest returns the canonical JSON encoding of results and its sha256
// hex digest.
func Digest(results []probe.Result) (json.RawMessage, string, error) {
	if results == nil {
		results = []probe.Result{}
	}
	raw, err := json.Marshal(results)
	if err != nil {
		return nil, "", errors.Wrap(err, "encoding results")
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, "", errors.Wrap(err, "canonicalizing results")
	}
	sum := sha256.Sum256(canonical)
	return canonical, hex.EncodeToString(sum[:]), nil
}
