package export

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/dsr"
)

// Section is one provider's contribution to a package, in provider
// invocation order.
type Section struct {
	Key   string
	Label string
	Data  map[string]interface{}
}

// ItemCount sums the section's entries, counting each element of a top-level
// list value and every other value as one.
func (s Section) ItemCount() int {
	count := 0
	for _, v := range s.Data {
		switch list := v.(type) {
		case []interface{}:
			count += len(list)
		case []map[string]interface{}:
			count += len(list)
		default:
			count++
		}
	}
	return count
}

// Archive describes a finished package on disk.
type Archive struct {
	Path      string
	Digest    string
	SizeBytes int64
}

// Packager writes export archives into a base directory. Each archive gets a
// unique working directory that is removed once the zip is sealed, so no
// intermediate file outlives the packaging attempt.
type Packager struct {
	baseDir string
	logger  zerolog.Logger
	clock   func() time.Time
}

// NewPackager creates a packager writing under baseDir. The directory is
// created if missing.
func NewPackager(baseDir string, logger zerolog.Logger) (*Packager, error) {
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}
	return &Packager{baseDir: baseDir, logger: logger, clock: time.Now}, nil
}

// SetClock overrides the time source. Tests only.
func (p *Packager) SetClock(clock func() time.Time) {
	p.clock = clock
}

// Build writes the full package for a request: structured data, per-section
// tabular files, a markup rendering, a plain-text summary, and a README, all
// sealed into one zip. The temporary working directory is removed whether or
// not packaging succeeds; a packaging error fails the whole export.
func (p *Packager) Build(req *dsr.Request, sections []Section) (*Archive, error) {
	now := p.clock().UTC()

	workDir, err := os.MkdirTemp(p.baseDir, "work-"+req.ID+"-*")
	if err != nil {
		return nil, fmt.Errorf("creating working directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	meta := p.metadata(req, now)

	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{"data.json", func(w io.Writer) error { return writeJSON(w, meta, sections) }},
		{"export.xml", func(w io.Writer) error { return writeXML(w, meta, sections) }},
		{"summary.txt", func(w io.Writer) error { return writeSummary(w, meta, sections) }},
		{"README.txt", func(w io.Writer) error { return writeReadme(w, now) }},
	}
	for _, s := range sections {
		section := s
		files = append(files, struct {
			name  string
			write func(io.Writer) error
		}{fmt.Sprintf("%s.csv", sanitizeName(section.Key)), func(w io.Writer) error {
			return writeSectionCSV(w, section)
		}})
	}

	for _, f := range files {
		if err := writeFile(filepath.Join(workDir, f.name), f.write); err != nil {
			return nil, fmt.Errorf("writing %s: %w", f.name, err)
		}
	}

	archivePath := filepath.Join(p.baseDir, fmt.Sprintf("dsr-export-%s-%s.zip", req.ID, now.Format("20060102T150405Z")))
	if err := zipDir(archivePath, workDir); err != nil {
		os.Remove(archivePath)
		return nil, fmt.Errorf("sealing archive: %w", err)
	}

	digest, size, err := FileDigest(archivePath)
	if err != nil {
		os.Remove(archivePath)
		return nil, fmt.Errorf("hashing archive: %w", err)
	}

	p.logger.Info().
		Str("request_id", req.ID).
		Str("path", archivePath).
		Int64("size_bytes", size).
		Int("sections", len(sections)).
		Msg("export package sealed")

	return &Archive{Path: archivePath, Digest: digest, SizeBytes: size}, nil
}

// FileDigest returns the hex SHA-256 digest and byte size of a file.
func FileDigest(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), size, nil
}

func (p *Packager) metadata(req *dsr.Request, now time.Time) map[string]interface{} {
	meta := map[string]interface{}{
		"generated_at": now.Format(time.RFC3339),
		"request_id":   req.ID,
		"request_type": string(req.Type),
		"regulation":   string(req.Regulation),
		"sla_deadline": req.SLADeadline.Format(time.RFC3339),
	}
	if req.ProcessedBy != nil {
		meta["processed_by"] = *req.ProcessedBy
	}
	return meta
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeJSON(w io.Writer, meta map[string]interface{}, sections []Section) error {
	bundle := map[string]interface{}{}
	for _, s := range sections {
		bundle[s.Key] = s.Data
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]interface{}{
		"metadata": meta,
		"sections": bundle,
	})
}

// writeSectionCSV renders one section as a two-column field/value table.
// Non-scalar values are JSON-encoded in place rather than recursed into.
func writeSectionCSV(w io.Writer, s Section) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"field", "value"}); err != nil {
		return err
	}

	keys := make([]string, 0, len(s.Data))
	for k := range s.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := cw.Write([]string{k, scalarString(s.Data[k])}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func scalarString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool, int, int32, int64, float32, float64:
		return fmt.Sprintf("%v", t)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

func writeXML(w io.Writer, meta map[string]interface{}, sections []Section) error {
	if _, err := io.WriteString(w, xml.Header+"<export>\n"); err != nil {
		return err
	}
	if err := xmlValue(w, "metadata", meta, 1); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "  <sections>\n"); err != nil {
		return err
	}
	for _, s := range sections {
		if err := xmlValue(w, s.Key, s.Data, 2); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "  </sections>\n</export>\n")
	return err
}

func xmlValue(w io.Writer, name string, v interface{}, depth int) error {
	indent := strings.Repeat("  ", depth)
	tag := sanitizeName(name)

	switch t := v.(type) {
	case map[string]interface{}:
		if _, err := fmt.Fprintf(w, "%s<%s>\n", indent, tag); err != nil {
			return err
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := xmlValue(w, k, t[k], depth+1); err != nil {
				return err
			}
		}
		_, err := fmt.Fprintf(w, "%s</%s>\n", indent, tag)
		return err
	case []interface{}:
		if _, err := fmt.Fprintf(w, "%s<%s>\n", indent, tag); err != nil {
			return err
		}
		for _, item := range t {
			if err := xmlValue(w, "item", item, depth+1); err != nil {
				return err
			}
		}
		_, err := fmt.Fprintf(w, "%s</%s>\n", indent, tag)
		return err
	case []map[string]interface{}:
		items := make([]interface{}, len(t))
		for i, m := range t {
			items[i] = m
		}
		return xmlValue(w, name, items, depth)
	default:
		var buf strings.Builder
		if err := xml.EscapeText(&buf, []byte(scalarString(v))); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "%s<%s>%s</%s>\n", indent, tag, buf.String(), tag)
		return err
	}
}

// sanitizeName restricts a key to a safe identifier charset for markup
// element names and file names.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if out == "" || !(out[0] == '_' || (out[0] >= 'a' && out[0] <= 'z') || (out[0] >= 'A' && out[0] <= 'Z')) {
		out = "f_" + out
	}
	return out
}

func writeSummary(w io.Writer, meta map[string]interface{}, sections []Section) error {
	if _, err := fmt.Fprintf(w, "Data export for request %v\n", meta["request_id"]); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Generated at: %v\nRegulation: %v\n\nIncluded sections:\n", meta["generated_at"], meta["regulation"]); err != nil {
		return err
	}
	for _, s := range sections {
		if _, err := fmt.Fprintf(w, "  - %s: %d item(s)\n", s.Label, s.ItemCount()); err != nil {
			return err
		}
	}
	return nil
}

func writeReadme(w io.Writer, now time.Time) error {
	const text = `This archive contains a copy of the personal data we hold about you.

Contents:
  data.json    - complete export in structured form
  export.xml   - the same data rendered as markup
  *.csv        - one flat table per data section
  summary.txt  - overview of the included sections
  README.txt   - this file

Security notice:
  This archive contains personal data. Store it securely and delete it once
  you no longer need it. The download link that produced this file was
  single-use and has already been invalidated.

Retention:
  Undownloaded archives are deleted from our systems 7 days after generation.

Generated: %s
`
	_, err := fmt.Fprintf(w, text, now.Format(time.RFC3339))
	return err
}

func zipDir(archivePath, dir string) error {
	out, err := os.OpenFile(archivePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(out)

	entries, err := os.ReadDir(dir)
	if err != nil {
		zw.Close()
		out.Close()
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := addZipEntry(zw, filepath.Join(dir, entry.Name()), entry.Name()); err != nil {
			zw.Close()
			out.Close()
			return err
		}
	}

	if err := zw.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func addZipEntry(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}
