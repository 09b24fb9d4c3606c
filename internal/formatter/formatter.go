// package formatter provides functions to export drafts and their clips to various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/compuse/internal/chords"
	"github.com/desertthunder/compuse/internal/models"
	"github.com/desertthunder/compuse/internal/shared"
	"github.com/desertthunder/compuse/internal/softcap"
)

// DraftExport is a draft together with the clips attached to it.
type DraftExport struct {
	Draft *models.Draft
	Clips []models.AudioClip
}

// DraftMetadata is the JSON shape of an exported draft
type DraftMetadata struct {
	ID        string             `json:"id"`
	Sequence  int                `json:"sequence"`
	Title     string             `json:"title"`
	Key       string             `json:"key"`
	Chords    []string           `json:"chords"`
	Content   string             `json:"content"`
	Clips     []models.AudioClip `json:"clips"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Metadata flattens an export into its JSON shape.
func Metadata(export *DraftExport) DraftMetadata {
	d := export.Draft
	clips := export.Clips
	if clips == nil {
		clips = []models.AudioClip{}
	}
	return DraftMetadata{
		ID:        d.ID(),
		Sequence:  d.Sequence(),
		Title:     d.Title(),
		Key:       d.Key(),
		Chords:    ChordNames(d.Content()),
		Content:   d.Content(),
		Clips:     clips,
		CreatedAt: d.CreatedAt(),
		UpdatedAt: d.UpdatedAt(),
	}
}

// ToMetadataJSON generates an indented JSON document for the export
func ToMetadataJSON(export *DraftExport) ([]byte, error) {
	return shared.MarshalJSON(Metadata(export), true)
}

// ChordNames lists the distinct chords of text in order of first appearance
func ChordNames(text string) []string {
	seen := map[string]bool{}
	names := []string{}
	for _, seg := range chords.Chords(text) {
		if !seen[seg.Text] {
			seen[seg.Text] = true
			names = append(names, seg.Text)
		}
	}
	return names
}

// HighlightChords passes every chord token of text through style, leaving the rest untouched.
func HighlightChords(text string, style func(string) string) string {
	var b strings.Builder
	for _, seg := range chords.Tokenize(text) {
		if seg.Kind == chords.Chord {
			b.WriteString(style(seg.Text))
		} else {
			b.WriteString(seg.Text)
		}
	}
	return b.String()
}

// ClipFilename names the exported audio file of the i-th clip (zero based).
func ClipFilename(i int, clip models.AudioClip) string {
	name := slugify(clip.Name)
	if name == "" {
		name = clip.ID
	}
	return fmt.Sprintf("%02d-%s%s", i+1, name, softcap.Extension(clip.MimeType))
}

func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// ExportToCSV converts the clips of an export to CSV format with columns: ID, Name, MimeType, Size, CreatedAt, SourceURI
func ExportToCSV(export *DraftExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Name", "MimeType", "Size", "CreatedAt", "SourceURI"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, clip := range export.Clips {
		record := []string{
			clip.ID,
			clip.Name,
			clip.MimeType,
			strconv.Itoa(clip.Size),
			clip.CreatedAt.UTC().Format(time.RFC3339),
			clip.SourceURI,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a draft to Markdown.
//
// audioFiles maps clip IDs to paths relative to the document; clips without an entry are listed unlinked.
func ExportToMarkdown(export *DraftExport, audioFiles map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	d := export.Draft

	buf.WriteString(fmt.Sprintf("# %s\n\n", d.Title()))
	buf.WriteString(fmt.Sprintf("**Key**: %s\n", d.Key()))
	if names := ChordNames(d.Content()); len(names) > 0 {
		buf.WriteString(fmt.Sprintf("**Chords**: %s\n", strings.Join(names, " ")))
	}
	buf.WriteString(fmt.Sprintf("**Clips**: %d\n\n", len(export.Clips)))

	if d.Content() != "" {
		buf.WriteString("## Sheet\n\n```\n")
		buf.WriteString(strings.TrimRight(d.Content(), "\n"))
		buf.WriteString("\n```\n\n")
	}

	if len(export.Clips) > 0 {
		buf.WriteString("## Clips\n\n")
	}
	for i, clip := range export.Clips {
		name := clip.Name
		if path, ok := audioFiles[clip.ID]; ok {
			name = fmt.Sprintf("[%s](%s)", clip.Name, filepath.ToSlash(path))
		}
		buf.WriteString(fmt.Sprintf("%d. %s (%s, %s)\n", i+1, name, shared.FormatBytes(clip.Size), clip.CreatedAt.Format("2006-01-02 15:04")))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a draft to plain text format
func ExportToText(export *DraftExport) ([]byte, error) {
	var buf bytes.Buffer
	d := export.Draft

	buf.WriteString(fmt.Sprintf("Draft: %s\n", d.Title()))
	buf.WriteString(fmt.Sprintf("Key: %s\n", d.Key()))
	buf.WriteString(fmt.Sprintf("Clips: %d\n\n", len(export.Clips)))

	if d.Content() != "" {
		buf.WriteString(strings.TrimRight(d.Content(), "\n"))
		buf.WriteString("\n\n")
	}

	for i, clip := range export.Clips {
		buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, clip.Name))
	}

	return buf.Bytes(), nil
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	ClipsFile    string
	MetadataFile string
}

// WriteCSVExport exports a draft's clips to CSV format with accompanying metadata JSON file.
//
// Defaults to the draft ID as the base filename & creates {base}_clips.csv and {base}_metadata.json
func WriteCSVExport(export *DraftExport, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = export.Draft.ID()
	}

	csvData, err := ExportToCSV(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	clipsFile := baseFilepath + "_clips.csv"
	if err := os.WriteFile(clipsFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		ClipsFile:    clipsFile,
		MetadataFile: metadataFile,
	}, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	AudioFiles []string
}

// WriteMarkdownExport exports a draft to Markdown format in a dedicated directory.
//
// Directory name defaults to the draft ID.
// audio maps clip IDs to their bytes; each one is written to {dir}/clips/ and linked from {dir}/README.md.
// A clip that fails to write is logged and listed without a link.
func WriteMarkdownExport(export *DraftExport, outputDir string, audio map[string][]byte) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = export.Draft.ID()
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{
		Directory:  outputDir,
		Files:      []string{},
		AudioFiles: []string{},
	}

	links := map[string]string{}
	if len(audio) > 0 {
		clipsDir := filepath.Join(outputDir, "clips")
		if err := os.MkdirAll(clipsDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create clips directory: %w", err)
		}

		for i, clip := range export.Clips {
			data, ok := audio[clip.ID]
			if !ok {
				continue
			}
			name := ClipFilename(i, clip)
			path := filepath.Join(clipsDir, name)
			if err := os.WriteFile(path, data, 0644); err != nil {
				log.Warn("failed to save clip audio", "clip", clip.ID, "error", err)
				continue
			}
			links[clip.ID] = filepath.Join("clips", name)
			result.AudioFiles = append(result.AudioFiles, path)
			result.Files = append(result.Files, path)
		}
	}

	mdData, err := ExportToMarkdown(export, links)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)

	return result, nil
}

// WriteTextExport exports a draft to plain text format.
//
// Defaults to {draft.ID}.txt as the filename.
func WriteTextExport(export *DraftExport, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s.txt", export.Draft.ID())
	}

	textData, err := ExportToText(export)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return path, nil
}
