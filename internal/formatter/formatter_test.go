package formatter

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/compuse/internal/models"
	th "github.com/desertthunder/compuse/internal/testing"
)

func testExport() *DraftExport {
	draft := models.NewDraft(3, "Canção do Mar", "G", "G D/F# Em C\nletra G\nG D Em C")
	draft.SetID("draft123")

	at := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)
	return &DraftExport{
		Draft: draft,
		Clips: []models.AudioClip{
			{ID: "clip1", Name: "Áudio 1", SourceURI: "file:///data/clip1.wav", MimeType: "audio/wav", Size: 2048, CreatedAt: at},
			{ID: "clip2", Name: "Refrão, take 2", SourceURI: "file:///data/clip2.mp3", MimeType: "audio/mpeg", Size: 100, CreatedAt: at},
		},
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(testExport())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "ID,Name,MimeType,Size,CreatedAt,SourceURI") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "clip1,Áudio 1,audio/wav,2048,2025-03-01T12:30:00Z,file:///data/clip1.wav") {
			t.Errorf("CSV missing clip1 row, got: %s", output)
		}
		if !strings.Contains(output, `"Refrão, take 2"`) {
			t.Errorf("CSV should quote names with commas, got: %s", output)
		}
	})

	t.Run("ExportToCSV empty", func(t *testing.T) {
		export := testExport()
		export.Clips = nil

		data, err := ExportToCSV(export)
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}
		if lines := strings.Split(strings.TrimSpace(string(data)), "\n"); len(lines) != 1 {
			t.Errorf("expected only the header line, got %d lines", len(lines))
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown(testExport(), map[string]string{"clip1": "clips/01-áudio-1.wav"})
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"# Canção do Mar",
			"**Key**: G",
			"**Chords**: G D F# Em C",
			"**Clips**: 2",
			"```\nG D/F# Em C\nletra G\nG D Em C\n```",
			"1. [Áudio 1](clips/01-áudio-1.wav) (2.0 KiB, 2025-03-01 12:30)",
			"2. Refrão, take 2 (100 B, 2025-03-01 12:30)",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("ExportToMarkdown without content", func(t *testing.T) {
		export := testExport()
		export.Draft.SetContent("")
		export.Clips = nil

		data, _ := ExportToMarkdown(export, nil)
		output := string(data)
		if strings.Contains(output, "## Sheet") || strings.Contains(output, "## Clips") {
			t.Errorf("empty sections should be omitted, got:\n%s", output)
		}
		if strings.Contains(output, "**Chords**") {
			t.Errorf("chords line should be omitted, got:\n%s", output)
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(testExport())
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{"Draft: Canção do Mar", "Key: G", "Clips: 2", "letra G", "1. Áudio 1", "2. Refrão, take 2"} {
			if !strings.Contains(output, want) {
				t.Errorf("text missing %q", want)
			}
		}
	})

	t.Run("ToMetadataJSON", func(t *testing.T) {
		data, err := ToMetadataJSON(testExport())
		if err != nil {
			t.Fatalf("ToMetadataJSON failed: %v", err)
		}

		var meta DraftMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if meta.ID != "draft123" || meta.Sequence != 3 || meta.Key != "G" {
			t.Errorf("unexpected metadata: %+v", meta)
		}
		if len(meta.Clips) != 2 || meta.Clips[1].ID != "clip2" {
			t.Errorf("expected both clips, got %d", len(meta.Clips))
		}
		if len(meta.Chords) != 5 {
			t.Errorf("expected 5 distinct chords, got %v", meta.Chords)
		}
	})
}

func TestChords(t *testing.T) {
	t.Run("ChordNames", func(t *testing.T) {
		got := ChordNames("Am F C G\nAm F C G7")
		want := []string{"Am", "F", "C", "G", "G7"}
		if strings.Join(got, " ") != strings.Join(want, " ") {
			t.Errorf("ChordNames() = %v, want %v", got, want)
		}
	})

	t.Run("HighlightChords", func(t *testing.T) {
		got := HighlightChords("Am F", func(s string) string { return "[" + s + "]" })
		if got != "[Am] [F]" {
			t.Errorf("HighlightChords() = %q", got)
		}
	})

	t.Run("ClipFilename", func(t *testing.T) {
		tests := []struct {
			clip models.AudioClip
			want string
		}{
			{models.AudioClip{ID: "a", Name: "Áudio 1", MimeType: "audio/wav"}, "01-áudio-1.wav"},
			{models.AudioClip{ID: "b", Name: "  Refrão, take 2!  ", MimeType: "audio/mpeg"}, "01-refrão-take-2.mp3"},
			{models.AudioClip{ID: "c", Name: "???", MimeType: "audio/flac"}, "01-c.flac"},
		}
		for _, tt := range tests {
			if got := ClipFilename(0, tt.clip); got != tt.want {
				t.Errorf("ClipFilename(%q) = %q, want %q", tt.clip.Name, got, tt.want)
			}
		}
	})
}

func TestWriters(t *testing.T) {
	t.Run("WriteCSVExport", func(t *testing.T) {
		t.Run("with default path", func(t *testing.T) {
			tempDir := t.TempDir()
			originalDir := th.MustGetwd(t)
			th.MustChdir(t, tempDir)
			defer th.MustChdir(t, originalDir)

			result, err := WriteCSVExport(testExport(), "")
			if err != nil {
				t.Fatalf("WriteCSVExport failed: %v", err)
			}

			if result.ClipsFile != "draft123_clips.csv" {
				t.Errorf("Expected clips file 'draft123_clips.csv', got '%s'", result.ClipsFile)
			}
			if result.MetadataFile != "draft123_metadata.json" {
				t.Errorf("Expected metadata file 'draft123_metadata.json', got '%s'", result.MetadataFile)
			}

			th.AssertFileExists(t, result.ClipsFile)
			th.AssertFileExists(t, result.MetadataFile)

			metadataContent := th.MustReadFile(t, result.MetadataFile)
			if !strings.Contains(metadataContent, "draft123") || !strings.Contains(metadataContent, "Canção do Mar") {
				t.Errorf("Metadata JSON missing expected fields")
			}
		})

		t.Run("with custom path", func(t *testing.T) {
			base := filepath.Join(t.TempDir(), "custom_export")

			result, err := WriteCSVExport(testExport(), base)
			if err != nil {
				t.Fatalf("WriteCSVExport failed: %v", err)
			}

			th.AssertFileExists(t, base+"_clips.csv")
			th.AssertFileExists(t, result.MetadataFile)
		})
	})

	t.Run("WriteMarkdownExport", func(t *testing.T) {
		t.Run("with default directory", func(t *testing.T) {
			tempDir := t.TempDir()
			originalDir := th.MustGetwd(t)
			th.MustChdir(t, tempDir)
			defer th.MustChdir(t, originalDir)

			result, err := WriteMarkdownExport(testExport(), "", nil)
			if err != nil {
				t.Fatalf("WriteMarkdownExport failed: %v", err)
			}

			if result.Directory != "draft123" {
				t.Errorf("Expected directory 'draft123', got '%s'", result.Directory)
			}
			th.AssertDirExists(t, result.Directory)
			th.AssertFileExists(t, filepath.Join(result.Directory, "README.md"))

			if len(result.AudioFiles) != 0 {
				t.Errorf("expected no audio files, got %v", result.AudioFiles)
			}
		})

		t.Run("with audio", func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "out")

			result, err := WriteMarkdownExport(testExport(), dir, map[string][]byte{"clip2": []byte("mp3")})
			if err != nil {
				t.Fatalf("WriteMarkdownExport failed: %v", err)
			}

			audioPath := filepath.Join(dir, "clips", "02-refrão-take-2.mp3")
			th.AssertFileExists(t, audioPath)
			if got := th.MustReadFile(t, audioPath); got != "mp3" {
				t.Errorf("audio content = %q", got)
			}
			if len(result.Files) != 2 || len(result.AudioFiles) != 1 {
				t.Errorf("expected 2 files and 1 audio file, got %d and %d", len(result.Files), len(result.AudioFiles))
			}

			content := th.MustReadFile(t, filepath.Join(dir, "README.md"))
			if !strings.Contains(content, "[Refrão, take 2](clips/02-refrão-take-2.mp3)") {
				t.Errorf("README should link the exported clip, got:\n%s", content)
			}
			if strings.Contains(content, "[Áudio 1]") {
				t.Error("clip without audio should not be linked")
			}
		})
	})

	t.Run("WriteTextExport", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "draft.txt")

		got, err := WriteTextExport(testExport(), path)
		if err != nil {
			t.Fatalf("WriteTextExport failed: %v", err)
		}
		if got != path {
			t.Errorf("expected %s, got %s", path, got)
		}
		if !strings.Contains(th.MustReadFile(t, path), "Draft: Canção do Mar") {
			t.Error("text export missing title")
		}
	})
}
