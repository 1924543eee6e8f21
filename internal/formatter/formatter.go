// package formatter renders analysis results to various formats (plain text, Markdown, CSV, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kurgg/spm/internal/models"
	"github.com/kurgg/spm/internal/shared"
)

// ProfileToText renders an average profile as plain text.
func ProfileToText(playlist models.Playlist, profile *models.AverageProfile) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Playlist: %s\n", playlist.Name))
	buf.WriteString(fmt.Sprintf("Tracks analyzed: %d\n\n", profile.TrackCount))
	buf.WriteString(fmt.Sprintf("Average genre:        %s\n", profile.Genre))
	if len(profile.Subgenres) > 0 {
		buf.WriteString(fmt.Sprintf("Related subgenres:    %s\n", strings.Join(profile.Subgenres, ", ")))
	}
	buf.WriteString(fmt.Sprintf("Average danceability: %.2f\n", profile.Danceability))
	buf.WriteString(fmt.Sprintf("Average energy:       %.2f\n", profile.Energy))

	return buf.Bytes()
}

// ProfileToMarkdown renders an average profile as a Markdown document.
func ProfileToMarkdown(playlist models.Playlist, profile *models.AverageProfile) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", playlist.Name))
	if playlist.Description != "" {
		buf.WriteString(fmt.Sprintf("**Description**: %s\n\n", playlist.Description))
	}
	buf.WriteString(fmt.Sprintf("**Tracks analyzed**: %d\n\n", profile.TrackCount))

	buf.WriteString("| Attribute | Value |\n")
	buf.WriteString("| --- | --- |\n")
	buf.WriteString(fmt.Sprintf("| Genre | %s |\n", profile.Genre))
	buf.WriteString(fmt.Sprintf("| Danceability | %.2f |\n", profile.Danceability))
	buf.WriteString(fmt.Sprintf("| Energy | %.2f |\n", profile.Energy))

	if len(profile.Subgenres) > 0 {
		buf.WriteString("\n## Subgenres\n\n")
		for _, genre := range profile.Subgenres {
			buf.WriteString(fmt.Sprintf("- %s\n", genre))
		}
	}

	return buf.Bytes()
}

// ProfileToJSON renders an average profile as JSON.
func ProfileToJSON(profile *models.AverageProfile, pretty bool) ([]byte, error) {
	return shared.MarshalJSON(profile, pretty)
}

// SnapshotToCSV converts a snapshot's tracks to CSV with columns: ID, Title, Artist, Genres, Danceability, Energy
func SnapshotToCSV(snapshot *models.PlaylistSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Artist", "Genres", "Danceability", "Energy"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range snapshot.Tracks {
		record := []string{
			track.ID,
			track.Title,
			track.Artist,
			strings.Join(track.Genres, "; "),
			strconv.FormatFloat(track.Danceability, 'f', 3, 64),
			strconv.FormatFloat(track.Energy, 'f', 3, 64),
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

// WriteSnapshotCSV exports a snapshot to {base}_tracks.csv with a {base}_profile.json companion.
//
// The base filename defaults to the playlist ID.
func WriteSnapshotCSV(snapshot *models.PlaylistSnapshot, profile *models.AverageProfile, baseFilepath string) ([]string, error) {
	if baseFilepath == "" {
		baseFilepath = snapshot.Playlist.ID
	}

	csvData, err := SnapshotToCSV(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	tracksFile := baseFilepath + "_tracks.csv"
	if err := os.WriteFile(tracksFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	files := []string{tracksFile}

	if profile != nil {
		profileJSON, err := ProfileToJSON(profile, true)
		if err != nil {
			return nil, fmt.Errorf("failed to generate profile JSON: %w", err)
		}

		profileFile := baseFilepath + "_profile.json"
		if err := os.WriteFile(profileFile, profileJSON, 0644); err != nil {
			return nil, fmt.Errorf("failed to write profile file: %w", err)
		}
		files = append(files, profileFile)
	}

	return files, nil
}

// TracksToText renders a track listing as numbered plain text.
func TracksToText(tracks []models.Track) []byte {
	var buf bytes.Buffer

	for i, track := range tracks {
		buf.WriteString(fmt.Sprintf("%d. %s - %s (danceability %.2f, energy %.2f)\n",
			i+1, track.Artist, track.Title, track.Danceability, track.Energy))
	}

	return buf.Bytes()
}
