package queue

import (
	"database/sql"
	"errors"
	"time"
)

const itemColumns = "id, source_path, camera_id, title, status, analysis_json, guests_json, timeline_json, plan_json, plan_path, rendered_file, error_message, created_at, updated_at, progress_stage, progress_percent, progress_message, needs_review, review_reason"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id              int64
		sourcePath      string
		cameraID        sql.NullString
		title           sql.NullString
		statusStr       string
		analysisJSON    sql.NullString
		guestsJSON      sql.NullString
		timelineJSON    sql.NullString
		planJSON        sql.NullString
		planPath        sql.NullString
		renderedFile    sql.NullString
		errorMessage    sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
		progressStage   sql.NullString
		progressPercent sql.NullFloat64
		progressMessage sql.NullString
		needsReview     sql.NullInt64
		reviewReason    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&sourcePath,
		&cameraID,
		&title,
		&statusStr,
		&analysisJSON,
		&guestsJSON,
		&timelineJSON,
		&planJSON,
		&planPath,
		&renderedFile,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&needsReview,
		&reviewReason,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:              id,
		SourcePath:      sourcePath,
		CameraID:        cameraID.String,
		Title:           title.String,
		Status:          Status(statusStr),
		AnalysisJSON:    analysisJSON.String,
		GuestsJSON:      guestsJSON.String,
		TimelineJSON:    timelineJSON.String,
		PlanJSON:        planJSON.String,
		PlanPath:        planPath.String,
		RenderedFile:    renderedFile.String,
		ErrorMessage:    errorMessage.String,
		ProgressStage:   progressStage.String,
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
		ReviewReason:    reviewReason.String,
	}
	if needsReview.Valid {
		item.NeedsReview = needsReview.Int64 != 0
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
