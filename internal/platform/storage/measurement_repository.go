package storage

import (
	"context"

	"github.com/bytedance/sonic"
	"gorm.io/gorm"

	"vitalsense/internal/domain/measure"
	platformerrors "vitalsense/internal/platform/errors"
)

const (
	KindHeart = "heart"
	KindVoice = "voice"
)

// MeasurementRepository persists analysis results per session.
type MeasurementRepository struct {
	db *gorm.DB
}

func NewMeasurementRepository(db *gorm.DB) *MeasurementRepository {
	return &MeasurementRepository{db: db}
}

// SaveHeart stores one heart analysis result under the session ID.
func (r *MeasurementRepository) SaveHeart(ctx context.Context, sessionID string, res measure.HeartSignalResult) error {
	payload, err := sonic.MarshalString(res)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage,
			"measurement.save_heart", "failed to encode result", err)
	}
	record := &MeasurementRecord{
		SessionID:  sessionID,
		Kind:       KindHeart,
		Quality:    string(res.Quality),
		Payload:    payload,
		CapturedAt: res.CapturedAt,
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage,
			"measurement.save_heart", "failed to save result", err)
	}
	return nil
}

// SaveVoice stores one voice analysis result under the session ID.
func (r *MeasurementRepository) SaveVoice(ctx context.Context, sessionID string, res measure.VoiceSignalResult) error {
	payload, err := sonic.MarshalString(res)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage,
			"measurement.save_voice", "failed to encode result", err)
	}
	record := &MeasurementRecord{
		SessionID:  sessionID,
		Kind:       KindVoice,
		Quality:    string(res.Quality),
		Payload:    payload,
		CapturedAt: res.CapturedAt,
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage,
			"measurement.save_voice", "failed to save result", err)
	}
	return nil
}

// ListBySession returns every record stored for a session, oldest first.
func (r *MeasurementRepository) ListBySession(ctx context.Context, sessionID string) ([]MeasurementRecord, error) {
	var records []MeasurementRecord
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at asc, id asc").
		Find(&records).Error; err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindStorage,
			"measurement.list_by_session", "failed to list records", err)
	}
	return records, nil
}

// Recent returns the newest records across all sessions, newest first.
func (r *MeasurementRepository) Recent(ctx context.Context, limit int) ([]MeasurementRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var records []MeasurementRecord
	if err := r.db.WithContext(ctx).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindStorage,
			"measurement.recent", "failed to list records", err)
	}
	return records, nil
}

// DecodeHeart unpacks a heart record payload.
func DecodeHeart(record MeasurementRecord) (measure.HeartSignalResult, error) {
	var res measure.HeartSignalResult
	if err := sonic.UnmarshalString(record.Payload, &res); err != nil {
		return res, platformerrors.Wrap(platformerrors.KindStorage,
			"measurement.decode_heart", "failed to decode payload", err)
	}
	return res, nil
}

// DecodeVoice unpacks a voice record payload.
func DecodeVoice(record MeasurementRecord) (measure.VoiceSignalResult, error) {
	var res measure.VoiceSignalResult
	if err := sonic.UnmarshalString(record.Payload, &res); err != nil {
		return res, platformerrors.Wrap(platformerrors.KindStorage,
			"measurement.decode_voice", "failed to decode payload", err)
	}
	return res, nil
}
