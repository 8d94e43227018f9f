package app

import (
	"context"

	"math-dash-service/internal/domain"
	"math-dash-service/internal/progress"

	"go.uber.org/zap"
)

// PreferencesService stores game settings, audio settings and
// personalization, each under its own key. Unreadable documents load as
// defaults.
type PreferencesService struct {
	docs     *documents
	log      *zap.Logger
	defaults domain.Settings
	players  keyedMutex
}

func NewPreferencesService(store KeyValueStore, defaults domain.Settings, log *zap.Logger) *PreferencesService {
	if log == nil {
		log = zap.NewNop()
	}
	if defaults.Validate() != nil {
		defaults = domain.DefaultSettings()
	}
	return &PreferencesService{docs: &documents{store: store}, log: log, defaults: defaults}
}

// Defaults returns the settings players start with.
func (s *PreferencesService) Defaults() domain.Settings { return s.defaults }

func (s *PreferencesService) Settings(ctx context.Context, playerID string) (domain.Settings, error) {
	raw, found, err := s.docs.load(ctx, settingsKey(playerID))
	if err != nil {
		return domain.Settings{}, err
	}
	settings, ok := decodeOr(raw, s.defaults, func(v domain.Settings) bool { return v.Validate() == nil })
	if found && !ok {
		s.log.Warn("unreadable settings replaced by defaults", zap.String("player", playerID))
	}
	return settings, nil
}

// UpdateSettings validates and stores new game settings.
func (s *PreferencesService) UpdateSettings(ctx context.Context, playerID string, settings domain.Settings) (domain.Settings, error) {
	if err := settings.Validate(); err != nil {
		return domain.Settings{}, err
	}
	if err := s.docs.save(ctx, settingsKey(playerID), settings); err != nil {
		return domain.Settings{}, err
	}
	return settings, nil
}

func (s *PreferencesService) Audio(ctx context.Context, playerID string) (domain.AudioSettings, error) {
	raw, found, err := s.docs.load(ctx, audioKey(playerID))
	if err != nil {
		return domain.AudioSettings{}, err
	}
	audio, ok := decodeOr(raw, domain.DefaultAudioSettings(), nil)
	if found && !ok {
		s.log.Warn("unreadable audio settings replaced by defaults", zap.String("player", playerID))
	}
	return audio.Clamp(), nil
}

// UpdateAudio stores audio settings with volumes clamped to [0,1].
func (s *PreferencesService) UpdateAudio(ctx context.Context, playerID string, audio domain.AudioSettings) (domain.AudioSettings, error) {
	audio = audio.Clamp()
	if err := s.docs.save(ctx, audioKey(playerID), audio); err != nil {
		return domain.AudioSettings{}, err
	}
	return audio, nil
}

func (s *PreferencesService) Personalization(ctx context.Context, playerID string) (domain.Personalization, error) {
	unlock := s.players.lock(playerID)
	defer unlock()
	return s.personalizationLocked(ctx, playerID)
}

// Select makes an unlocked avatar, theme or title current.
func (s *PreferencesService) Select(ctx context.Context, playerID string, kind domain.ItemKind, id string) (domain.Personalization, error) {
	unlock := s.players.lock(playerID)
	defer unlock()

	pers, err := s.personalizationLocked(ctx, playerID)
	if err != nil {
		return domain.Personalization{}, err
	}
	if err := progress.Select(&pers, kind, id); err != nil {
		return domain.Personalization{}, err
	}
	if err := s.docs.save(ctx, personalizationKey(playerID), pers); err != nil {
		return domain.Personalization{}, err
	}
	return pers, nil
}

// Unlock grants every item the player's progress now earns and returns the
// newly granted ones. A failed save is logged; the grant is recomputed from
// progress on the next call.
func (s *PreferencesService) Unlock(ctx context.Context, playerID string, p domain.Progress) ([]domain.Item, error) {
	unlock := s.players.lock(playerID)
	defer unlock()

	pers, err := s.personalizationLocked(ctx, playerID)
	if err != nil {
		return nil, err
	}
	granted := progress.Unlock(&pers, p)
	if len(granted) == 0 {
		return nil, nil
	}
	if err := s.docs.save(ctx, personalizationKey(playerID), pers); err != nil {
		s.log.Warn("personalization not persisted", zap.String("player", playerID), zap.Error(err))
	}
	return granted, nil
}

func (s *PreferencesService) personalizationLocked(ctx context.Context, playerID string) (domain.Personalization, error) {
	raw, found, err := s.docs.load(ctx, personalizationKey(playerID))
	if err != nil {
		return domain.Personalization{}, err
	}
	pers, ok := decodeOr(raw, progress.NewPersonalization(), func(v domain.Personalization) bool {
		return v.Version == progress.PersonalizationVersion
	})
	if found && !ok {
		s.log.Warn("unreadable personalization replaced by defaults", zap.String("player", playerID))
	}
	return progress.NormalizePersonalization(pers), nil
}
