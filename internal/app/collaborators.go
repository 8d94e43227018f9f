package app

import (
	"context"

	"go.uber.org/zap"
)

// Sound effect and music names understood by clients.
const (
	SoundCorrect     = "correct"
	SoundIncorrect   = "incorrect"
	SoundClick       = "click"
	SoundAchievement = "achievement"
	SoundGameStart   = "gameStart"
	SoundGameEnd     = "gameEnd"

	TrackBackground = "background"
)

// Sound actions carried by sound events.
const (
	SoundActionEffect = "effect"
	SoundActionLoop   = "loop"
	SoundActionStop   = "stop"
)

// SoundCue asks the client to play or stop a sound.
type SoundCue struct {
	Action string  `json:"action"`
	Name   string  `json:"name"`
	Volume float64 `json:"volume"`
}

// Audio turns audio cues into sound events, honoring the player's audio
// settings. It never fails the caller.
type Audio struct {
	hub   *Hub
	prefs *PreferencesService
	log   *zap.Logger
}

func NewAudio(hub *Hub, prefs *PreferencesService, log *zap.Logger) *Audio {
	if log == nil {
		log = zap.NewNop()
	}
	return &Audio{hub: hub, prefs: prefs, log: log}
}

func (a *Audio) PlayEffect(ctx context.Context, playerID, name string) {
	settings, err := a.prefs.Audio(ctx, playerID)
	if err != nil {
		a.log.Warn("audio settings unavailable", zap.String("player", playerID), zap.Error(err))
		return
	}
	if !settings.SoundEnabled {
		return
	}
	a.hub.Publish(playerID, EventSound, SoundCue{Action: SoundActionEffect, Name: name, Volume: settings.SoundVolume})
}

func (a *Audio) PlayLoop(ctx context.Context, playerID, track string) {
	settings, err := a.prefs.Audio(ctx, playerID)
	if err != nil {
		a.log.Warn("audio settings unavailable", zap.String("player", playerID), zap.Error(err))
		return
	}
	if !settings.MusicEnabled {
		return
	}
	a.hub.Publish(playerID, EventSound, SoundCue{Action: SoundActionLoop, Name: track, Volume: settings.MusicVolume})
}

// StopLoop is sent regardless of settings so music toggled off mid-round stops.
func (a *Audio) StopLoop(_ context.Context, playerID, track string) {
	a.hub.Publish(playerID, EventSound, SoundCue{Action: SoundActionStop, Name: track})
}

// Notification kinds.
const (
	NotifyInfo        = "info"
	NotifySuccess     = "success"
	NotifyWarning     = "warning"
	NotifyError       = "error"
	NotifyAchievement = "achievement"
)

// Notification is a transient message for the player.
type Notification struct {
	Kind   string `json:"kind"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
}

// Notifier publishes notify events.
type Notifier struct {
	hub *Hub
}

func NewNotifier(hub *Hub) *Notifier {
	return &Notifier{hub: hub}
}

func (n *Notifier) Notify(playerID, kind, title, detail string) {
	n.hub.Publish(playerID, EventNotify, Notification{Kind: kind, Title: title, Detail: detail})
}
