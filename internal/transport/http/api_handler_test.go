package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"math-dash-service/internal/domain"
)

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestSettingsEndpoints(t *testing.T) {
	env := newTestEnv(t)
	base := env.server.URL + "/players/p1"

	resp := doJSON(t, http.MethodGet, base+"/settings", nil)
	var settings domain.Settings
	if err := json.NewDecoder(resp.Body).Decode(&settings); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if settings != domain.DefaultSettings() {
		t.Fatalf("expected default settings, got %+v", settings)
	}

	update := domain.Settings{DurationSeconds: 60, Difficulty: domain.DifficultyHard, Mode: domain.ModeInput}
	resp = doJSON(t, http.MethodPut, base+"/settings", update)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, base+"/settings", nil)
	if err := json.NewDecoder(resp.Body).Decode(&settings); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if settings != update {
		t.Fatalf("expected %+v, got %+v", update, settings)
	}

	resp = doJSON(t, http.MethodPut, base+"/settings", domain.Settings{DurationSeconds: 5, Difficulty: domain.DifficultyEasy, Mode: domain.ModeInput})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for short duration, got %d", resp.StatusCode)
	}
}

func TestAudioIsClamped(t *testing.T) {
	env := newTestEnv(t)
	resp := doJSON(t, http.MethodPut, env.server.URL+"/players/p1/audio", domain.AudioSettings{
		SoundEnabled: true,
		SoundVolume:  3,
		MusicVolume:  -1,
	})
	var audio domain.AudioSettings
	if err := json.NewDecoder(resp.Body).Decode(&audio); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if audio.SoundVolume != 1 || audio.MusicVolume != 0 {
		t.Fatalf("expected clamped volumes, got %+v", audio)
	}
}

func TestPersonalizationSelect(t *testing.T) {
	env := newTestEnv(t)
	url := env.server.URL + "/players/p1/personalization"

	resp := doJSON(t, http.MethodPut, url, selectRequest{Kind: domain.ItemAvatar, ID: "wizard"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for locked item, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPut, url, selectRequest{Kind: domain.ItemAvatar, ID: "no-such-avatar"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown item, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPut, url, selectRequest{Kind: domain.ItemTheme, ID: "dark"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for free theme, got %d", resp.StatusCode)
	}
	var pers domain.Personalization
	if err := json.NewDecoder(resp.Body).Decode(&pers); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if pers.SelectedTheme != "dark" {
		t.Fatalf("expected dark theme selected, got %q", pers.SelectedTheme)
	}
}

func TestStatsAndReset(t *testing.T) {
	env := newTestEnv(t)
	base := env.server.URL + "/players/p1"

	resp := doJSON(t, http.MethodPost, base+"/visit", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, base+"/achievements", nil)
	var list []domain.Achievement
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 15 {
		t.Fatalf("expected full catalog of 15, got %d", len(list))
	}

	resp = doJSON(t, http.MethodDelete, base+"/progress", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, base+"/stats", nil)
	var ledger domain.Ledger
	if err := json.NewDecoder(resp.Body).Decode(&ledger); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ledger.DailyLoginStreak != 0 || ledger.GamesPlayed != 0 {
		t.Fatalf("expected a reset ledger, got %+v", ledger)
	}
}

func TestHistoryWithoutArchive(t *testing.T) {
	env := newTestEnv(t)
	resp := doJSON(t, http.MethodGet, env.server.URL+"/players/p1/history?limit=5", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 without archive, got %d", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodGet, env.server.URL+"/players/p1/history?limit=zero", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", resp.StatusCode)
	}
}

func TestRoundSnapshotMissing(t *testing.T) {
	env := newTestEnv(t)
	resp := doJSON(t, http.MethodGet, env.server.URL+"/players/p1/round", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/healthz", "/metrics"} {
		resp := doJSON(t, http.MethodGet, env.server.URL+path, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.StatusCode)
		}
	}
}
