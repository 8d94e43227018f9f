package progress

import (
	"math-dash-service/internal/domain"
)

const (
	DefaultAvatar = "default"
	DefaultTheme  = "light"
	DefaultTitle  = "none"

	PersonalizationVersion = 1
)

// unlockRule grants an item from state other than a single achievement
// reward. It sees the personalization as updated so far in the same pass.
type unlockRule func(p domain.Progress, pers domain.Personalization) bool

type itemDef struct {
	item domain.Item
	rule unlockRule
}

func free(kind domain.ItemKind, id, name, icon string) itemDef {
	return itemDef{item: domain.Item{ID: id, Kind: kind, Name: name, Icon: icon, Rarity: domain.RarityCommon, Unlocked: true}}
}

func earned(kind domain.ItemKind, id, name, icon string, rarity domain.Rarity, hint string) itemDef {
	return itemDef{item: domain.Item{ID: id, Kind: kind, Name: name, Icon: icon, Rarity: rarity, Hint: hint}}
}

func (d itemDef) when(rule unlockRule) itemDef {
	d.rule = rule
	return d
}

var items = []itemDef{
	free(domain.ItemAvatar, "default", "Default", "👤"),
	free(domain.ItemAvatar, "student", "Student", "🎓"),
	free(domain.ItemAvatar, "teacher", "Teacher", "👨‍🏫"),
	free(domain.ItemAvatar, "scientist", "Scientist", "👨‍🔬"),
	earned(domain.ItemAvatar, "lightning", "Lightning", "⚡", domain.RarityRare, "Unlock Speed Demon"),
	earned(domain.ItemAvatar, "fire", "Fire King", "🔥", domain.RarityRare, "Unlock Combo King"),
	earned(domain.ItemAvatar, "target", "Sharpshooter", "🎯", domain.RarityEpic, "Unlock Accuracy Ace"),
	earned(domain.ItemAvatar, "plus", "Addition Master", "➕", domain.RarityRare, "Unlock Addition Expert"),
	earned(domain.ItemAvatar, "racer", "Racer", "🏎️", domain.RarityEpic, "Unlock Speed Racer"),
	earned(domain.ItemAvatar, "crown", "Math King", "👑", domain.RarityLegendary, "Unlock 5 legendary achievements").
		when(func(p domain.Progress, _ domain.Personalization) bool {
			return countUnlocked(p, domain.RarityLegendary) >= 5
		}),
	earned(domain.ItemAvatar, "wizard", "Math Wizard", "🧙", domain.RarityEpic, "Unlock Math Master").
		when(func(p domain.Progress, _ domain.Personalization) bool {
			return achievementUnlocked(p, "math_master")
		}),
	earned(domain.ItemAvatar, "robot", "Calculator Bot", "🤖", domain.RarityRare, "Answer 1000 questions").
		when(func(p domain.Progress, _ domain.Personalization) bool {
			return p.Ledger.TotalAnswered() >= 1000
		}),

	free(domain.ItemTheme, "light", "Fresh Blue", ""),
	free(domain.ItemTheme, "dark", "Deep Night", ""),
	free(domain.ItemTheme, "forest", "Forest", ""),
	free(domain.ItemTheme, "sunset", "Sunset", ""),
	earned(domain.ItemTheme, "master", "Master Purple", "", domain.RarityEpic, "Unlock Math Master"),
	earned(domain.ItemTheme, "diamond", "Diamond", "", domain.RarityEpic, "Unlock Perfectionist"),
	earned(domain.ItemTheme, "golden", "Golden", "", domain.RarityLegendary, "Unlock Streak Master"),
	earned(domain.ItemTheme, "multiplication", "Multiplication Red", "", domain.RarityEpic, "Unlock Multiplication Master"),
	earned(domain.ItemTheme, "veteran", "Veteran Green", "", domain.RarityLegendary, "Unlock Veteran"),
	earned(domain.ItemTheme, "rainbow", "Rainbow", "", domain.RarityLegendary, "Unlock every other theme").
		when(func(_ domain.Progress, pers domain.Personalization) bool {
			for _, it := range pers.Items {
				if it.Kind == domain.ItemTheme && it.ID != "rainbow" && !it.Unlocked {
					return false
				}
			}
			return true
		}),

	free(domain.ItemTitle, "none", "No title", ""),
	earned(domain.ItemTitle, "persistent", "Persistent", "", domain.RarityRare, "Unlock Marathon Runner"),
	earned(domain.ItemTitle, "persister", "Persister", "", domain.RarityRare, "Unlock Daily Dedication"),
	earned(domain.ItemTitle, "legendary_player", "Legendary Player", "", domain.RarityLegendary, "Unlock Century Scorer"),
	earned(domain.ItemTitle, "math_genius", "Math Genius", "", domain.RarityLegendary, "Unlock every achievement").
		when(func(p domain.Progress, _ domain.Personalization) bool {
			return countUnlocked(p, "") == len(catalog)
		}),
}

// NewPersonalization returns the catalog with only the free items unlocked.
func NewPersonalization() domain.Personalization {
	out := domain.Personalization{
		Version:        PersonalizationVersion,
		SelectedAvatar: DefaultAvatar,
		SelectedTheme:  DefaultTheme,
		SelectedTitle:  DefaultTitle,
		Items:          make([]domain.Item, 0, len(items)),
	}
	for _, def := range items {
		out.Items = append(out.Items, def.item)
	}
	return out
}

// NormalizePersonalization rebuilds the item list from the catalog, keeping
// only the persisted unlock flags, and resets selections that point at
// unknown or locked items.
func NormalizePersonalization(pers domain.Personalization) domain.Personalization {
	unlocked := make(map[string]bool, len(pers.Items))
	for _, it := range pers.Items {
		if it.Unlocked {
			unlocked[key(it.Kind, it.ID)] = true
		}
	}
	out := NewPersonalization()
	for i := range out.Items {
		if unlocked[key(out.Items[i].Kind, out.Items[i].ID)] {
			out.Items[i].Unlocked = true
		}
	}
	out.SelectedAvatar = pickSelected(out, domain.ItemAvatar, pers.SelectedAvatar, DefaultAvatar)
	out.SelectedTheme = pickSelected(out, domain.ItemTheme, pers.SelectedTheme, DefaultTheme)
	out.SelectedTitle = pickSelected(out, domain.ItemTitle, pers.SelectedTitle, DefaultTitle)
	return out
}

// Unlock grants the items named by unlocked achievement rewards and every
// compound unlock now satisfied. It returns the newly unlocked items.
func Unlock(pers *domain.Personalization, p domain.Progress) []domain.Item {
	*pers = NormalizePersonalization(*pers)
	p = Normalize(p)

	rewarded := make(map[string]bool)
	for i, def := range catalog {
		if !p.Achievements[i].Unlocked || def.Reward == nil || def.Reward.Kind == domain.RewardPoints {
			continue
		}
		rewarded[key(domain.ItemKind(def.Reward.Kind), def.Reward.Value)] = true
	}

	var granted []domain.Item
	for changed := true; changed; {
		changed = false
		for i, def := range items {
			it := &pers.Items[i]
			if it.Unlocked {
				continue
			}
			if rewarded[key(it.Kind, it.ID)] || (def.rule != nil && def.rule(p, *pers)) {
				it.Unlocked = true
				granted = append(granted, *it)
				changed = true
			}
		}
	}
	return granted
}

// Select makes an unlocked item the current avatar, theme or title.
func Select(pers *domain.Personalization, kind domain.ItemKind, id string) error {
	it, ok := find(*pers, kind, id)
	if !ok {
		return domain.ErrItemNotFound
	}
	if !it.Unlocked {
		return domain.ErrItemLocked
	}
	switch kind {
	case domain.ItemAvatar:
		pers.SelectedAvatar = id
	case domain.ItemTheme:
		pers.SelectedTheme = id
	case domain.ItemTitle:
		pers.SelectedTitle = id
	}
	return nil
}

func find(pers domain.Personalization, kind domain.ItemKind, id string) (domain.Item, bool) {
	for _, it := range pers.Items {
		if it.Kind == kind && it.ID == id {
			return it, true
		}
	}
	return domain.Item{}, false
}

func pickSelected(pers domain.Personalization, kind domain.ItemKind, id, fallback string) string {
	if it, ok := find(pers, kind, id); ok && it.Unlocked {
		return id
	}
	return fallback
}

func key(kind domain.ItemKind, id string) string {
	return string(kind) + ":" + id
}

// countUnlocked counts unlocked achievements of a rarity, or all of them
// when rarity is empty.
func countUnlocked(p domain.Progress, rarity domain.Rarity) int {
	n := 0
	for i, def := range catalog {
		if i >= len(p.Achievements) || !p.Achievements[i].Unlocked {
			continue
		}
		if rarity == "" || def.Rarity == rarity {
			n++
		}
	}
	return n
}

func achievementUnlocked(p domain.Progress, id string) bool {
	for _, rec := range p.Achievements {
		if rec.ID == id {
			return rec.Unlocked
		}
	}
	return false
}
