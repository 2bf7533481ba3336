package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// StoredReserves is the persisted shape of reserve configurations. Older rows hold a single
// deck as a flat array of item names; current rows hold a list of decks. Exactly one of the
// fields is set after decoding.
type StoredReserves struct {
	LegacySingleDeck []string
	DeckList         []Configuration
}

func (s StoredReserves) Configurations() []Configuration {
	if s.LegacySingleDeck != nil {
		if len(s.LegacySingleDeck) == 0 {
			return []Configuration{}
		}
		return []Configuration{NewConfiguration(s.LegacySingleDeck...)}
	}
	if s.DeckList == nil {
		return []Configuration{}
	}
	return s.DeckList
}

// MarshalJSON always writes the current deck-list encoding.
func (s StoredReserves) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Configurations())
}

func (s *StoredReserves) UnmarshalJSON(data []byte) error {
	*s = StoredReserves{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("reserve decks: expected array: %w", err)
	}
	if len(raw) == 0 {
		s.DeckList = []Configuration{}
		return nil
	}

	// Flat array of strings: legacy single deck.
	if first := bytes.TrimSpace(raw[0]); len(first) > 0 && first[0] == '"' {
		var names []string
		if err := json.Unmarshal(data, &names); err != nil {
			return fmt.Errorf("reserve decks: legacy single deck: %w", err)
		}
		s.LegacySingleDeck = names
		return nil
	}

	decks := make([]Configuration, 0, len(raw))
	for i, deckRaw := range raw {
		cfg, err := DecodeConfiguration(deckRaw)
		if err != nil {
			return fmt.Errorf("reserve decks: deck %d: %w", i+1, err)
		}
		decks = append(decks, cfg)
	}
	s.DeckList = decks
	return nil
}

// DecodeConfiguration accepts a deck whose slots are either plain names or {item, attachment} objects.
func DecodeConfiguration(data json.RawMessage) (Configuration, error) {
	var cfg Configuration
	var slots []json.RawMessage
	if err := json.Unmarshal(data, &slots); err != nil {
		return cfg, err
	}
	for i, slotRaw := range slots {
		if i >= SlotsPerConfiguration {
			break
		}
		slotRaw = bytes.TrimSpace(slotRaw)
		if len(slotRaw) > 0 && slotRaw[0] == '"' {
			if err := json.Unmarshal(slotRaw, &cfg[i].Item); err != nil {
				return cfg, err
			}
			continue
		}
		if err := json.Unmarshal(slotRaw, &cfg[i]); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}
