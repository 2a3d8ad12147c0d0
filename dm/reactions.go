////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package dm

import (
	"sort"

	"github.com/forPelevin/gomoji"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

const reactionsKeyPrefix = "reactions:"

// DefaultReaction is stored for users who react without picking an emoji.
const DefaultReaction = ""

// ReactionSummary is what the UI shows under a message.
type ReactionSummary struct {
	Count         int
	ViewerReacted bool

	// Emojis counts reactions per emoji. Reactions without an emoji are
	// counted under DefaultReaction.
	Emojis map[string]int
}

// ValidateReaction checks that the reaction only contains a single emoji.
// Returns ErrInvalidReaction if the emoji is invalid.
func ValidateReaction(reaction string) error {
	emojisList := gomoji.CollectAll(reaction)
	if len(emojisList) != 1 {
		return errors.WithMessagef(ErrInvalidReaction,
			"found %d emojis in %q", len(emojisList), reaction)
	} else if emojisList[0].Character != reaction {
		// Non-emoji characters found alongside an emoji
		return errors.WithMessagef(ErrInvalidReaction,
			"%q contains non-emoji characters", reaction)
	}

	return nil
}

// AddReaction records that userID reacted to messageID. Adding a reaction
// the user already has is a no-op.
func (md *Metadata) AddReaction(messageID, userID string) error {
	return md.addReaction(messageID, userID, DefaultReaction)
}

// AddEmojiReaction records that userID reacted to messageID with the given
// emoji. A user has at most one reaction per message; an existing reaction
// is kept as it is.
func (md *Metadata) AddEmojiReaction(messageID, userID, emoji string) error {
	if err := ValidateReaction(emoji); err != nil {
		return err
	}
	return md.addReaction(messageID, userID, emoji)
}

// RemoveReaction removes the reaction by userID on messageID, if any.
func (md *Metadata) RemoveReaction(messageID, userID string) error {
	md.mux.Lock()
	defer md.mux.Unlock()

	reactions, err := md.loadReactions(messageID)
	if err != nil {
		return err
	}
	if _, exists := reactions[userID]; !exists {
		return nil
	}

	delete(reactions, userID)
	if len(reactions) == 0 {
		return md.kv.Delete(reactionsKeyPrefix+messageID, metadataVersion)
	}
	return md.saveJSON(reactionsKeyPrefix+messageID, reactions)
}

// Reactions returns the reaction summary of messageID as seen by viewerID.
func (md *Metadata) Reactions(messageID, viewerID string) (
	ReactionSummary, error) {
	md.mux.Lock()
	defer md.mux.Unlock()

	reactions, err := md.loadReactions(messageID)
	if err != nil {
		return ReactionSummary{}, err
	}

	summary := ReactionSummary{
		Count:  len(reactions),
		Emojis: make(map[string]int, len(reactions)),
	}
	_, summary.ViewerReacted = reactions[viewerID]
	for _, e := range reactions {
		summary.Emojis[e]++
	}
	return summary, nil
}

// Reactors returns the sorted IDs of everyone who reacted to messageID.
func (md *Metadata) Reactors(messageID string) ([]string, error) {
	md.mux.Lock()
	defer md.mux.Unlock()

	reactions, err := md.loadReactions(messageID)
	if err != nil {
		return nil, err
	}

	users := make([]string, 0, len(reactions))
	for u := range reactions {
		users = append(users, u)
	}
	sort.Strings(users)
	return users, nil
}

func (md *Metadata) addReaction(messageID, userID, emoji string) error {
	if messageID == "" || userID == "" {
		return errors.Errorf("cannot react with message %q and user %q",
			messageID, userID)
	}

	md.mux.Lock()
	defer md.mux.Unlock()

	reactions, err := md.loadReactions(messageID)
	if err != nil {
		return err
	}
	if _, exists := reactions[userID]; exists {
		jww.TRACE.Printf("[DM] %s already reacted to %s", userID, messageID)
		return nil
	}

	reactions[userID] = emoji
	return md.saveJSON(reactionsKeyPrefix+messageID, reactions)
}

// loadReactions must be called with the lock held.
func (md *Metadata) loadReactions(messageID string) (map[string]string, error) {
	reactions := make(map[string]string)
	if _, err := md.loadJSON(reactionsKeyPrefix+messageID, &reactions); err != nil {
		return nil, err
	}
	return reactions, nil
}
