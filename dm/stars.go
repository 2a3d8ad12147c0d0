////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package dm

import (
	"sort"

	"github.com/golang-collections/collections/set"
	jww "github.com/spf13/jwalterweatherman"
)

const starredKeyPrefix = "starred:"

// Star adds messageID to viewerID's starred set.
func (md *Metadata) Star(viewerID, messageID string) error {
	return md.updateStars(viewerID, func(starred *set.Set) {
		starred.Insert(messageID)
	})
}

// Unstar removes messageID from viewerID's starred set.
func (md *Metadata) Unstar(viewerID, messageID string) error {
	return md.updateStars(viewerID, func(starred *set.Set) {
		starred.Remove(messageID)
	})
}

// IsStarred reports whether viewerID starred messageID.
func (md *Metadata) IsStarred(viewerID, messageID string) (bool, error) {
	md.mux.Lock()
	defer md.mux.Unlock()

	starred, err := md.loadStars(viewerID)
	if err != nil {
		return false, err
	}
	return starred.Has(messageID), nil
}

// ListStarred returns viewerID's starred message IDs, sorted. IDs of deleted
// messages are included.
func (md *Metadata) ListStarred(viewerID string) ([]string, error) {
	md.mux.Lock()
	defer md.mux.Unlock()

	starred, err := md.loadStars(viewerID)
	if err != nil {
		return nil, err
	}
	return setToSortedList(starred), nil
}

// StarredDetails resolves viewerID's stars against the store. Stars whose
// message no longer exists are skipped.
func (md *Metadata) StarredDetails(viewerID string, store MessageStore) (
	[]Message, error) {
	ids, err := md.ListStarred(viewerID)
	if err != nil {
		return nil, err
	}

	msgs := make([]Message, 0, len(ids))
	for _, id := range ids {
		m, exists := store.Get(id)
		if !exists {
			jww.DEBUG.Printf("[DM] Starred message %s no longer exists", id)
			continue
		}
		msgs = append(msgs, m)
	}
	SortMessages(msgs)
	return msgs, nil
}

func (md *Metadata) updateStars(viewerID string, op func(starred *set.Set)) error {
	md.mux.Lock()
	defer md.mux.Unlock()

	starred, err := md.loadStars(viewerID)
	if err != nil {
		return err
	}
	op(starred)
	return md.saveJSON(starredKeyPrefix+viewerID, setToSortedList(starred))
}

// loadStars must be called with the lock held.
func (md *Metadata) loadStars(viewerID string) (*set.Set, error) {
	var ids []string
	if _, err := md.loadJSON(starredKeyPrefix+viewerID, &ids); err != nil {
		return nil, err
	}

	starred := set.New()
	for _, id := range ids {
		starred.Insert(id)
	}
	return starred, nil
}

func setToSortedList(s *set.Set) []string {
	list := make([]string, 0, s.Len())
	s.Do(func(i interface{}) {
		list = append(list, i.(string))
	})
	sort.Strings(list)
	return list
}
