package domain

import "encoding/json"

// Link is a directed dependency from one host to another, optionally
// annotated with the networks it was inferred to traverse.
type Link struct {
	Source *Host
	Target *Host
	Via    []*Network
}

// Key identifies the link within a refresh cycle
func (l *Link) Key() string {
	return LinkKey(l.Source.ID, l.Target.ID)
}

// LinkKey builds the key for a source/target pair
func LinkKey(sourceID, targetID string) string {
	return sourceID + ":" + targetID
}

// ViaIDs returns the ids of the traversed networks in order, skipping nil entries
func (l *Link) ViaIDs() []string {
	ids := make([]string, 0, len(l.Via))
	for _, n := range l.Via {
		if n != nil {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// MarshalJSON renders endpoints and networks by id
func (l *Link) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Source string   `json:"source"`
		Target string   `json:"target"`
		Via    []string `json:"via"`
	}{
		Source: l.Source.ID,
		Target: l.Target.ID,
		Via:    l.ViaIDs(),
	})
}
