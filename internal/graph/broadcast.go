package graph

import "fmt"

// OwnedBroadcast records a subtree this instance has published to a relay
// (spec.md §4.8): the relay-assigned broadcast id and bearer token, the root
// that was exported, the set of ids the export contained (so a later
// update_broadcasts can test for descendant overlap), and the last episode's
// timestamp/expiration.
type OwnedBroadcast struct {
	BroadcastId Id
	Root        Id
	Exported    []Id
	Token       Id
	LastUpdated int64
	Expiration  int64
}

// SubscribedBroadcast records a subtree imported from a relay: the
// broadcast id being followed, the namespace every imported id was XORed
// into (stable across re-fetches so re-imports land on the same ids), and
// the timestamp of the newest episode applied so far.
type SubscribedBroadcast struct {
	BroadcastId Id
	Namespace   Id
	LastUpdated int64
}

// GetOwnedBroadcast reads the OwnedBroadcast stored for id, if any.
func (st *Store) GetOwnedBroadcast(id Id) (OwnedBroadcast, bool, error) {
	raw, ok, err := st.Snapshot.Get(idKey(SlotBroadcastPublished, id))
	if err != nil || !ok {
		return OwnedBroadcast{}, false, err
	}
	ob, err := decodeOwnedBroadcast(raw)
	if err != nil {
		return OwnedBroadcast{}, false, fmt.Errorf("graph: decode owned broadcast %s: %w", id, err)
	}
	return ob, true, nil
}

// PutOwnedBroadcast writes ob under id.
func (st *Store) PutOwnedBroadcast(id Id, ob OwnedBroadcast) error {
	st.Snapshot.Insert(idKey(SlotBroadcastPublished, id), encodeOwnedBroadcast(ob))
	return nil
}

// RemoveOwnedBroadcast drops id's owned-broadcast record (an expired push
// target, per update_broadcasts' "drop expired broadcasts").
func (st *Store) RemoveOwnedBroadcast(id Id) error {
	st.Snapshot.Remove(idKey(SlotBroadcastPublished, id))
	return nil
}

// ListOwnedBroadcastIds returns every id with a live OwnedBroadcast entry,
// for update_broadcasts' sweep over everything this instance has published.
func (st *Store) ListOwnedBroadcastIds() []Id {
	var out []Id
	for _, key := range st.Snapshot.Keys() {
		if len(key) != 1+16 || Slot(key[0]) != SlotBroadcastPublished {
			continue
		}
		var id Id
		copy(id[:], key[1:])
		if _, ok, err := st.GetOwnedBroadcast(id); err != nil || !ok {
			continue
		}
		out = append(out, id)
	}
	return out
}

// GetSubscribedBroadcast reads the SubscribedBroadcast stored for id, if any.
func (st *Store) GetSubscribedBroadcast(id Id) (SubscribedBroadcast, bool, error) {
	raw, ok, err := st.Snapshot.Get(idKey(SlotBroadcastSubscribed, id))
	if err != nil || !ok {
		return SubscribedBroadcast{}, false, err
	}
	sb, err := decodeSubscribedBroadcast(raw)
	if err != nil {
		return SubscribedBroadcast{}, false, fmt.Errorf("graph: decode subscribed broadcast %s: %w", id, err)
	}
	return sb, true, nil
}

// PutSubscribedBroadcast writes sb under id.
func (st *Store) PutSubscribedBroadcast(id Id, sb SubscribedBroadcast) error {
	st.Snapshot.Insert(idKey(SlotBroadcastSubscribed, id), encodeSubscribedBroadcast(sb))
	return nil
}

func encodeOwnedBroadcast(ob OwnedBroadcast) []byte {
	var buf []byte
	buf = append(buf, ob.BroadcastId[:]...)
	buf = append(buf, ob.Root[:]...)
	buf = append(buf, ob.Token[:]...)
	buf = appendUvarint(buf, uint64(ob.LastUpdated))
	buf = appendUvarint(buf, uint64(ob.Expiration))
	buf = appendUvarint(buf, uint64(len(ob.Exported)))
	for _, id := range ob.Exported {
		buf = append(buf, id[:]...)
	}
	return buf
}

func decodeOwnedBroadcast(data []byte) (OwnedBroadcast, error) {
	var ob OwnedBroadcast
	rest := data
	fields := []*Id{&ob.BroadcastId, &ob.Root, &ob.Token}
	for _, f := range fields {
		if len(rest) < 16 {
			return OwnedBroadcast{}, fmt.Errorf("graph: truncated owned broadcast")
		}
		copy(f[:], rest[:16])
		rest = rest[16:]
	}
	lastUpdated, r1, err := readUvarint(rest)
	if err != nil {
		return OwnedBroadcast{}, err
	}
	expiration, r2, err := readUvarint(r1)
	if err != nil {
		return OwnedBroadcast{}, err
	}
	n, r3, err := readUvarint(r2)
	if err != nil {
		return OwnedBroadcast{}, err
	}
	ob.LastUpdated = int64(lastUpdated)
	ob.Expiration = int64(expiration)
	rest = r3
	ob.Exported = make([]Id, 0, n)
	for i := uint64(0); i < n; i++ {
		if len(rest) < 16 {
			return OwnedBroadcast{}, fmt.Errorf("graph: truncated owned broadcast exported set")
		}
		var id Id
		copy(id[:], rest[:16])
		rest = rest[16:]
		ob.Exported = append(ob.Exported, id)
	}
	return ob, nil
}

func encodeSubscribedBroadcast(sb SubscribedBroadcast) []byte {
	var buf []byte
	buf = append(buf, sb.BroadcastId[:]...)
	buf = append(buf, sb.Namespace[:]...)
	buf = appendUvarint(buf, uint64(sb.LastUpdated))
	return buf
}

func decodeSubscribedBroadcast(data []byte) (SubscribedBroadcast, error) {
	var sb SubscribedBroadcast
	if len(data) < 32 {
		return SubscribedBroadcast{}, fmt.Errorf("graph: truncated subscribed broadcast")
	}
	copy(sb.BroadcastId[:], data[:16])
	copy(sb.Namespace[:], data[16:32])
	lastUpdated, _, err := readUvarint(data[32:])
	if err != nil {
		return SubscribedBroadcast{}, err
	}
	sb.LastUpdated = int64(lastUpdated)
	return sb, nil
}
