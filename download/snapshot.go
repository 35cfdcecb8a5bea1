package download

// Snapshot is the state of the daemon at one instant. It must not be modified after creation.
type Snapshot struct {
	Downloads []*Download
	Stats     Stats

	byGID map[string]*Download
}

// NewSnapshot indexes downloads by GID.
// A download listed twice, as may happen while it moves between queues, is kept once.
func NewSnapshot(downloads []*Download, stats Stats) *Snapshot {
	s := &Snapshot{
		Stats: stats,
		byGID: make(map[string]*Download, len(downloads)),
	}
	for _, d := range downloads {
		if _, ok := s.byGID[d.GID]; ok {
			continue
		}
		s.byGID[d.GID] = d
		s.Downloads = append(s.Downloads, d)
	}
	return s
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Downloads)
}

func (s *Snapshot) Get(gid string) (*Download, bool) {
	if s == nil {
		return nil, false
	}
	d, ok := s.byGID[gid]
	return d, ok
}

// Following returns the download d was spawned from, if it is in the snapshot.
func (s *Snapshot) Following(d *Download) (*Download, bool) {
	if d.Following == "" {
		return nil, false
	}
	return s.Get(d.Following)
}

// FollowedBy returns the downloads spawned from d that are in the snapshot.
func (s *Snapshot) FollowedBy(d *Download) []*Download {
	var ret []*Download
	for _, gid := range d.FollowedBy {
		if f, ok := s.Get(gid); ok {
			ret = append(ret, f)
		}
	}
	return ret
}

// BelongsTo returns the parent download of d, if it is in the snapshot.
func (s *Snapshot) BelongsTo(d *Download) (*Download, bool) {
	if d.BelongsTo == "" {
		return nil, false
	}
	return s.Get(d.BelongsTo)
}
