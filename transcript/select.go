package transcript

// SelectTrack picks the best track: manual English, then any manual track,
// then English of any kind, then the first track. Ties go to the track that
// appears first.
func SelectTrack(tracks []CaptionTrack) (CaptionTrack, bool) {
	if len(tracks) == 0 {
		return CaptionTrack{}, false
	}
	tiers := []func(CaptionTrack) bool{
		func(t CaptionTrack) bool { return !t.IsAutoGenerated() && t.IsEnglish() },
		func(t CaptionTrack) bool { return !t.IsAutoGenerated() },
		CaptionTrack.IsEnglish,
	}
	for _, match := range tiers {
		for _, t := range tracks {
			if match(t) {
				return t, true
			}
		}
	}
	return tracks[0], true
}
