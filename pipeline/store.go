package pipeline

import (
	"caresignal.com/triage/episodes"
	"caresignal.com/triage/triage"
)

type episodeStore interface {
	getEpisode(episodeID string) (*episodes.Episode, error)
	saveVerdict(episodeID string, verdict *triage.Verdict) (*triage.Verdict, bool, error)
}

type storeWrapper struct {
	store episodes.Store
}

func (wrapper *storeWrapper) getEpisode(episodeID string) (*episodes.Episode, error) {
	return wrapper.store.Get(episodeID)
}

// saveVerdict stores the verdict unless the episode already carries one, all
// under the episode lock. Returns the verdict that ended up on the record and
// whether this call was the one that wrote it.
func (wrapper *storeWrapper) saveVerdict(episodeID string, verdict *triage.Verdict) (*triage.Verdict, bool, error) {
	var stored *triage.Verdict
	created := false
	err := wrapper.store.Update(episodeID, func(episode *episodes.Episode) {
		if episode.Verdict != nil {
			stored = episode.Verdict
			return
		}
		episode.Verdict = verdict
		episode.Status = episodes.StatusTriaged
		stored = verdict
		created = true
	})
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}
