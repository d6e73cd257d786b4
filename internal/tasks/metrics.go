package tasks

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	songsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lfmx_sync_songs_total",
		Help: "Songs seen by the reconciler, by kind (local, remote, matched).",
	}, []string{"kind"})

	favoritesUpdatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lfmx_sync_favorites_updated_total",
		Help: "Favorite flags written to user data.",
	})

	artistErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lfmx_sync_artist_errors_total",
		Help: "Artists skipped because their Last.fm history could not be fetched.",
	})

	userSyncsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lfmx_sync_users_total",
		Help: "Per-user syncs by outcome (ok, failed, cancelled).",
	}, []string{"outcome"})

	batchRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lfmx_sync_runs_total",
		Help: "Batch runs by final status.",
	}, []string{"status"})

	syncInProgress = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lfmx_sync_in_progress",
		Help: "1 while a batch run holds the sync flag.",
	})
)

func recordUserResult(res SyncResult) {
	songsTotal.WithLabelValues("local").Add(float64(res.LocalSongs))
	songsTotal.WithLabelValues("remote").Add(float64(res.RemoteSongs))
	songsTotal.WithLabelValues("matched").Add(float64(res.MatchedSongs))
	favoritesUpdatedTotal.Add(float64(res.FavoritesUpdated))
}
