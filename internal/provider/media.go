package provider

import (
	"strings"

	"github.com/valpere/musicmanager/internal/utils"
)

// Provider names.
const (
	YouTubeName    = "youtube"
	SoundCloudName = "soundcloud"
	MixcloudName   = "mixcloud"
	BeatportName   = "beatport"
	FacebookName   = "facebook"
)

const youtubeChannelFragment = "channel/"

var (
	youtubeMatchers    = []string{"youtube.com", "youtu.be"}
	soundcloudMatchers = []string{"soundcloud.com", "soundcloud.app.goo.gl"}
	mixcloudMatchers   = []string{"mixcloud.com"}
	beatportMatchers   = []string{"beatport.com"}
)

// Page texts shown instead of the media.
var (
	YouTubeBlockedMarkers    = []string{"Video unavailable", "This video is private"}
	SoundCloudBlockedMarkers = []string{"We can't find that track", "not available in your country"}
	MixcloudBlockedMarkers   = []string{"This upload is not available", "Page Not Found"}
	BeatportBlockedMarkers   = []string{"Page not found"}
)

// NewYouTube returns the video provider. Channel pages have no single
// duration and are classified Unknown without a lookup.
func NewYouTube(lookup DurationLookup, logger utils.Logger) MediaProvider {
	p := newPageProvider(YouTubeName, youtubeMatchers, lookup, logger)
	p.skipLookup = func(url string) bool { return strings.Contains(url, youtubeChannelFragment) }
	return p
}

// NewSoundCloud returns the SoundCloud audio provider.
func NewSoundCloud(fetcher PageFetcher, logger utils.Logger) MediaProvider {
	return newPageProvider(SoundCloudName, soundcloudMatchers,
		PageLookup{Fetcher: fetcher, BlockedMarkers: SoundCloudBlockedMarkers}, logger)
}

// NewMixcloud returns the Mixcloud audio provider.
func NewMixcloud(fetcher PageFetcher, logger utils.Logger) MediaProvider {
	return newPageProvider(MixcloudName, mixcloudMatchers,
		PageLookup{Fetcher: fetcher, BlockedMarkers: MixcloudBlockedMarkers}, logger)
}

// NewBeatport returns the Beatport store provider.
func NewBeatport(fetcher PageFetcher, logger utils.Logger) MediaProvider {
	return newPageProvider(BeatportName, beatportMatchers,
		PageLookup{Fetcher: fetcher, BlockedMarkers: BeatportBlockedMarkers}, logger)
}
