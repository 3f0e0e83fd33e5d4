package call

import (
	"errors"
	"fmt"
	"sync"
	"time"

	pionwebrtc "github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

var (
	ErrPermissionDenied  = errors.New("media permission denied")
	ErrDeviceUnavailable = errors.New("media device unavailable")
	ErrNoLocalMedia      = errors.New("no local media captured")
)

// MediaDevices captures local audio, plus video when requested. Capture
// failures map onto ErrPermissionDenied or ErrDeviceUnavailable.
type MediaDevices interface {
	Capture(video bool) (*LocalMedia, error)
}

// LocalMedia holds the outgoing tracks for one call. Video is nil on
// audio-only calls. Tracks stay attached to the peer connection for the
// whole call; muting is a flag checked on every sample write.
type LocalMedia struct {
	Audio *pionwebrtc.TrackLocalStaticSample
	Video *pionwebrtc.TrackLocalStaticSample

	mu           sync.Mutex
	audioEnabled bool
	videoEnabled bool
	stopped      bool
}

func (l *LocalMedia) AudioEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.audioEnabled
}

func (l *LocalMedia) VideoEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.videoEnabled && l.Video != nil
}

// ToggleAudio flips the mute flag and reports the new enabled state.
func (l *LocalMedia) ToggleAudio() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.audioEnabled = !l.audioEnabled
	return l.audioEnabled
}

func (l *LocalMedia) ToggleVideo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Video == nil {
		return false
	}
	l.videoEnabled = !l.videoEnabled
	return l.videoEnabled
}

// WriteAudioSample forwards one captured sample unless audio is muted or
// the media has been stopped.
func (l *LocalMedia) WriteAudioSample(data []byte, duration time.Duration) error {
	l.mu.Lock()
	ok := l.audioEnabled && !l.stopped
	l.mu.Unlock()
	if !ok {
		return nil
	}
	return l.Audio.WriteSample(media.Sample{Data: data, Duration: duration})
}

func (l *LocalMedia) WriteVideoSample(data []byte, duration time.Duration) error {
	l.mu.Lock()
	ok := l.videoEnabled && !l.stopped && l.Video != nil
	l.mu.Unlock()
	if !ok {
		return nil
	}
	return l.Video.WriteSample(media.Sample{Data: data, Duration: duration})
}

// Stop releases the capture. Safe to call any number of times; every
// call-teardown path runs it unconditionally.
func (l *LocalMedia) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = true
	l.audioEnabled = false
	l.videoEnabled = false
}

// SampleDevices builds sample-fed tracks. Callers pump captured frames in
// through WriteAudioSample/WriteVideoSample.
type SampleDevices struct{}

func (SampleDevices) Capture(video bool) (*LocalMedia, error) {
	audio, err := pionwebrtc.NewTrackLocalStaticSample(
		pionwebrtc.RTPCodecCapability{MimeType: pionwebrtc.MimeTypeOpus}, "audio", "courier")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	out := &LocalMedia{Audio: audio, audioEnabled: true}
	if video {
		v, err := pionwebrtc.NewTrackLocalStaticSample(
			pionwebrtc.RTPCodecCapability{MimeType: pionwebrtc.MimeTypeVP8}, "video", "courier")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		}
		out.Video = v
		out.videoEnabled = true
	}
	return out, nil
}
