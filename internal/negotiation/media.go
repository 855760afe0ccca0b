package negotiation

import (
	"context"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// opus-кадр тишины, 20ms
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// StaticMedia — синтетические треки для CLI: opus аудио и vp8 видео.
// Аудио несёт тишину, видео пустое.
type StaticMedia struct {
	audio *webrtc.TrackLocalStaticSample
	video *webrtc.TrackLocalStaticSample
}

func NewStaticMedia(streamID string) (*StaticMedia, error) {
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", streamID)
	if err != nil {
		return nil, err
	}
	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", streamID)
	if err != nil {
		return nil, err
	}
	return &StaticMedia{audio: audio, video: video}, nil
}

func (m *StaticMedia) Tracks() []Track {
	return []Track{m.audio, m.video}
}

// Run пишет тишину в аудиотрек до отмены ctx.
func (m *StaticMedia) Run(ctx context.Context) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := m.audio.WriteSample(media.Sample{Data: opusSilence, Duration: 20 * time.Millisecond}); err != nil {
				return err
			}
		}
	}
}
