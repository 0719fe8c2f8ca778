//go:build linux && cgo

package media

import (
	"fmt"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"

	"github.com/lumora-app/lumora/internal/util"
)

// Capture opens the microphone, and the camera when wantsVideo is set, via
// pion/mediadevices (V4L2 + malgo). Failure to open a requested device
// reports ErrDeviceUnavailable.
func Capture(wantsVideo bool) (*LocalStream, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, err
	}
	vpxParams.BitRate = 1_500_000 // 1.5 Mbps

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, err
	}

	codecSelector := mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&vpxParams),
		mediadevices.WithAudioEncoders(&opusParams),
	)

	constraints := mediadevices.MediaStreamConstraints{
		Codec: codecSelector,
		Audio: func(_ *mediadevices.MediaTrackConstraints) {},
	}
	if wantsVideo {
		constraints.Video = func(c *mediadevices.MediaTrackConstraints) {
			// Exclude MJPEG — some cameras expose an MJPEG V4L2 node that
			// produces malformed JPEG frames, which poisons the VP8 encoder.
			c.FrameFormat = prop.FrameFormatOneOf{
				frame.FormatYUYV,
				frame.FormatI420,
				frame.FormatI444,
				frame.FormatRGBA,
			}
			c.Width = prop.IntRanged{Max: 640}
			c.Height = prop.IntRanged{Max: 480}
		}
	}

	stream, err := mediadevices.GetUserMedia(constraints)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	var tracks []*Track
	for _, t := range stream.GetTracks() {
		t.OnEnded(func(err error) {
			if err != nil {
				util.LogWarning("media: local track ended: %v", err)
			}
		})
		track := t
		tracks = append(tracks, NewTrack(track, track.Kind(), func() {
			if err := track.Close(); err != nil {
				util.LogWarning("media: close track: %v", err)
			}
		}))
	}
	util.LogInfo("media: captured %d local track(s)", len(tracks))

	ls := NewLocalStream(tracks...)
	ls.configure = func(engine *webrtc.MediaEngine) {
		codecSelector.Populate(engine)
	}
	return ls, nil
}
