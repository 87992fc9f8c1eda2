package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"magic-workflow/pkg/util"
)

// Track names a parallel media lane on a scene.
type Track string

const (
	TrackClip   Track = "clip"
	TrackZero   Track = "zero"
	TrackSecond Track = "second"
)

var Tracks = []Track{TrackClip, TrackZero, TrackSecond}

// MediaRef is the set of file slots one track carries.
type MediaRef struct {
	Video     string `json:"video"`
	Audio     string `json:"audio"`
	Image     string `json:"image"`
	ImageLast string `json:"image_last"`
}

func (m MediaRef) IsEmpty() bool {
	return m == MediaRef{}
}

// Scene is one timeline entry of scenes.json.
//
// The descriptive fields are opaque to the workflow: plain strings or
// structured values produced by text generation. They may arrive JSON
// encoded several times over and are collapsed by NormalizeFields.
// Keys this type does not know about are kept in Extra and written back.
type Scene struct {
	ID      int    `json:"id"`
	Content string `json:"content"`

	Subject        any `json:"subject,omitempty"`
	VisualStart    any `json:"visual_start,omitempty"`
	VisualEnd      any `json:"visual_end,omitempty"`
	EraTime        any `json:"era_time,omitempty"`
	Environment    any `json:"environment,omitempty"`
	Cinematography any `json:"cinematography,omitempty"`
	SoundEffect    any `json:"sound_effect,omitempty"`
	Keywords       any `json:"keywords,omitempty"`
	Speaker        any `json:"speaker,omitempty"`
	SpeakerAction  any `json:"speaker_action,omitempty"`
	Mood           any `json:"mood,omitempty"`

	Clip          string `json:"clip,omitempty"`
	ClipAudio     string `json:"clip_audio,omitempty"`
	ClipImage     string `json:"clip_image,omitempty"`
	ClipImageLast string `json:"clip_image_last,omitempty"`

	Zero          string `json:"zero,omitempty"`
	ZeroAudio     string `json:"zero_audio,omitempty"`
	ZeroImage     string `json:"zero_image,omitempty"`
	ZeroImageLast string `json:"zero_image_last,omitempty"`

	Second          string `json:"second,omitempty"`
	SecondAudio     string `json:"second_audio,omitempty"`
	SecondImage     string `json:"second_image,omitempty"`
	SecondImageLast string `json:"second_image_last,omitempty"`

	// Duration caches the last measured length in seconds. It is never
	// persisted and must be refreshed before use.
	Duration float64 `json:"-"`

	Extra map[string]json.RawMessage `json:"-"`
}

type sceneAlias Scene

var knownSceneKeys = jsonKeysOf(reflect.TypeOf(sceneAlias{}))

func jsonKeysOf(t reflect.Type) map[string]struct{} {
	keys := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		name := strings.Split(tag, ",")[0]
		if name == "" || name == "-" {
			continue
		}
		keys[name] = struct{}{}
	}
	return keys
}

var errMissingSceneID = errors.New("scene: missing id")

// UnmarshalJSON validates the record: id must be present and integral and
// media slots must be strings.
func (s *Scene) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("scene: %w", err)
	}
	if _, ok := raw["id"]; !ok {
		return errMissingSceneID
	}

	var alias sceneAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return fmt.Errorf("scene: %w", err)
	}

	for key := range knownSceneKeys {
		delete(raw, key)
	}
	alias.Extra = nil
	if len(raw) > 0 {
		alias.Extra = raw
	}
	*s = Scene(alias)
	return nil
}

// MarshalJSON leaves <, > and & unescaped so scene text reads as written in
// scenes.json.
func (s Scene) MarshalJSON() ([]byte, error) {
	data, err := marshalNoEscape(sceneAlias(s))
	if err != nil {
		return nil, err
	}
	if len(s.Extra) == 0 {
		return data, nil
	}

	keys := make([]string, 0, len(s.Extra))
	for key := range s.Extra {
		if _, known := knownSceneKeys[key]; known {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.Write(data[:len(data)-1])
	for _, key := range keys {
		name, err := marshalNoEscape(key)
		if err != nil {
			return nil, err
		}
		value := s.Extra[key]
		if len(bytes.TrimSpace(value)) == 0 {
			value = json.RawMessage("null")
		}
		buf.WriteByte(',')
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// NormalizeFields collapses multiply encoded descriptive fields in place.
func (s *Scene) NormalizeFields(maxRounds int) {
	for _, field := range s.descriptiveFields() {
		*field = util.NormalizeJSONValue(*field, maxRounds)
	}
}

func (s *Scene) descriptiveFields() []*any {
	return []*any{
		&s.Subject, &s.VisualStart, &s.VisualEnd, &s.EraTime, &s.Environment,
		&s.Cinematography, &s.SoundEffect, &s.Keywords, &s.Speaker, &s.SpeakerAction, &s.Mood,
	}
}

// Media returns the slots of one track.
func (s *Scene) Media(track Track) MediaRef {
	switch track {
	case TrackZero:
		return MediaRef{Video: s.Zero, Audio: s.ZeroAudio, Image: s.ZeroImage, ImageLast: s.ZeroImageLast}
	case TrackSecond:
		return MediaRef{Video: s.Second, Audio: s.SecondAudio, Image: s.SecondImage, ImageLast: s.SecondImageLast}
	default:
		return MediaRef{Video: s.Clip, Audio: s.ClipAudio, Image: s.ClipImage, ImageLast: s.ClipImageLast}
	}
}

func (s *Scene) SetMedia(track Track, ref MediaRef) {
	switch track {
	case TrackZero:
		s.Zero, s.ZeroAudio, s.ZeroImage, s.ZeroImageLast = ref.Video, ref.Audio, ref.Image, ref.ImageLast
	case TrackSecond:
		s.Second, s.SecondAudio, s.SecondImage, s.SecondImageLast = ref.Video, ref.Audio, ref.Image, ref.ImageLast
	default:
		s.Clip, s.ClipAudio, s.ClipImage, s.ClipImageLast = ref.Video, ref.Audio, ref.Image, ref.ImageLast
	}
}

// DurationSource is the file whose length defines the scene: the narration
// audio when present, the clip video otherwise.
func (s *Scene) DurationSource() string {
	if s.ClipAudio != "" {
		return s.ClipAudio
	}
	return s.Clip
}

// Clone returns a deep copy.
func (s *Scene) Clone() *Scene {
	c := *s
	for _, field := range c.descriptiveFields() {
		*field = copyValue(*field)
	}
	if s.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(s.Extra))
		for key, value := range s.Extra {
			c.Extra[key] = append(json.RawMessage(nil), value...)
		}
	}
	return &c
}

func copyValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, item := range typed {
			out[k] = copyValue(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}

// GroupOf returns the story group of id, rounding toward negative infinity.
func GroupOf(id, factor int) int {
	if factor <= 0 {
		return id
	}
	q := id / factor
	if id%factor != 0 && id < 0 {
		q--
	}
	return q
}
