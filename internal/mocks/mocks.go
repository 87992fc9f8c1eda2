// Package mocks provides test doubles for the collaborator interfaces in
// internal/types.
package mocks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockChatCompleter is a mock implementation of types.ChatCompleter
type MockChatCompleter struct {
	mock.Mock
}

func (m *MockChatCompleter) ChatCompletion(systemPrompt, userPrompt string) (string, error) {
	args := m.Called(systemPrompt, userPrompt)
	return args.String(0), args.Error(1)
}

// MockProjectStore is a mock implementation of types.ProjectStore
type MockProjectStore struct {
	mock.Mock
}

func (m *MockProjectStore) ReadJSON(path string, v any) error {
	args := m.Called(path, v)
	return args.Error(0)
}

func (m *MockProjectStore) WriteJSON(path string, v any) error {
	args := m.Called(path, v)
	return args.Error(0)
}

func (m *MockProjectStore) ModTime(path string) (time.Time, error) {
	args := m.Called(path)
	return args.Get(0).(time.Time), args.Error(1)
}

// FakeMedia is an in-memory types.MediaProcessor. Files are names in a
// duration table; every operation registers its outputs with the durations a
// real encoder would produce.
type FakeMedia struct {
	mu        sync.Mutex
	durations map[string]float64
	failOps   map[string]error
	calls     []string
	concats   [][]string
	seq       int
}

func NewFakeMedia() *FakeMedia {
	return &FakeMedia{
		durations: make(map[string]float64),
		failOps:   make(map[string]error),
	}
}

// Add registers a file with its duration.
func (f *FakeMedia) Add(path string, duration float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.durations[path] = duration
}

// Fail makes op (duration, trim, concat, split, fade, mux) return err.
func (f *FakeMedia) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOps[op] = err
}

// Calls returns the operations performed so far, in order.
func (f *FakeMedia) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// ConcatInputs returns the input lists of every Concat call, in order.
func (f *FakeMedia) ConcatInputs() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.concats...)
}

// Length returns the registered duration of path.
func (f *FakeMedia) Length(path string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.durations[path]
}

func (f *FakeMedia) begin(op string) error {
	f.calls = append(f.calls, op)
	return f.failOps[op]
}

func (f *FakeMedia) lookup(path string) (float64, error) {
	d, ok := f.durations[path]
	if !ok {
		return 0, fmt.Errorf("fake media: no such file %q", path)
	}
	return d, nil
}

func (f *FakeMedia) output(op string, d float64) string {
	f.seq++
	path := fmt.Sprintf("%s_%d", op, f.seq)
	f.durations[path] = d
	return path
}

func (f *FakeMedia) Duration(ctx context.Context, path string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("duration"); err != nil {
		return 0, err
	}
	return f.lookup(path)
}

func (f *FakeMedia) Trim(ctx context.Context, path string, start, end float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("trim"); err != nil {
		return "", err
	}
	d, err := f.lookup(path)
	if err != nil {
		return "", err
	}
	if start < 0 || end <= start || end > d+1e-6 {
		return "", errors.New("fake media: trim out of range")
	}
	return f.output("trim", end-start), nil
}

func (f *FakeMedia) Concat(ctx context.Context, paths []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("concat"); err != nil {
		return "", err
	}
	f.concats = append(f.concats, append([]string(nil), paths...))
	total := 0.0
	for _, p := range paths {
		d, err := f.lookup(p)
		if err != nil {
			return "", err
		}
		total += d
	}
	return f.output("concat", total), nil
}

func (f *FakeMedia) Split(ctx context.Context, path string, position float64) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("split"); err != nil {
		return "", "", err
	}
	d, err := f.lookup(path)
	if err != nil {
		return "", "", err
	}
	if position <= 0 || position >= d {
		return "", "", errors.New("fake media: split out of range")
	}
	return f.output("head", position), f.output("tail", d-position), nil
}

func (f *FakeMedia) AudioCutFade(ctx context.Context, path string, start, length, fadeIn, fadeOut float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("fade"); err != nil {
		return "", err
	}
	if _, err := f.lookup(path); err != nil {
		return "", err
	}
	return f.output("fade", length), nil
}

func (f *FakeMedia) AddAudioToVideo(ctx context.Context, videoPath, audioPath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("mux"); err != nil {
		return "", err
	}
	if _, err := f.lookup(videoPath); err != nil {
		return "", err
	}
	d, err := f.lookup(audioPath)
	if err != nil {
		return "", err
	}
	return f.output("mux", d), nil
}
