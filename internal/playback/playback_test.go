package playback

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ertugrulornek7-byte/zilseker/internal/capture"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type publishedMessage struct {
	topic   string
	payload []byte
}

type fakePublisher struct {
	messages []publishedMessage
	err      error
}

func (f *fakePublisher) Publish(topic string, _ byte, _ bool, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, publishedMessage{topic: topic, payload: payload})
	return nil
}

func TestVolumeLevel(t *testing.T) {
	assert.Equal(t, 0.5, VolumeLevel(50))
	assert.Equal(t, 1.0, VolumeLevel(100))
	assert.Equal(t, 0.0, VolumeLevel(-3))
	assert.Equal(t, 1.0, VolumeLevel(180))
}

func TestMQTTPlayer_Commands(t *testing.T) {
	pub := &fakePublisher{}
	p := NewMQTTPlayer(pub, "zil", "station-1", 1, zap.NewNop())
	assert.Equal(t, "zil/station-1/speaker", p.Topic())

	require.NoError(t, Start(p, "https://cdn.example.com/bell.mp3", 80))
	require.NoError(t, Halt(p))

	require.Len(t, pub.messages, 5)
	var actions []string
	for _, m := range pub.messages {
		assert.Equal(t, "zil/station-1/speaker", m.topic)
		var cmd Command
		require.NoError(t, json.Unmarshal(m.payload, &cmd))
		assert.Equal(t, "station-1", cmd.StationID)
		actions = append(actions, cmd.Action)
	}
	assert.Equal(t, []string{ActionLoad, ActionVolume, ActionPlay, ActionPause, ActionSeek}, actions)

	var volume Command
	require.NoError(t, json.Unmarshal(pub.messages[1].payload, &volume))
	require.NotNil(t, volume.Volume)
	assert.Equal(t, 0.8, *volume.Volume)
}

func TestMQTTPlayer_PublishFailure(t *testing.T) {
	p := NewMQTTPlayer(&fakePublisher{err: errors.New("not connected")}, "", "s", 0, zap.NewNop())
	assert.Equal(t, "zil/s/speaker", p.Topic())

	err := p.Play()
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
}

func TestDryPlayer(t *testing.T) {
	p := NewDryPlayer(zap.NewNop())
	require.NoError(t, Start(p, "bell.mp3", 30))
	assert.True(t, p.Playing())
	assert.Equal(t, "bell.mp3", p.Source())
	assert.Equal(t, 0.3, p.Volume())

	require.NoError(t, Halt(p))
	assert.False(t, p.Playing())
}

func TestSoundCache_Download(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Path == "/missing.mp3" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("ID3-bell"))
	}))
	defer srv.Close()

	cache := NewSoundCache(t.TempDir(), zap.NewNop())
	ctx := context.Background()

	local, err := cache.Resolve(ctx, srv.URL+"/bell.mp3")
	require.NoError(t, err)
	assert.Equal(t, ".mp3", local[len(local)-4:])

	data, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, "ID3-bell", string(data))

	again, err := cache.Resolve(ctx, srv.URL+"/bell.mp3")
	require.NoError(t, err)
	assert.Equal(t, local, again)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	_, err = cache.Resolve(ctx, srv.URL+"/missing.mp3")
	assert.Error(t, err)
}

func TestSoundCache_DataURLAndPassthrough(t *testing.T) {
	cache := NewSoundCache(t.TempDir(), zap.NewNop())
	ctx := context.Background()

	ref := capture.Blob{Data: []byte("OggS"), MIME: "audio/ogg"}.DataURL()
	local, err := cache.Resolve(ctx, ref)
	require.NoError(t, err)
	data, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, "OggS", string(data))

	got, err := cache.Resolve(ctx, "/srv/sounds/bell.mp3")
	require.NoError(t, err)
	assert.Equal(t, "/srv/sounds/bell.mp3", got)

	disabled := NewSoundCache("", zap.NewNop())
	got, err = disabled.Resolve(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, ref, got)
}

func TestSoundCache_LookupDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		_, _ = w.Write([]byte("ID3-bell"))
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(unblock)

	cache := NewSoundCache(t.TempDir(), zap.NewNop())
	ctx := context.Background()
	ref := srv.URL + "/bell.mp3"

	start := time.Now()
	assert.Equal(t, ref, cache.Lookup(ctx, ref))
	assert.Equal(t, ref, cache.Lookup(ctx, ref))
	assert.Less(t, time.Since(start), time.Second)

	unblock()
	assert.Eventually(t, func() bool {
		return cache.Lookup(ctx, ref) != ref
	}, 3*time.Second, 20*time.Millisecond)

	// 两次 Lookup 只触发一次下载
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestSoundCache_ConcurrentResolveDownloadsOnce(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		time.Sleep(100 * time.Millisecond)
		_, _ = w.Write([]byte("ID3-bell"))
	}))
	defer srv.Close()

	cache := NewSoundCache(t.TempDir(), zap.NewNop())
	ref := srv.URL + "/bell.mp3"

	var wg sync.WaitGroup
	paths := make([]string, 4)
	for i := range paths {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := cache.Resolve(context.Background(), ref)
			assert.NoError(t, err)
			paths[i] = p
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	for _, p := range paths {
		assert.Equal(t, paths[0], p)
	}
}

func TestSoundCache_FailedPrefetchIsNotRetriedImmediately(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	cache := NewSoundCache(t.TempDir(), zap.NewNop())
	ctx := context.Background()
	ref := srv.URL + "/missing.mp3"

	assert.Equal(t, ref, cache.Lookup(ctx, ref))
	assert.Eventually(t, func() bool {
		cache.mu.Lock()
		defer cache.mu.Unlock()
		_, failed := cache.failed[ref]
		return failed
	}, 3*time.Second, 10*time.Millisecond)

	assert.Equal(t, ref, cache.Lookup(ctx, ref))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestSoundCache_HTTPClientLogsThroughZap(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	ref := srv.URL + "/bell.mp3"
	srv.Close()

	core, logs := observer.New(zapcore.DebugLevel)
	cache := NewSoundCache(t.TempDir(), zap.New(core))
	cache.httpClient.SetRetryCount(1).SetRetryWaitTime(10 * time.Millisecond)

	_, err := cache.Resolve(context.Background(), ref)
	require.Error(t, err)

	// 重试告警来自 resty，经由 zap 输出
	assert.NotEmpty(t, logs.FilterLevelExact(zapcore.WarnLevel).FilterMessageSnippet("Attempt").All())
}
