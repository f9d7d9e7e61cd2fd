package fetcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/brickpulse/brickpulse/pkg/errors"
	"github.com/brickpulse/brickpulse/scraper/renderer"
)

// fakeSession serves a scripted sequence of markup reads.
type fakeSession struct {
	reads  []string
	cursor int
	closed bool
}

func (s *fakeSession) HTML(ctx context.Context) (string, error) {
	if s.cursor >= len(s.reads) {
		return s.reads[len(s.reads)-1], nil
	}
	markup := s.reads[s.cursor]
	s.cursor++
	return markup, nil
}

func (s *fakeSession) Close() { s.closed = true }

type fakeRenderer struct {
	session *fakeSession
	openErr error
	lastURL string
}

func (r *fakeRenderer) Open(ctx context.Context, url string) (renderer.Session, error) {
	r.lastURL = url
	if r.openErr != nil {
		return nil, r.openErr
	}
	return r.session, nil
}

func instantSleep(ctx context.Context, d time.Duration) {}

func TestFetch_ReturnsMarkupOnceMarkerAppears(t *testing.T) {
	sess := &fakeSession{reads: []string{
		"<html>still loading</html>",
		"<html>still loading</html>",
		"<html>data.addRows([rows]);</html>",
	}}
	r := &fakeRenderer{session: sess}
	f := New(r, Options{Sleep: instantSleep})

	markup, err := f.Fetch(context.Background(), "SW0091")
	require.NoError(t, err)
	assert.Contains(t, markup, "data.addRows([")
	assert.Equal(t, "https://www.brickeconomy.com/minifig/SW0091", r.lastURL)
	assert.True(t, sess.closed, "session must be torn down on success")
}

func TestFetch_TimesOutAfterBudget(t *testing.T) {
	debugDir := t.TempDir()
	sess := &fakeSession{reads: []string{"<html>never ready</html>"}}
	f := New(&fakeRenderer{session: sess}, Options{
		Attempts: 5,
		Sleep:    instantSleep,
		DebugDir: debugDir,
	})

	_, err := f.Fetch(context.Background(), "SW0091")
	require.Error(t, err)
	code, ok := apperrors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeRenderTimeout, code)
	assert.True(t, apperrors.IsRetryable(err))
	assert.True(t, sess.closed, "session must be torn down on timeout")

	// The last observed markup is preserved for operator debugging.
	snapshot, err := os.ReadFile(filepath.Join(debugDir, "debug_timeout_SW0091.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html>never ready</html>", string(snapshot))
}

func TestFetch_RendererErrorIsClassified(t *testing.T) {
	f := New(&fakeRenderer{openErr: errors.New("net::ERR_CONNECTION_RESET")}, Options{Sleep: instantSleep})

	_, err := f.Fetch(context.Background(), "SW0091")
	require.Error(t, err)
	code, ok := apperrors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeRenderError, code)
	assert.True(t, apperrors.IsRetryable(err))
}

func TestFetch_CancelledContextAbortsPolling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sess := &fakeSession{reads: []string{"<html>never ready</html>"}}
	f := New(&fakeRenderer{session: sess}, Options{Attempts: 30, Sleep: instantSleep})

	_, err := f.Fetch(ctx, "SW0091")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, sess.closed)
}

func TestFetch_DefaultsBoundThePoll(t *testing.T) {
	f := New(&fakeRenderer{session: &fakeSession{reads: []string{""}}}, Options{Sleep: instantSleep})
	assert.Equal(t, 30, f.opts.Attempts)
	assert.Equal(t, time.Second, f.opts.Interval)
}
