package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/voicememo/internal/dictation"
)

type fakeReviewer struct {
	state     dictation.State
	processed int
	cancelled int
}

func (f *fakeReviewer) State() dictation.State { return f.state }

func (f *fakeReviewer) ProcessAndSave(context.Context) error {
	f.processed++
	f.state = dictation.ProcessedSaved
	return nil
}

func (f *fakeReviewer) SavePlain() error {
	f.state = dictation.PlainSaved
	return nil
}

func (f *fakeReviewer) Cancel() {
	f.cancelled++
	f.state = dictation.Discarded
}

func feed(lines ...string) <-chan string {
	ch := make(chan string, len(lines))
	for _, l := range lines {
		ch <- l
	}
	close(ch)
	return ch
}

func TestReview_ClosedInputDiscards(t *testing.T) {
	r := &fakeReviewer{state: dictation.Reviewing}
	var out bytes.Buffer

	require.NoError(t, review(context.Background(), r, feed(), &out))
	assert.Equal(t, dictation.Discarded, r.state)
	assert.Equal(t, 1, r.cancelled)
	assert.Equal(t, 1, strings.Count(out.String(), "[p]rocess"))
}

func TestReview_Choices(t *testing.T) {
	r := &fakeReviewer{state: dictation.Reviewing}
	require.NoError(t, review(context.Background(), r, feed("x", " P "), &bytes.Buffer{}))
	assert.Equal(t, dictation.ProcessedSaved, r.state)
	assert.Equal(t, 1, r.processed)

	r = &fakeReviewer{state: dictation.Reviewing}
	require.NoError(t, review(context.Background(), r, feed("s"), &bytes.Buffer{}))
	assert.Equal(t, dictation.PlainSaved, r.state)
	assert.Zero(t, r.cancelled)
}

func TestReview_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &fakeReviewer{state: dictation.Reviewing}

	err := review(ctx, r, make(chan string), &bytes.Buffer{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, dictation.Discarded, r.state)
}
