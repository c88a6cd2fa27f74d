package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockJobProcessor is a mock implementation of JobProcessor
type MockJobProcessor struct {
	mock.Mock
}

func (m *MockJobProcessor) ProcessJobs(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type fakeGCer struct {
	calls int
	err   error
}

func (f *fakeGCer) RunGC() error {
	f.calls++
	return f.err
}

// TestWorker_StartStop tests the worker start and stop functionality
func TestWorker_StartStop(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(250 * time.Millisecond)

	worker.Stop()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

// TestWorker_ContextCancellation tests worker stops on context cancellation
func TestWorker_ContextCancellation(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(150 * time.Millisecond)

	cancel()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

func TestGCProcessor_NoRewriteIsNotAnError(t *testing.T) {
	gc := &fakeGCer{err: badger.ErrNoRewrite}
	processor := NewGCProcessor(gc)

	err := processor.ProcessJobs(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, gc.calls)
}

func TestGCProcessor_PropagatesRealErrors(t *testing.T) {
	cause := errors.New("disk failure")
	gc := &fakeGCer{err: cause}
	processor := NewGCProcessor(gc)

	err := processor.ProcessJobs(context.Background())
	assert.ErrorIs(t, err, cause)
}

func TestGCProcessor_Success(t *testing.T) {
	gc := &fakeGCer{}
	processor := NewGCProcessor(gc)

	assert.NoError(t, processor.ProcessJobs(context.Background()))
}
