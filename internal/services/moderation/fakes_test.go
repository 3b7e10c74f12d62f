package moderation

import (
	"context"
	"sync"

	"github.com/ivankudzin/brokerreviews/internal/domain/model"
	"github.com/ivankudzin/brokerreviews/internal/infra/telegram"
)

type fakeChannel struct {
	mu    sync.Mutex
	sent  []string
	errs  []error
	calls int
}

func (f *fakeChannel) Send(_ context.Context, text string) (telegram.MessageID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return 0, err
		}
	}
	f.sent = append(f.sent, text)
	return telegram.MessageID(len(f.sent)), nil
}

func (f *fakeChannel) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type fakePublisher struct {
	mu        sync.Mutex
	published []model.Review
}

func (f *fakePublisher) PublishDecision(_ context.Context, review model.Review) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, review)
	return nil
}
