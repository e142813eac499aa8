package jetpush

import (
	"sync"

	"github.com/arloliu/jetpush/internal/metrics"
	"github.com/nats-io/nats.go"
)

type fakeSub struct {
	mu           sync.Mutex
	valid        bool
	unsubscribed int
	drained      int
	err          error

	// holdDrain keeps the handle valid after Drain until released.
	holdDrain bool
}

func newFakeSub() *fakeSub { return &fakeSub{valid: true} }

func (s *fakeSub) Unsubscribe() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubscribed++
	s.valid = false

	return s.err
}

func (s *fakeSub) Drain() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drained++
	if !s.holdDrain {
		s.valid = false
	}

	return s.err
}

func (s *fakeSub) finishDrain() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.valid = false
}

func (s *fakeSub) drainCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.drained
}

func (s *fakeSub) IsValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.valid
}

func (s *fakeSub) unsubscribeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.unsubscribed
}

type subscribeCall struct {
	subject string
	queue   string
	cb      nats.MsgHandler
	sub     *fakeSub
}

// fakeConsumerAPI records JetStream calls. Streams are resolved from the first
// token of the subject.
type fakeConsumerAPI struct {
	mu        sync.Mutex
	streamErr error
	addErr    error
	subErr    error
	existing  map[string]*nats.ConsumerInfo
	added     []nats.ConsumerConfig
	subs      []subscribeCall

	// onSubscribe runs after a subscription is created, before it is returned.
	onSubscribe func()
}

func newFakeConsumerAPI() *fakeConsumerAPI {
	return &fakeConsumerAPI{existing: map[string]*nats.ConsumerInfo{}}
}

func (f *fakeConsumerAPI) StreamNameBySubject(subject string) (string, error) {
	if f.streamErr != nil {
		return "", f.streamErr
	}

	return "STREAM", nil
}

func (f *fakeConsumerAPI) ConsumerInfo(_, consumer string) (*nats.ConsumerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if info, ok := f.existing[consumer]; ok {
		return info, nil
	}

	return nil, nats.ErrConsumerNotFound
}

func (f *fakeConsumerAPI) AddConsumer(_ string, cfg *nats.ConsumerConfig) (*nats.ConsumerInfo, error) {
	if f.addErr != nil {
		return nil, f.addErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, *cfg)

	return &nats.ConsumerInfo{Config: *cfg}, nil
}

func (f *fakeConsumerAPI) Subscribe(subject, queue string, cb nats.MsgHandler, _ ...nats.SubOpt) (subscriptionHandle, error) {
	if f.subErr != nil {
		return nil, f.subErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	sub := newFakeSub()
	f.subs = append(f.subs, subscribeCall{subject: subject, queue: queue, cb: cb, sub: sub})
	onSubscribe := f.onSubscribe
	f.mu.Unlock()

	if onSubscribe != nil {
		onSubscribe()
	}
	f.mu.Lock()

	return sub, nil
}

func (f *fakeConsumerAPI) lastAdded() nats.ConsumerConfig {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.added[len(f.added)-1]
}

func (f *fakeConsumerAPI) lastSub() subscribeCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.subs[len(f.subs)-1]
}

// recordingMetrics captures registration and dispatch metrics.
type recordingMetrics struct {
	metrics.NopMetrics

	mu            sync.Mutex
	registrations map[string][]bool
	outcomes      []string
	active        int
	drains        []bool
	transitions   [][2]State
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{registrations: map[string][]bool{}}
}

func (r *recordingMetrics) RecordRegistration(consumer string, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registrations[consumer] = append(r.registrations[consumer], success)
}

func (r *recordingMetrics) SetActiveConsumers(count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = count
}

func (r *recordingMetrics) RecordMessage(_ string, outcome string, _ float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *recordingMetrics) RecordDrain(_ float64, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drains = append(r.drains, success)
}

func (r *recordingMetrics) RecordStateTransition(from, to State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, [2]State{from, to})
}

func (r *recordingMetrics) snapshotOutcomes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.outcomes...)
}
