package jetpush

import (
	"errors"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// Consumer defaults applied by NewConsumerSpecBuilder and handler registration.
const (
	DefaultMaxDeliver = 3
	DefaultAckWait    = 30 * time.Second

	// UnlimitedDeliver lets the server redeliver a message forever.
	UnlimitedDeliver = -1
)

// ConsumerSpec describes one durable JetStream consumer.
//
// Fields map onto the nats.ConsumerConfig fields of the same name, except that a
// single filter subject is sent as FilterSubject. Prefer NewConsumerSpecBuilder, which
// applies the documented defaults (explicit ack, deliver all, instant replay,
// three deliveries, 30s ack wait); the zero values of the nats policy enums are
// not those defaults.
type ConsumerSpec struct {
	Durable           string
	FilterSubjects    []string
	AckPolicy         nats.AckPolicy
	AckWait           time.Duration
	DeliverPolicy     nats.DeliverPolicy
	OptStartSeq       uint64
	OptStartTime      *time.Time
	Description       string
	InactiveThreshold time.Duration
	MaxAckPending     int
	MaxDeliver        int
	ReplayPolicy      nats.ReplayPolicy
	Replicas          int
	MemoryStorage     bool
	SampleFrequency   string
}

// Validate checks every rule in one pass.
//
// Returns:
//   - error: Joined *ConfigError values, nil if valid
func (s ConsumerSpec) Validate() error {
	var errs []error

	if strings.ContainsAny(s.Durable, " \t\r\n*>.") {
		errs = append(errs, newConfigError("durable", "%q is not a valid consumer name", s.Durable))
	}
	if len(s.FilterSubjects) == 0 {
		errs = append(errs, newConfigError("filterSubjects", "at least one filter subject is required"))
	}
	for i, subj := range s.FilterSubjects {
		if strings.TrimSpace(subj) == "" || strings.ContainsAny(subj, " \t\r\n") {
			errs = append(errs, newConfigError("filterSubjects", "entry %d %q is not a valid subject", i, subj))
		}
	}

	switch s.DeliverPolicy {
	case nats.DeliverByStartSequencePolicy:
		if s.OptStartSeq == 0 {
			errs = append(errs, newConfigError("optStartSeq", "must be > 0 with deliver policy %s", deliverPolicyName(s.DeliverPolicy)))
		}
		if s.OptStartTime != nil {
			errs = append(errs, newConfigError("optStartTime", "must not be set with deliver policy %s", deliverPolicyName(s.DeliverPolicy)))
		}
	case nats.DeliverByStartTimePolicy:
		if s.OptStartTime == nil {
			errs = append(errs, newConfigError("optStartTime", "is required with deliver policy %s", deliverPolicyName(s.DeliverPolicy)))
		}
		if s.OptStartSeq != 0 {
			errs = append(errs, newConfigError("optStartSeq", "must not be set with deliver policy %s", deliverPolicyName(s.DeliverPolicy)))
		}
	default:
		if s.OptStartSeq != 0 {
			errs = append(errs, newConfigError("optStartSeq", "only valid with deliver policy by_start_sequence"))
		}
		if s.OptStartTime != nil {
			errs = append(errs, newConfigError("optStartTime", "only valid with deliver policy by_start_time"))
		}
	}

	if s.AckWait < 0 {
		errs = append(errs, newConfigError("ackWait", "must be >= 0, got %v", s.AckWait))
	}
	if s.InactiveThreshold < 0 {
		errs = append(errs, newConfigError("inactiveThreshold", "must be >= 0, got %v", s.InactiveThreshold))
	}
	if s.MaxDeliver == 0 || s.MaxDeliver < UnlimitedDeliver {
		errs = append(errs, newConfigError("maxDeliver", "must be %d (unlimited) or > 0, got %d", UnlimitedDeliver, s.MaxDeliver))
	}
	if s.MaxAckPending < -1 {
		errs = append(errs, newConfigError("maxAckPending", "must be >= -1, got %d", s.MaxAckPending))
	}
	if s.Replicas < 0 {
		errs = append(errs, newConfigError("replicas", "must be >= 0, got %d", s.Replicas))
	}
	if !validSampleFrequency(s.SampleFrequency) {
		errs = append(errs, newConfigError("sampleFrequency", "must be empty or a percentage 0-100, got %q", s.SampleFrequency))
	}

	return errors.Join(errs...)
}

// ConsumerConfig translates the spec into the broker-facing consumer configuration.
//
// Deliver subject and group come from push. The consumer Name is set to the push
// subscriber name only when Durable is empty.
//
// Parameters:
//   - push: Push delivery parameters, may be nil
//
// Returns:
//   - nats.ConsumerConfig: Configuration for JetStreamContext.AddConsumer
func (s ConsumerSpec) ConsumerConfig(push *PushSubscriberSpec) nats.ConsumerConfig {
	cfg := nats.ConsumerConfig{
		Durable:           s.Durable,
		Description:       s.Description,
		DeliverPolicy:     s.DeliverPolicy,
		OptStartSeq:       s.OptStartSeq,
		AckPolicy:         s.AckPolicy,
		AckWait:           s.AckWait,
		MaxDeliver:        s.MaxDeliver,
		ReplayPolicy:      s.ReplayPolicy,
		SampleFrequency:   s.SampleFrequency,
		MaxAckPending:     s.MaxAckPending,
		InactiveThreshold: s.InactiveThreshold,
		Replicas:          s.Replicas,
		MemoryStorage:     s.MemoryStorage,
	}

	if s.OptStartTime != nil {
		t := *s.OptStartTime
		cfg.OptStartTime = &t
	}

	// A single subject uses FilterSubject so servers before 2.10 accept it.
	if len(s.FilterSubjects) == 1 {
		cfg.FilterSubject = s.FilterSubjects[0]
	} else {
		cfg.FilterSubjects = slices.Clone(s.FilterSubjects)
	}

	if push != nil {
		cfg.DeliverSubject = push.DeliverSubject
		cfg.DeliverGroup = push.DeliverGroup
		if s.Durable == "" {
			cfg.Name = push.Name
		}
	}

	return cfg
}

// ConsumerSpecBuilder assembles a ConsumerSpec with defaults and one-pass validation.
//
// Example:
//
//	spec, err := jetpush.NewConsumerSpecBuilder("orders-sub", "orders.created").
//	    MaxDeliver(5).
//	    AckWait(30 * time.Second).
//	    Build()
type ConsumerSpecBuilder struct {
	spec ConsumerSpec
}

// NewConsumerSpecBuilder starts a spec with the documented defaults.
//
// Parameters:
//   - durable: Durable consumer name, may be empty for an ephemeral named consumer
//   - filterSubjects: Subjects the consumer receives
func NewConsumerSpecBuilder(durable string, filterSubjects ...string) *ConsumerSpecBuilder {
	return &ConsumerSpecBuilder{spec: ConsumerSpec{
		Durable:        durable,
		FilterSubjects: slices.Clone(filterSubjects),
		AckPolicy:      nats.AckExplicitPolicy,
		AckWait:        DefaultAckWait,
		DeliverPolicy:  nats.DeliverAllPolicy,
		MaxDeliver:     DefaultMaxDeliver,
		ReplayPolicy:   nats.ReplayInstantPolicy,
	}}
}

// AckPolicy sets the acknowledgment policy.
func (b *ConsumerSpecBuilder) AckPolicy(p nats.AckPolicy) *ConsumerSpecBuilder {
	b.spec.AckPolicy = p
	return b
}

// AckWait sets how long the server waits for an ack before redelivering.
func (b *ConsumerSpecBuilder) AckWait(d time.Duration) *ConsumerSpecBuilder {
	b.spec.AckWait = d
	return b
}

// DeliverPolicy sets where delivery starts.
func (b *ConsumerSpecBuilder) DeliverPolicy(p nats.DeliverPolicy) *ConsumerSpecBuilder {
	b.spec.DeliverPolicy = p
	return b
}

// StartSequence starts delivery at seq and selects DeliverByStartSequencePolicy.
func (b *ConsumerSpecBuilder) StartSequence(seq uint64) *ConsumerSpecBuilder {
	b.spec.DeliverPolicy = nats.DeliverByStartSequencePolicy
	b.spec.OptStartSeq = seq

	return b
}

// StartTime starts delivery at t and selects DeliverByStartTimePolicy.
func (b *ConsumerSpecBuilder) StartTime(t time.Time) *ConsumerSpecBuilder {
	b.spec.DeliverPolicy = nats.DeliverByStartTimePolicy
	b.spec.OptStartTime = &t

	return b
}

// Description sets the consumer description.
func (b *ConsumerSpecBuilder) Description(desc string) *ConsumerSpecBuilder {
	b.spec.Description = desc
	return b
}

// InactiveThreshold sets how long an unbound consumer survives.
func (b *ConsumerSpecBuilder) InactiveThreshold(d time.Duration) *ConsumerSpecBuilder {
	b.spec.InactiveThreshold = d
	return b
}

// MaxAckPending limits outstanding unacknowledged messages.
func (b *ConsumerSpecBuilder) MaxAckPending(n int) *ConsumerSpecBuilder {
	b.spec.MaxAckPending = n
	return b
}

// MaxDeliver sets the delivery attempt limit; UnlimitedDeliver removes it.
func (b *ConsumerSpecBuilder) MaxDeliver(n int) *ConsumerSpecBuilder {
	b.spec.MaxDeliver = n
	return b
}

// ReplayPolicy sets the replay speed.
func (b *ConsumerSpecBuilder) ReplayPolicy(p nats.ReplayPolicy) *ConsumerSpecBuilder {
	b.spec.ReplayPolicy = p
	return b
}

// Replicas sets the consumer replica count; 0 inherits the stream's.
func (b *ConsumerSpecBuilder) Replicas(n int) *ConsumerSpecBuilder {
	b.spec.Replicas = n
	return b
}

// MemoryStorage keeps consumer state in memory.
func (b *ConsumerSpecBuilder) MemoryStorage(enabled bool) *ConsumerSpecBuilder {
	b.spec.MemoryStorage = enabled
	return b
}

// SampleFrequency sets the ack sampling rate, e.g. "50%".
func (b *ConsumerSpecBuilder) SampleFrequency(freq string) *ConsumerSpecBuilder {
	b.spec.SampleFrequency = freq
	return b
}

// Build validates and returns the spec.
//
// Returns:
//   - ConsumerSpec: Valid spec
//   - error: Joined configuration errors matching ErrConfiguration
func (b *ConsumerSpecBuilder) Build() (ConsumerSpec, error) {
	spec := b.spec
	spec.FilterSubjects = slices.Clone(spec.FilterSubjects)
	if err := spec.Validate(); err != nil {
		return ConsumerSpec{}, err
	}

	return spec, nil
}

// PushSubscriberSpec holds the push delivery parameters of a consumer.
type PushSubscriberSpec struct {
	// Name is the consumer display name, used as registry key when the durable name is empty.
	Name string

	// DeliverSubject is where the server pushes messages. Empty reuses the
	// existing consumer's subject or a fresh inbox.
	DeliverSubject string

	// DeliverGroup is the queue group. Subscribers sharing it load-share messages.
	DeliverGroup string
}

// Validate checks the push parameters.
func (p PushSubscriberSpec) Validate() error {
	var errs []error

	if strings.ContainsAny(p.DeliverSubject, " \t\r\n*>") {
		errs = append(errs, newConfigError("deliverSubject", "%q must be a literal subject", p.DeliverSubject))
	}
	if strings.ContainsAny(p.DeliverGroup, " \t\r\n*>.") {
		errs = append(errs, newConfigError("deliverGroup", "%q is not a valid queue group", p.DeliverGroup))
	}
	if strings.ContainsAny(p.Name, " \t\r\n*>.") {
		errs = append(errs, newConfigError("name", "%q is not a valid consumer name", p.Name))
	}

	return errors.Join(errs...)
}

// PushSubscriberSpecBuilder assembles a PushSubscriberSpec.
type PushSubscriberSpecBuilder struct {
	spec PushSubscriberSpec
}

// NewPushSubscriberSpecBuilder returns an empty builder.
func NewPushSubscriberSpecBuilder() *PushSubscriberSpecBuilder {
	return &PushSubscriberSpecBuilder{}
}

// Name sets the consumer display name.
func (b *PushSubscriberSpecBuilder) Name(name string) *PushSubscriberSpecBuilder {
	b.spec.Name = name
	return b
}

// DeliverSubject sets the push delivery subject.
func (b *PushSubscriberSpecBuilder) DeliverSubject(subj string) *PushSubscriberSpecBuilder {
	b.spec.DeliverSubject = subj
	return b
}

// DeliverGroup sets the queue group.
func (b *PushSubscriberSpecBuilder) DeliverGroup(group string) *PushSubscriberSpecBuilder {
	b.spec.DeliverGroup = group
	return b
}

// Build validates and returns the spec.
func (b *PushSubscriberSpecBuilder) Build() (*PushSubscriberSpec, error) {
	if err := b.spec.Validate(); err != nil {
		return nil, err
	}
	spec := b.spec

	return &spec, nil
}

// resolveConsumerName returns the durable name, falling back to the push subscriber name.
func resolveConsumerName(spec ConsumerSpec, push *PushSubscriberSpec) string {
	if spec.Durable != "" {
		return spec.Durable
	}
	if push != nil {
		return push.Name
	}

	return ""
}

func validSampleFrequency(freq string) bool {
	if freq == "" {
		return true
	}
	n, err := strconv.Atoi(strings.TrimSuffix(freq, "%"))

	return err == nil && n >= 0 && n <= 100
}

func deliverPolicyName(p nats.DeliverPolicy) string {
	switch p {
	case nats.DeliverByStartSequencePolicy:
		return "by_start_sequence"
	case nats.DeliverByStartTimePolicy:
		return "by_start_time"
	default:
		return "other"
	}
}
