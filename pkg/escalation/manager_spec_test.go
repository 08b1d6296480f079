package escalation_test

import (
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/qaorchestrator/core/pkg/escalation"
	"github.com/qaorchestrator/core/pkg/qatypes"
)

// recordingBus captures every published topic for assertion, without
// pulling in the full InMemoryBroker's goroutine/subscriber machinery.
type recordingBus struct {
	mu     sync.Mutex
	topics []string
}

func (b *recordingBus) Publish(topic string, _ any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics = append(b.topics, topic)
}

func (b *recordingBus) Topics() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.topics))
	copy(out, b.topics)
	return out
}

var _ = Describe("Manager", func() {
	var (
		mgr *escalation.Manager
		bus *recordingBus
	)

	BeforeEach(func() {
		bus = &recordingBus{}
		mgr = escalation.NewManager(escalation.NewInMemoryStore(), bus, escalation.NoopNotifier{})
	})

	Describe("Open", func() {
		It("creates a PENDING case and publishes qa.escalation.opened", func() {
			c, err := mgr.Open("batch-1", "", "worker hard-failed twice")
			Expect(err).NotTo(HaveOccurred())
			Expect(c.State).To(Equal(qatypes.EscalationPending))
			Expect(c.BatchRef).To(Equal("batch-1"))
			Expect(bus.Topics()).To(ContainElement(escalation.TopicOpened))
		})
	})

	Describe("Assign", func() {
		It("moves a PENDING case to IN_REVIEW and publishes qa.escalation.assigned", func() {
			c, err := mgr.Open("batch-2", "", "low confidence retrieval")
			Expect(err).NotTo(HaveOccurred())

			assigned, err := mgr.Assign(c.CaseID, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(assigned.State).To(Equal(qatypes.EscalationInReview))
			Expect(assigned.AssignedReviewer).To(Equal("alice"))
			Expect(bus.Topics()).To(ContainElement(escalation.TopicAssigned))
		})

		It("rejects assigning a case that is not PENDING", func() {
			c, err := mgr.Open("batch-3", "", "reason")
			Expect(err).NotTo(HaveOccurred())
			_, err = mgr.Assign(c.CaseID, "alice")
			Expect(err).NotTo(HaveOccurred())

			_, err = mgr.Assign(c.CaseID, "bob")
			Expect(err).To(MatchError(escalation.ErrInvalidTransition))
		})
	})

	Describe("Resolve", func() {
		It("allows PENDING to resolve directly to CANCELLED", func() {
			c, err := mgr.Open("batch-4", "", "reason")
			Expect(err).NotTo(HaveOccurred())

			resolved, err := mgr.Resolve(c.CaseID, qatypes.EscalationCancelled, "no longer needed")
			Expect(err).NotTo(HaveOccurred())
			Expect(resolved.State).To(Equal(qatypes.EscalationCancelled))
			Expect(bus.Topics()).To(ContainElement(escalation.TopicResolved))
		})

		It("rejects PENDING resolving directly to RESOLVED", func() {
			c, err := mgr.Open("batch-5", "", "reason")
			Expect(err).NotTo(HaveOccurred())

			_, err = mgr.Resolve(c.CaseID, qatypes.EscalationResolved, "")
			Expect(err).To(MatchError(escalation.ErrInvalidTransition))
		})

		DescribeTable("allows IN_REVIEW to resolve to any terminal state",
			func(terminal qatypes.EscalationState) {
				c, err := mgr.Open("batch-6", "", "reason")
				Expect(err).NotTo(HaveOccurred())
				_, err = mgr.Assign(c.CaseID, "alice")
				Expect(err).NotTo(HaveOccurred())

				resolved, err := mgr.Resolve(c.CaseID, terminal, "done")
				Expect(err).NotTo(HaveOccurred())
				Expect(resolved.State).To(Equal(terminal))
			},
			Entry("RESOLVED", qatypes.EscalationResolved),
			Entry("CANNOT_FIX", qatypes.EscalationCannotFix),
			Entry("WONT_FIX", qatypes.EscalationWontFix),
			Entry("CANCELLED", qatypes.EscalationCancelled),
		)

		It("rejects any transition once a case is terminal", func() {
			c, err := mgr.Open("batch-7", "", "reason")
			Expect(err).NotTo(HaveOccurred())
			_, err = mgr.Resolve(c.CaseID, qatypes.EscalationCancelled, "")
			Expect(err).NotTo(HaveOccurred())

			_, err = mgr.Assign(c.CaseID, "alice")
			Expect(err).To(MatchError(escalation.ErrTerminal))

			_, err = mgr.Resolve(c.CaseID, qatypes.EscalationResolved, "")
			Expect(err).To(MatchError(escalation.ErrTerminal))
		})
	})

	Describe("List and Stats", func() {
		It("filters by state and aggregates counts", func() {
			a, _ := mgr.Open("batch-8", "", "reason")
			b, _ := mgr.Open("batch-9", "", "reason")
			_, err := mgr.Resolve(b.CaseID, qatypes.EscalationCancelled, "")
			Expect(err).NotTo(HaveOccurred())

			pending, err := mgr.List(escalation.Filter{State: qatypes.EscalationPending, HasState: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(HaveLen(1))
			Expect(pending[0].CaseID).To(Equal(a.CaseID))

			stats, err := mgr.Stats()
			Expect(err).NotTo(HaveOccurred())
			Expect(stats[qatypes.EscalationPending]).To(Equal(1))
			Expect(stats[qatypes.EscalationCancelled]).To(Equal(1))
		})
	})
})
