package escalation

import (
	"fmt"

	"github.com/slack-go/slack"

	"github.com/qaorchestrator/core/pkg/log"
	"github.com/qaorchestrator/core/pkg/qatypes"
)

// Notifier informs a human channel that a case needs attention. It is
// invoked best-effort on open/assign/resolve: a Notifier failure never
// blocks or rolls back the state transition that triggered it.
type Notifier interface {
	NotifyOpened(c *qatypes.EscalationCase) error
	NotifyAssigned(c *qatypes.EscalationCase) error
	NotifyResolved(c *qatypes.EscalationCase) error
}

// NoopNotifier is the default Notifier: it does nothing. Deployments
// without a configured human channel use this.
type NoopNotifier struct{}

func (NoopNotifier) NotifyOpened(*qatypes.EscalationCase) error   { return nil }
func (NoopNotifier) NotifyAssigned(*qatypes.EscalationCase) error { return nil }
func (NoopNotifier) NotifyResolved(*qatypes.EscalationCase) error { return nil }

// SlackNotifier posts escalation updates to a single Slack channel.
type SlackNotifier struct {
	client  *slack.Client
	channel string
}

// NewSlackNotifier builds a Notifier posting to channel using token.
func NewSlackNotifier(token, channel string) *SlackNotifier {
	return &SlackNotifier{client: slack.New(token), channel: channel}
}

func (n *SlackNotifier) NotifyOpened(c *qatypes.EscalationCase) error {
	return n.post(fmt.Sprintf(":rotating_light: escalation opened: case=%s batch=%s reason=%q", c.CaseID, c.BatchRef, c.Reason))
}

func (n *SlackNotifier) NotifyAssigned(c *qatypes.EscalationCase) error {
	return n.post(fmt.Sprintf(":eyes: escalation assigned: case=%s reviewer=%s", c.CaseID, c.AssignedReviewer))
}

func (n *SlackNotifier) NotifyResolved(c *qatypes.EscalationCase) error {
	return n.post(fmt.Sprintf(":white_check_mark: escalation resolved: case=%s state=%s note=%q", c.CaseID, c.State, c.ResolutionNote))
}

func (n *SlackNotifier) post(text string) error {
	_, _, err := n.client.PostMessage(n.channel, slack.MsgOptionText(text, false))
	if err != nil {
		log.WithComponent("escalation").Warn().Err(err).Msg("slack notification failed")
	}
	return err
}
