package escalation_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestEscalation(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "escalation suite")
}
