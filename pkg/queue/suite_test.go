package queue

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestQueueIntegration(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "queue integration suite")
}
