package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ComponentBase", func() {
	It("should set and get name", func() {
		component := NewComponentBase("Core[0].Spikes")
		Expect(component.Name()).To(Equal("Core[0].Spikes"))
	})

	It("should reject names that break the convention", func() {
		for _, name := range []string{
			"core", "Core..Queue", "Core.", "Core_Queue", "Core[a]", "Core[0",
		} {
			Expect(func() { NewComponentBase(name) }).To(Panic(), name)
		}
	})

	It("should build hierarchical names", func() {
		Expect(BuildName("", "Core")).To(Equal("Core"))
		Expect(BuildName("Core", "Queue")).To(Equal("Core.Queue"))
		Expect(BuildNameWithIndex("Core", "Slot", 2)).To(Equal("Core.Slot[2]"))
	})
})
