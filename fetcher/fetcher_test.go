package fetcher

import (
	"github.com/pkg/errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"

	"github.com/sarchlab/spikerx/filter"
	"github.com/sarchlab/spikerx/mem"
)

type pendingTransfer struct {
	src  uint64
	dst  []byte
	done func(error)
}

var _ = Describe("Fetcher", func() {
	var (
		mockCtrl *gomock.Controller
		engine   *MockTransferEngine
		f        *Fetcher
		pending  []pendingTransfer
	)

	capture := func(src uint64, dst []byte, done func(error)) error {
		pending = append(pending, pendingTransfer{src, dst, done})
		return nil
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = NewMockTransferEngine(mockCtrl)
		pending = nil
		f = New(engine, 0x1000, 20, 2)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should compute row addresses", func() {
		Expect(f.Address(0)).To(Equal(uint64(0x1000)))
		Expect(f.Address(3)).To(Equal(uint64(0x1000 + 60)))
	})

	It("should panic on a stride that is not whole words", func() {
		Expect(func() { New(engine, 0, 6, 1) }).To(Panic())
	})

	It("should deliver a decoded row", func() {
		engine.EXPECT().
			StartTransfer(uint64(0x1000+3*20), gomock.Any(), gomock.Any()).
			DoAndReturn(capture)

		var got filter.WeightRow
		var gotErr error
		Expect(f.Fetch(0, 3, func(row filter.WeightRow, err error) {
			got, gotErr = row, err
		})).To(Succeed())
		Expect(f.Busy(0)).To(BeTrue())

		weights := []filter.Value{filter.FromFloat(0.5), filter.FromFloat(-1)}
		copy(pending[0].dst, EncodeRow(weights, 20))
		pending[0].done(nil)

		Expect(gotErr).NotTo(HaveOccurred())
		Expect(got.Index).To(Equal(uint32(3)))
		Expect(got.Weights).To(Equal(weights))
		Expect(f.Busy(0)).To(BeFalse())
	})

	It("should clamp the synapse count to the stride", func() {
		engine.EXPECT().StartTransfer(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(capture)

		var got filter.WeightRow
		Expect(f.Fetch(1, 0, func(row filter.WeightRow, _ error) {
			got = row
		})).To(Succeed())

		pending[0].dst[0] = 100
		pending[0].done(nil)

		Expect(got.Weights).To(HaveLen(4))
	})

	It("should reject a fetch into a busy slot", func() {
		engine.EXPECT().StartTransfer(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(capture)
		Expect(f.Fetch(0, 1, func(filter.WeightRow, error) {})).To(Succeed())

		err := f.Fetch(0, 2, func(filter.WeightRow, error) {})

		Expect(err).To(MatchError(ErrSlotBusy))
	})

	It("should reject a slot that does not exist", func() {
		err := f.Fetch(2, 1, func(filter.WeightRow, error) {})

		Expect(err).To(MatchError(ErrInvalidSlot))
		Expect(f.Busy(2)).To(BeFalse())
	})

	It("should free the slot if the transfer cannot start", func() {
		engine.EXPECT().StartTransfer(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(mem.ErrQueueFull)

		err := f.Fetch(0, 1, func(filter.WeightRow, error) {})

		Expect(err).To(MatchError(mem.ErrQueueFull))
		Expect(f.Busy(0)).To(BeFalse())
	})

	It("should retry transient failures", func() {
		engine.EXPECT().StartTransfer(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(capture).Times(3)

		calls := 0
		var gotErr error
		Expect(f.Fetch(0, 1, func(_ filter.WeightRow, err error) {
			calls++
			gotErr = err
		})).To(Succeed())

		pending[0].done(errors.Wrap(mem.ErrTransient, "bus"))
		pending[1].done(mem.ErrTransient)
		copy(pending[2].dst, EncodeRow([]filter.Value{1}, 20))
		pending[2].done(nil)

		Expect(calls).To(Equal(1))
		Expect(gotErr).NotTo(HaveOccurred())
		Expect(f.Retries()).To(Equal(uint64(2)))
	})

	It("should fail after the retries run out", func() {
		f.MaxRetries = 1
		engine.EXPECT().StartTransfer(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(capture).Times(2)

		var gotErr error
		Expect(f.Fetch(0, 1, func(_ filter.WeightRow, err error) {
			gotErr = err
		})).To(Succeed())

		pending[0].done(mem.ErrTransient)
		pending[1].done(mem.ErrTransient)

		Expect(gotErr).To(MatchError(ErrTransferFailed))
		Expect(gotErr.Error()).To(ContainSubstring("after 1 retries"))
		Expect(f.Busy(0)).To(BeFalse())
	})

	It("should not retry other failures", func() {
		engine.EXPECT().StartTransfer(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(capture)

		var gotErr error
		Expect(f.Fetch(0, 1, func(_ filter.WeightRow, err error) {
			gotErr = err
		})).To(Succeed())

		pending[0].done(mem.ErrOutOfRange)

		Expect(gotErr).To(MatchError(ErrTransferFailed))
		Expect(gotErr.Error()).To(ContainSubstring("row 1"))
		Expect(gotErr.Error()).NotTo(ContainSubstring("retries"))
	})

	It("should let the callback fetch into the slot it just freed", func() {
		engine.EXPECT().StartTransfer(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(capture).Times(2)

		Expect(f.Fetch(0, 1, func(filter.WeightRow, error) {
			Expect(f.Fetch(0, 2, func(filter.WeightRow, error) {})).To(Succeed())
		})).To(Succeed())

		pending[0].done(nil)

		Expect(pending[1].src).To(Equal(f.Address(2)))
	})
})
