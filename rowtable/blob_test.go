package rowtable

import (
	"github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = ginkgo.Describe("Blob", func() {
	entries := []Entry{
		{Key: 0x1000, Mask: 0xF000, BlockOffset: 0, NeuronMask: 0x0F},
		{Key: 0x2000, Mask: 0xF000, BlockOffset: 16, NeuronMask: 0x0F},
	}

	ginkgo.It("should lay out a count followed by four word records", func() {
		Expect(EncodeBlob(entries)).To(Equal([]uint32{
			2,
			0x1000, 0xF000, 0, 0x0F,
			0x2000, 0xF000, 16, 0x0F,
		}))
	})

	ginkgo.It("should decode what it encodes", func() {
		decoded, err := DecodeBlob(EncodeBlob(entries))

		Expect(err).NotTo(HaveOccurred())
		Expect(decoded).To(Equal(entries))
	})

	ginkgo.It("should decode an empty table", func() {
		decoded, err := DecodeBlob([]uint32{0})

		Expect(err).NotTo(HaveOccurred())
		Expect(decoded).To(BeEmpty())
	})

	ginkgo.It("should reject a blob shorter than its count", func() {
		_, err := DecodeBlob([]uint32{2, 0x1000, 0xF000, 0, 0x0F})

		Expect(err).To(MatchError(ErrMalformedBlob))
	})

	ginkgo.It("should reject an empty blob", func() {
		_, err := DecodeBlob(nil)

		Expect(err).To(MatchError(ErrMalformedBlob))
	})

	ginkgo.It("should convert words to little-endian bytes and back", func() {
		b := BytesFromWords([]uint32{0x04030201, 0xFFFFFFFF})

		Expect(b).To(Equal([]byte{1, 2, 3, 4, 0xFF, 0xFF, 0xFF, 0xFF}))
		Expect(WordsFromBytes(append(b, 9))).To(
			Equal([]uint32{0x04030201, 0xFFFFFFFF}))
	})
})
