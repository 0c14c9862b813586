package ringchannel_test

import (
	"bytes"

	ringchannel "code.cloudfoundry.org/go-ringchannel"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Spool", func() {
	var (
		c   *ringchannel.Channel
		s   *ringchannel.Spool
		rep *mockReporter
		hdr ringchannel.PacketHeader
		out []byte
	)

	// Each 10 byte payload takes 14 bytes, so a 64 byte ring holds four.
	payload := func(i int) []byte {
		return bytes.Repeat([]byte{byte('a' + i)}, 10)
	}

	BeforeEach(func() {
		var err error
		c, err = ringchannel.NewEmbedded(make([]byte, ringchannel.ControlBlockSize+64), true)
		Expect(err).ToNot(HaveOccurred())

		rep = newMockReporter()
		s = ringchannel.NewSpool(c, ringchannel.WithSpoolReporter(rep))
		out = make([]byte, 64)
	})

	popAll := func() []uint16 {
		var ids []uint16
		for {
			n, ok, err := c.Pop(&hdr, out)
			Expect(err).ToNot(HaveOccurred())
			if !ok {
				return ids
			}
			Expect(out[:n]).To(Equal(payload(int(hdr.ID))))
			ids = append(ids, hdr.ID)
		}
	}

	It("pushes straight through while there is room", func() {
		Expect(s.Push(0, payload(0))).To(Succeed())
		Expect(s.Len()).To(BeZero())
		Expect(rep.pending).ToNot(Receive())
		Expect(popAll()).To(Equal([]uint16{0}))
	})

	Context("ring full", func() {
		BeforeEach(func() {
			for i := 0; i < 6; i++ {
				Expect(s.Push(uint16(i), payload(i))).To(Succeed())
			}
		})

		It("spools what does not fit", func() {
			Expect(s.Len()).To(Equal(2))
			Expect(rep.pending).To(Receive(Equal(1)))
			Expect(rep.pending).To(Receive(Equal(2)))
		})

		It("keeps packets in order across flushes", func() {
			Expect(popAll()).To(Equal([]uint16{0, 1, 2, 3}))

			Expect(s.Push(6, payload(6))).To(Succeed())
			Expect(s.Len()).To(BeZero())

			Expect(popAll()).To(Equal([]uint16{4, 5, 6}))
		})

		It("reports ErrFull from Flush while the ring is still full", func() {
			Expect(s.Flush()).To(MatchError(ringchannel.ErrFull))
			Expect(s.Len()).To(Equal(2))

			popAll()
			Expect(s.Flush()).To(Succeed())
			Expect(s.Len()).To(BeZero())
			Expect(popAll()).To(Equal([]uint16{4, 5}))
		})

		It("copies spooled payloads", func() {
			p := payload(7)
			Expect(s.Push(7, p)).To(Succeed())
			p[0] = 'z'

			popAll()
			Expect(s.Flush()).To(Succeed())
			Expect(popAll()).To(Equal([]uint16{4, 5, 7}))
		})
	})

	It("honours the spool limit", func() {
		s = ringchannel.NewSpool(c, ringchannel.WithSpoolLimit(1))
		for i := 0; i < 5; i++ {
			Expect(s.Push(uint16(i), payload(i))).To(Succeed())
		}
		Expect(s.Push(5, payload(5))).To(MatchError(ringchannel.ErrFull))
		Expect(s.Len()).To(Equal(1))
	})

	It("rejects packets that can never fit", func() {
		Expect(s.Push(1, make([]byte, 60))).To(MatchError(ringchannel.ErrPayloadTooLarge))
		Expect(s.Push(1, make([]byte, ringchannel.MaxPayloadSize+1))).To(MatchError(ringchannel.ErrPayloadTooLarge))
		Expect(s.Len()).To(BeZero())
		Expect(s.Push(1, make([]byte, 59))).To(Succeed())
	})
})
