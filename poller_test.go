package ringchannel_test

import (
	"context"
	"sync"
	"time"

	ringchannel "code.cloudfoundry.org/go-ringchannel"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Poller", func() {
	var (
		spy *spyRing
		p   *ringchannel.Poller
		hdr ringchannel.PacketHeader
		out []byte
	)

	BeforeEach(func() {
		spy = new(spyRing)
		p = ringchannel.NewPoller(spy, ringchannel.WithPollingInterval(time.Millisecond))
		out = make([]byte, 16)
	})

	It("returns the available result", func() {
		spy.dataList = [][]byte{[]byte("a"), []byte("bc")}

		n, err := p.Next(&hdr, out)
		Expect(err).ToNot(HaveOccurred())
		Expect(out[:n]).To(Equal([]byte("a")))

		n, err = p.Next(&hdr, out)
		Expect(err).ToNot(HaveOccurred())
		Expect(out[:n]).To(Equal([]byte("bc")))
		Expect(hdr.PayloadSize).To(Equal(uint16(2)))
	})

	It("polls the given ring until data is available", func() {
		go func() {
			time.Sleep(250 * time.Millisecond)
			spy.mu.Lock()
			defer spy.mu.Unlock()
			spy.dataList = [][]byte{[]byte("a")}
		}()

		n, err := p.Next(&hdr, out)
		Expect(err).ToNot(HaveOccurred())
		Expect(out[:n]).To(Equal([]byte("a")))
		Expect(spy.pops()).To(BeNumerically(">", 1))
	})

	It("returns errors from the ring and reports short buffers", func() {
		rep := newMockReporter()
		p = ringchannel.NewPoller(spy, ringchannel.WithPollerReporter(rep))
		spy.dataList = [][]byte{[]byte("too long for it")}

		_, err := p.Next(&hdr, make([]byte, 2))
		Expect(err).To(MatchError(ringchannel.ErrShortBuffer))
		Expect(rep.warnings).To(Receive(ContainSubstring("needed 15, provided 2")))

		n, err := p.Next(&hdr, out)
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(15))
	})

	Context("with a context", func() {
		var (
			ctx    context.Context
			cancel context.CancelFunc
		)

		BeforeEach(func() {
			ctx, cancel = context.WithCancel(context.Background())
			p = ringchannel.NewPoller(spy,
				ringchannel.WithPollingInterval(time.Millisecond),
				ringchannel.WithPollerContext(ctx),
			)
		})

		AfterEach(func() {
			cancel()
		})

		It("stops polling once the context is done", func() {
			go func() {
				time.Sleep(50 * time.Millisecond)
				cancel()
			}()

			_, err := p.Next(&hdr, out)
			Expect(err).To(MatchError(context.Canceled))
		})
	})

	It("drains a real channel", func() {
		c, err := ringchannel.NewEmbedded(make([]byte, ringchannel.ControlBlockSize+64), true)
		Expect(err).ToNot(HaveOccurred())
		p = ringchannel.NewPoller(c, ringchannel.WithPollingInterval(time.Millisecond))

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer GinkgoRecover()
			defer wg.Done()
			time.Sleep(20 * time.Millisecond)
			Expect(c.Push(3, []byte("late"))).To(Succeed())
		}()

		n, err := p.Next(&hdr, out)
		Expect(err).ToNot(HaveOccurred())
		Expect(hdr.ID).To(Equal(uint16(3)))
		Expect(string(out[:n])).To(Equal("late"))
		wg.Wait()
	})
})
