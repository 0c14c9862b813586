package ringchannel

// writeWrapped copies src into the data region at off, continuing at the
// start of the region if it runs past the end.
func (c *Channel) writeWrapped(off uint32, src []byte) {
	if int(off)+len(src) <= len(c.data) {
		copy(c.data[off:], src)
		return
	}
	n := copy(c.data[off:], src)
	copy(c.data, src[n:])
}

// readWrapped is the mirror of writeWrapped.
func (c *Channel) readWrapped(off uint32, dst []byte) {
	if int(off)+len(dst) <= len(c.data) {
		copy(dst, c.data[off:])
		return
	}
	n := copy(dst, c.data[off:])
	copy(dst[n:], c.data)
}
