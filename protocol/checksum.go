package protocol

var (
	_ Checksum = (*xorChecksum)(nil)
	_ Checksum = (*sumChecksum)(nil)
	_ Checksum = (*twosComplementChecksum)(nil)
)

// Checksum accumulates bytes and returns an 8 bit checksum. The
// checksums of this package never fail to write.
type Checksum interface {
	WriteByte(b byte) error
	Sum8() uint8
}

type xorChecksum struct {
	sum uint8
}

func (c *xorChecksum) WriteByte(b byte) error {
	c.sum ^= b
	return nil
}

func (c *xorChecksum) Sum8() uint8 {
	return c.sum
}

// NewXorChecksum returns a Checksum that XORs every byte.
func NewXorChecksum() Checksum {
	return &xorChecksum{}
}

type sumChecksum struct {
	sum uint8
}

func (c *sumChecksum) WriteByte(b byte) error {
	c.sum += b
	return nil
}

func (c *sumChecksum) Sum8() uint8 {
	return c.sum
}

// NewSumChecksum returns a Checksum that adds every byte modulo 256.
func NewSumChecksum() Checksum {
	return &sumChecksum{}
}

type twosComplementChecksum struct {
	sum uint8
}

func (c *twosComplementChecksum) WriteByte(b byte) error {
	c.sum += b
	return nil
}

func (c *twosComplementChecksum) Sum8() uint8 {
	return ^c.sum + 1
}

// NewTwosComplementChecksum returns a Checksum whose value is the two's
// complement of the byte sum, so that adding it to the data yields 0.
func NewTwosComplementChecksum() Checksum {
	return &twosComplementChecksum{}
}

// ChecksumWrite writes all of data to cs.
func ChecksumWrite(cs Checksum, data []byte) error {
	for _, b := range data {
		if err := cs.WriteByte(b); err != nil {
			return err
		}
	}
	return nil
}

// Sum8 feeds data to cs and returns the resulting checksum. It panics
// if cs fails a write, use ChecksumWrite for checksums that can.
func Sum8(cs Checksum, data []byte) uint8 {
	if err := ChecksumWrite(cs, data); err != nil {
		panic(err)
	}
	return cs.Sum8()
}

// VerifySum8 computes the checksum of data with cs and compares it
// against the one carried by the frame.
func VerifySum8(cs Checksum, data []byte, carried byte) error {
	if computed := Sum8(cs, data); computed != carried {
		return &ChecksumError{Got: carried, Expected: computed}
	}
	return nil
}
